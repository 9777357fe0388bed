package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndParseToken(t *testing.T) {
	secret := []byte("jwt-secret")
	token, err := GenerateToken("tenant-1", "user-1", secret, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(token, secret)
	require.NoError(t, err)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.Equal(t, "user-1", claims.UserID)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken("tenant-1", "", []byte("secret-a"), time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, []byte("secret-b"))
	require.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	secret := []byte("jwt-secret")
	token, err := GenerateToken("tenant-1", "", secret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	require.Error(t, err)
}

func TestParseTokenMissingTenant(t *testing.T) {
	secret := []byte("jwt-secret")
	token, err := GenerateToken("", "user-1", secret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, secret)
	require.Error(t, err)
}
