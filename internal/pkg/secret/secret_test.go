package secret

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSealOpenRoundtrip(t *testing.T) {
	box := NewBox("test-secret")
	sealed, err := box.Seal([]byte(`{"url": "https://example.com"}`))
	require.NoError(t, err)
	require.NotContains(t, sealed, "example.com")

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	require.Equal(t, `{"url": "https://example.com"}`, string(plain))
}

func TestSealIsNondeterministic(t *testing.T) {
	box := NewBox("test-secret")
	a, err := box.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := box.Seal([]byte("same"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestOpenRejectsWrongKey(t *testing.T) {
	sealed, err := NewBox("secret-a").Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = NewBox("secret-b").Open(sealed)
	require.Error(t, err)
}

func TestOpenRejectsGarbage(t *testing.T) {
	box := NewBox("test-secret")
	_, err := box.Open("not base64 !!!")
	require.Error(t, err)
	_, err = box.Open("c2hvcnQ=")
	require.Error(t, err)
}
