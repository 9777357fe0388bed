package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/knowhub/internal/pkg/errcode"
	"github.com/xxxsen/knowhub/internal/pkg/jwt"
	"github.com/xxxsen/knowhub/internal/pkg/response"
)

const (
	ContextTenantIDKey = "tenant_id"
	ContextUserIDKey   = "user_id"
)

// TenantAuth resolves the caller's tenant from a bearer token; every
// route behind it is tenant-scoped.
func TenantAuth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, errcode.ErrUnauthorized, "missing authorization")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, errcode.ErrUnauthorized, "invalid authorization")
			c.Abort()
			return
		}
		claims, err := jwt.ParseToken(parts[1], secret)
		if err != nil {
			response.Error(c, errcode.ErrUnauthorized, "invalid token")
			c.Abort()
			return
		}
		c.Set(ContextTenantIDKey, claims.TenantID)
		if claims.UserID != "" {
			c.Set(ContextUserIDKey, claims.UserID)
		}
		c.Next()
	}
}
