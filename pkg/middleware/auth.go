package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/openmark/openmark/internal/authority"
	"github.com/openmark/openmark/internal/tokens"
)

// Context keys set by RequireAT for downstream handlers.
const (
	ContextKeyClaims = "at_claims"
	ContextKeyToken  = "at_raw"
)

// Validator is the slice of the token authority the middleware depends on.
type Validator interface {
	ValidateAT(ctx context.Context, token string) (*tokens.ATClaims, error)
}

// RequireAT returns a Gin middleware that verifies the Authentication Token
// from the Authorization header (Bearer scheme) or, failing that, from the
// `token` query parameter. Rejections carry a generic message; the precise
// failure is never leaked to the client.
func RequireAT(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := extractToken(c)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		claims, err := v.ValidateAT(c.Request.Context(), raw)
		if err != nil {
			if errors.Is(err, authority.ErrBackendUnavailable) {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "service unavailable"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication failed"})
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyToken, raw)
		c.Next()
	}
}

// ATClaims retrieves the validated claims set by RequireAT.
func ATClaims(c *gin.Context) (*tokens.ATClaims, bool) {
	v, ok := c.Get(ContextKeyClaims)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*tokens.ATClaims)
	return claims, ok
}

// RawToken retrieves the serialized token set by RequireAT.
func RawToken(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}

func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		if raw, ok := strings.CutPrefix(auth, "Bearer "); ok && raw != "" {
			return raw
		}
		return ""
	}
	return c.Query("token")
}
