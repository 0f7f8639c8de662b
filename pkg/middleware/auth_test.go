package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/openmark/openmark/internal/authority"
	"github.com/openmark/openmark/internal/tokens"
)

// fakeValidator accepts exactly one token string.
type fakeValidator struct {
	good string
	err  error
}

func (f *fakeValidator) ValidateAT(ctx context.Context, token string) (*tokens.ATClaims, error) {
	if f.err != nil {
		return nil, f.err
	}
	if token == f.good {
		return &tokens.ATClaims{Subject: "user1", Role: "user"}, nil
	}
	return nil, tokens.ErrInvalidSignature
}

func protected(v Validator) *gin.Engine {
	g := gin.New()
	g.GET("/", RequireAT(v), func(c *gin.Context) {
		claims, ok := ATClaims(c)
		require2 := claims != nil && ok
		c.JSON(http.StatusOK, gin.H{"sub": claims.Subject, "ok": require2, "raw": RawToken(c)})
	})
	return g
}

func TestRequireAT_NoToken(t *testing.T) {
	g := protected(&fakeValidator{good: "goodtoken"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestRequireAT_MalformedHeader(t *testing.T) {
	g := protected(&fakeValidator{good: "goodtoken"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "goodtoken") // no Bearer scheme
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestRequireAT_BadTokenGenericMessage(t *testing.T) {
	g := protected(&fakeValidator{good: "goodtoken"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.NotContains(t, rw.Body.String(), "signature",
		"the failure cause must not leak to the client")
}

func TestRequireAT_BearerHeader(t *testing.T) {
	g := protected(&fakeValidator{good: "goodtoken"})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer goodtoken")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
	require.Contains(t, rw.Body.String(), `"sub":"user1"`)
	require.Contains(t, rw.Body.String(), `"raw":"goodtoken"`)
}

func TestRequireAT_QueryParameterFallback(t *testing.T) {
	g := protected(&fakeValidator{good: "goodtoken"})
	req := httptest.NewRequest(http.MethodGet, "/?token=goodtoken", nil)
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
}

func TestRequireAT_BackendUnavailableIs503(t *testing.T) {
	g := protected(&fakeValidator{err: fmt.Errorf("%w: store down", authority.ErrBackendUnavailable)})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer goodtoken")
	rw := httptest.NewRecorder()
	g.ServeHTTP(rw, req)

	require.Equal(t, http.StatusServiceUnavailable, rw.Code)
}
