package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/openmark/openmark/internal/tokens"
)

// newRedisLimitedRouter builds a router with the Redis limiter behind an
// optional claims-injecting middleware, so tests can steer limiterKey
// between its subject and client-IP forms.
func newRedisLimitedRouter(t *testing.T, rps float64, burst int, window time.Duration, subject *string) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if subject != nil && *subject != "" {
			c.Set(ContextKeyClaims, &tokens.ATClaims{Subject: *subject})
		}
	})
	r.Use(RedisRateLimitMiddleware(client, rps, burst, window))
	r.GET("/documents", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })
	return r, m
}

func hitFrom(r *gin.Engine, addr string) int {
	req := httptest.NewRequest("GET", "/documents", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRedisRateLimit_FixedWindowResets(t *testing.T) {
	// one request per minute-long window for anonymous clients
	r, m := newRedisLimitedRouter(t, 0, 1, time.Minute, nil)

	require.Equal(t, http.StatusOK, hitFrom(r, "10.1.0.1:4000"))
	require.Equal(t, http.StatusTooManyRequests, hitFrom(r, "10.1.0.1:4000"))

	// the window key carries a TTL; once it lapses the budget is fresh
	m.FastForward(2 * time.Minute)
	require.Equal(t, http.StatusOK, hitFrom(r, "10.1.0.1:4000"))
}

func TestRedisRateLimit_BudgetFollowsSubjectNotAddress(t *testing.T) {
	subject := "alice"
	r, _ := newRedisLimitedRouter(t, 0, 1, time.Minute, &subject)

	require.Equal(t, http.StatusOK, hitFrom(r, "10.2.0.1:4000"))
	require.Equal(t, http.StatusTooManyRequests, hitFrom(r, "10.2.0.1:4000"))

	// same subject from another address: still the same exhausted budget
	require.Equal(t, http.StatusTooManyRequests, hitFrom(r, "10.2.0.9:4000"))

	// a different authenticated subject on the original address starts fresh
	subject = "bob"
	require.Equal(t, http.StatusOK, hitFrom(r, "10.2.0.1:4000"))
}

func TestRedisRateLimit_AnonymousFallsBackToClientIP(t *testing.T) {
	r, _ := newRedisLimitedRouter(t, 0, 1, time.Minute, nil)

	require.Equal(t, http.StatusOK, hitFrom(r, "10.4.0.1:4000"))
	require.Equal(t, http.StatusTooManyRequests, hitFrom(r, "10.4.0.1:4000"))

	// without claims each address gets its own bucket
	require.Equal(t, http.StatusOK, hitFrom(r, "10.4.0.2:4000"))
}

func TestRedisRateLimit_NilClientUsesMemoryLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RedisRateLimitMiddleware(nil, 1, 1, time.Second))
	r.GET("/documents", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) })

	require.Equal(t, http.StatusOK, hitFrom(r, "10.3.0.1:4000"))
}
