// Package middleware provides HTTP middleware for Vessel Frame's admin HTTP surface.
// This file tests the rate limiting functionality to ensure it correctly
// throttles excessive traffic while allowing legitimate requests through.
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newTestRouter(h gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(h)
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(1, 3)
	router := newTestRouter(rl.Middleware())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksAfterBurstExhausted(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	router := newTestRouter(rl.Middleware())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestRateLimiterTracksClientsIndependently(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	router := newTestRouter(rl.Middleware())

	reqA := httptest.NewRequest(http.MethodGet, "/x", nil)
	reqA.RemoteAddr = "10.0.0.3:1234"
	recA := httptest.NewRecorder()
	router.ServeHTTP(recA, reqA)
	assert.Equal(t, http.StatusOK, recA.Code)

	reqB := httptest.NewRequest(http.MethodGet, "/x", nil)
	reqB.RemoteAddr = "10.0.0.4:1234"
	recB := httptest.NewRecorder()
	router.ServeHTTP(recB, reqB)
	assert.Equal(t, http.StatusOK, recB.Code)
}

func TestGetLimiterReusesBucketPerKey(t *testing.T) {
	rl := NewRateLimiter(5, 5)
	a := rl.getLimiter("1.2.3.4")
	b := rl.getLimiter("1.2.3.4")
	assert.Same(t, a, b)

	c := rl.getLimiter("5.6.7.8")
	assert.NotSame(t, a, c)
}

func TestCleanupRoutineResetsOversizedLimiterMap(t *testing.T) {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     1,
		burst:    1,
		cleanup:  10 * time.Millisecond,
	}
	for i := 0; i < 10001; i++ {
		rl.getLimiter(string(rune(i)))
	}
	go rl.cleanupRoutine()
	assert.Eventually(t, func() bool {
		rl.mu.RLock()
		defer rl.mu.RUnlock()
		return len(rl.limiters) < 10001
	}, time.Second, 5*time.Millisecond)
}
