package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hustconnect/config"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestAllow_PerCallerBuckets(t *testing.T) {
	l := New(config.RateLimitConfig{RPS: 1, Burst: 2})
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	assert.True(t, l.Allow("user:1"))
	assert.True(t, l.Allow("user:1"))
	assert.False(t, l.Allow("user:1"))
	assert.True(t, l.Allow("user:2"), "其他调用者不受影响")

	now = now.Add(time.Second)
	assert.True(t, l.Allow("user:1"))
}

func TestMiddleware_Returns429(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := New(config.RateLimitConfig{RPS: 0.001, Burst: 1})
	r := gin.New()
	r.POST("/x", l.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
