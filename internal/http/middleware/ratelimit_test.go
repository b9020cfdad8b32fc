package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChatLimiterAllowWithinBurst(t *testing.T) {
	l := NewChatLimiter(1, 3)
	for i := 0; i < 3; i++ {
		ok, _ := l.Allow("acme/1.2.3.4")
		assert.True(t, ok)
	}
	ok, wait := l.Allow("acme/1.2.3.4")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	// Other callers have their own bucket.
	ok, _ = l.Allow("acme/5.6.7.8")
	assert.True(t, ok)
}

func TestChatLimiterRefillsOverTime(t *testing.T) {
	l := NewChatLimiter(2, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("c")
	assert.True(t, ok)
	ok, _ = l.Allow("c")
	assert.False(t, ok)

	now = now.Add(time.Second)
	ok, _ = l.Allow("c")
	assert.True(t, ok)
}

func TestChatLimiterSweepsIdleCallers(t *testing.T) {
	l := NewChatLimiter(1, 1)
	now := time.Now()
	l.now = func() time.Time { return now }

	l.Allow("stale")
	now = now.Add(11 * time.Minute)
	l.Allow("fresh")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.callers, 1)
	assert.Contains(t, l.callers, "fresh")
}

func TestChatRateLimitMiddleware(t *testing.T) {
	mw := ChatRateLimit(1, 1)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/ai/chat", nil)
	req.Header.Set("X-Tenant-Id", "acme")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.True(t, strings.Contains(rec.Body.String(), `"success":false`))

	// A different tenant behind the same IP is not throttled.
	other := httptest.NewRequest(http.MethodPost, "/ai/chat", nil)
	other.Header.Set("X-Tenant-Id", "globex")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}
