package middleware

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// ChatLimiter throttles conversational turns per caller with a token bucket.
// Buckets idle past idleAfter are swept inline on the next Allow, so the map
// stays bounded by recently active callers without a background goroutine.
type ChatLimiter struct {
	mu        sync.Mutex
	callers   map[string]*turnBucket
	perSecond float64
	burst     float64
	idleAfter time.Duration
	lastSweep time.Time
	now       func() time.Time
}

type turnBucket struct {
	allowance float64
	touched   time.Time
}

func NewChatLimiter(perSecond float64, burst int) *ChatLimiter {
	if burst < 1 {
		burst = 1
	}
	return &ChatLimiter{
		callers:   make(map[string]*turnBucket),
		perSecond: perSecond,
		burst:     float64(burst),
		idleAfter: 10 * time.Minute,
		now:       time.Now,
	}
}

// Allow reports whether caller may take a turn now and, when throttled, how
// long until the next token accrues.
func (l *ChatLimiter) Allow(caller string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) >= l.idleAfter {
		for id, b := range l.callers {
			if now.Sub(b.touched) >= l.idleAfter {
				delete(l.callers, id)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.callers[caller]
	if !ok {
		b = &turnBucket{allowance: l.burst}
		l.callers[caller] = b
	} else {
		b.allowance += now.Sub(b.touched).Seconds() * l.perSecond
		if b.allowance > l.burst {
			b.allowance = l.burst
		}
	}
	b.touched = now

	if b.allowance < 1 {
		wait := time.Duration((1 - b.allowance) / l.perSecond * float64(time.Second))
		return false, wait
	}
	b.allowance--
	return true, 0
}

// ChatRateLimit rejects turns above the configured rate with 429, a
// Retry-After hint, and a chat envelope the frontend renders like any other
// reply. Callers are keyed by tenant plus client IP.
func ChatRateLimit(perSecond float64, burst int) func(http.Handler) http.Handler {
	limiter := NewChatLimiter(perSecond, burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := r.RemoteAddr
			// chi's RealIP middleware runs first and rewrites RemoteAddr
			// from X-Forwarded-For / X-Real-Ip when present.
			if tenant := r.Header.Get("X-Tenant-Id"); tenant != "" {
				caller = tenant + "/" + caller
			}

			ok, wait := limiter.Allow(caller)
			if !ok {
				seconds := int(math.Ceil(wait.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"reply":   "You're sending messages too quickly. Give it a moment and try again.",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
