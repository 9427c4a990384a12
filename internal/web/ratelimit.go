package web

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/JonMunkholm/explorer/internal/web/middleware"
)

// rateLimiter is a fixed-window limiter keyed by client IP. Idle visitors
// expire from the cache after two windows.
type rateLimiter struct {
	mu       sync.Mutex
	visitors *cache.Cache
	rate     int           // requests per window
	window   time.Duration // time window
}

type visitor struct {
	tokens      int
	windowStart time.Time
}

// newRateLimiter creates a rate limiter with the specified rate per window.
func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors: cache.New(2*window, window),
		rate:     rate,
		window:   window,
	}
}

// allow reports whether ip may make another request, consuming a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if v, ok := rl.visitors.Get(ip); ok {
		vis := v.(*visitor)
		if now.Sub(vis.windowStart) < rl.window {
			if vis.tokens <= 0 {
				return false
			}
			vis.tokens--
			return true
		}
	}

	rl.visitors.SetDefault(ip, &visitor{tokens: rl.rate - 1, windowStart: now})
	return true
}

// middleware rate limits by client IP. A nil limiter lets everything through.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	if rl == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(middleware.ClientIP(r)) {
			w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
