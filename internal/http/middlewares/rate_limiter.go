package middlewares

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/swapmesh/route-resolver/internal/http/httputil"
)

// RateLimitedKind is the machine-readable kind carried on 429 bodies so
// clients can distinguish throttling from resolution failures.
const RateLimitedKind = "RATE_LIMITED"

// bucket tracks one client's remaining request budget.
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// RateLimiter is a per-client token bucket keyed by IP. Refill is
// fractional so sub-second request spacing earns partial credit instead
// of rounding down to nothing.
type RateLimiter struct {
	mu      sync.Mutex
	rps     float64
	burst   float64
	buckets map[string]*bucket
	now     func() time.Time
}

func NewRateLimiter(rps, burst int) *RateLimiter {
	return &RateLimiter{
		rps:     float64(rps),
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// allow spends one token from the client's bucket, refilling it first
// from the time elapsed since the last request.
func (rl *RateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{tokens: rl.burst, lastSeen: now}
		rl.buckets[client] = b
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * rl.rps
	if b.tokens > rl.burst {
		b.tokens = rl.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (rl *RateLimiter) RateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httputil.Response{
				Success:   false,
				Error:     "rate limit exceeded",
				ErrorKind: RateLimitedKind,
			})
			return
		}
		c.Next()
	}
}
