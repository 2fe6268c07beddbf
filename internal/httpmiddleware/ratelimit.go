package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"campusroll/internal/auth"
)

// TokenBucket is an in-memory per-caller rate limiter.
type TokenBucket struct {
	capacity int
	rate     int
	now      func() time.Time

	mu    sync.Mutex
	state map[string]*bucket
}

type bucket struct {
	tokens int
	last   time.Time
}

// NewTokenBucket creates a limiter holding capacity tokens and refilling
// perMinute tokens a minute.
func NewTokenBucket(capacity, perMinute int) *TokenBucket {
	if capacity <= 0 {
		capacity = perMinute
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     perMinute,
		now:      time.Now,
		state:    make(map[string]*bucket),
	}
}

// GinMiddleware limits authenticated callers per account and everyone else
// per client IP.
func (l *TokenBucket) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if claims, ok := auth.ClaimsFrom(c); ok {
			key = "account:" + claims.Subject
		}
		if ok, wait := l.Allow(key); !ok {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit"})
			return
		}
		c.Next()
	}
}

// Allow takes a token for key. When none is left it reports how long until
// the next refill.
func (l *TokenBucket) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	b, ok := l.state[key]
	if !ok {
		l.state[key] = &bucket{tokens: l.capacity - 1, last: now}
		return true, 0
	}
	if l.rate > 0 {
		// past the time needed to refill fully, extra idle time adds nothing
		elapsed := now.Sub(b.last)
		if full := time.Duration(l.capacity) * time.Minute / time.Duration(l.rate); elapsed > full {
			elapsed = full + time.Minute/time.Duration(l.rate)
		}
		refill := int(elapsed * time.Duration(l.rate) / time.Minute)
		if refill > 0 {
			b.tokens = min(b.tokens+refill, l.capacity)
			b.last = now
		}
	}
	if b.tokens <= 0 {
		if l.rate <= 0 {
			return false, time.Minute
		}
		perToken := time.Minute / time.Duration(l.rate)
		return false, perToken - now.Sub(b.last)%perToken
	}
	b.tokens--
	return true, 0
}
