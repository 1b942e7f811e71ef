package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"
)

// RateLimiter begrenzt Anfragen je Client-IP (Token-Bucket).
// Limiter unbenutzter IPs verfallen nach idleTTL.
type RateLimiter struct {
	mu       sync.Mutex
	limiters *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewRateLimiter erlaubt perMinute Anfragen pro Minute und IP, Burst = perMinute.
func NewRateLimiter(perMinute int, idleTTL time.Duration) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	return &RateLimiter{
		limiters: expirable.NewLRU[string, *rate.Limiter](4096, nil, idleTTL),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (r *RateLimiter) limiter(ip string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.limiters.Get(ip); ok {
		return l
	}
	l := rate.NewLimiter(r.limit, r.burst)
	r.limiters.Add(ip, l)
	return l
}

// Allow meldet, ob die IP noch eine Anfrage frei hat.
func (r *RateLimiter) Allow(ip string) bool {
	return r.limiter(ip).Allow()
}

// Limit antwortet mit 429, sobald der Bucket der IP leer ist.
func (r *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !r.Allow(c.ClientIP()) {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
