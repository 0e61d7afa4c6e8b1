package httpapi

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Default per-client limits.
const (
	DefaultRPS   = 5
	DefaultBurst = 10
)

// LimiterPool holds one token bucket per client key.
type LimiterPool struct {
	mu    sync.Mutex
	m     map[string]*rate.Limiter
	rps   float64
	burst int
}

// NewLimiterPool creates a pool. Non-positive values use the defaults.
func NewLimiterPool(rps float64, burst int) *LimiterPool {
	if rps <= 0 {
		rps = DefaultRPS
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &LimiterPool{
		m:     make(map[string]*rate.Limiter),
		rps:   rps,
		burst: burst,
	}
}

func (p *LimiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.m[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(p.rps), p.burst)
	p.m[key] = l
	return l
}

// Allow reports whether key may make a request now.
func (p *LimiterPool) Allow(key string) bool {
	return p.get(key).Allow()
}

// RateLimit rejects requests over the per-IP limit with 429.
func RateLimit(pool *LimiterPool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !pool.Allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"ok":    false,
				"error": "rate limited",
			})
			return
		}
		c.Next()
	}
}
