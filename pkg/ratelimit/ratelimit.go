package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"alertflow/pkg/metrics"
)

type Config struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() Config {
	return Config{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedLimiter hands out one token bucket per key (client IP, organization, channel name).
type KeyedLimiter struct {
	cfg      Config
	mu       sync.Mutex
	limiters map[string]*entry
	now      func() time.Time
}

func NewKeyedLimiter(cfg Config) *KeyedLimiter {
	def := DefaultConfig()
	if cfg.RPS <= 0 {
		cfg.RPS = def.RPS
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = def.MaxAge
	}
	return &KeyedLimiter{
		cfg:      cfg,
		limiters: make(map[string]*entry),
		now:      time.Now,
	}
}

func (k *KeyedLimiter) get(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(rate.Limit(k.cfg.RPS), k.cfg.Burst)}
		k.limiters[key] = e
	}
	e.lastSeen = k.now()
	return e.limiter
}

func (k *KeyedLimiter) Allow(key string) bool {
	return k.get(key).Allow()
}

// Wait blocks until key has a token or ctx is done.
func (k *KeyedLimiter) Wait(ctx context.Context, key string) error {
	return k.get(key).Wait(ctx)
}

// Cleanup drops limiters idle for longer than MaxAge and reports how many were removed.
func (k *KeyedLimiter) Cleanup() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	removed := 0
	for key, e := range k.limiters {
		if now.Sub(e.lastSeen) > k.cfg.MaxAge {
			delete(k.limiters, key)
			removed++
		}
	}
	return removed
}

func (k *KeyedLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// Run cleans up idle limiters until ctx is cancelled.
func (k *KeyedLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			k.Cleanup()
		}
	}
}

// ClientIP keys requests by caller address.
func ClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return c.RemoteIP()
}

func Middleware(k *KeyedLimiter, keyFn func(*gin.Context) string) gin.HandlerFunc {
	if keyFn == nil {
		keyFn = ClientIP
	}

	return func(c *gin.Context) {
		limiter := k.get(keyFn(c))

		c.Header("X-RateLimit-Limit", formatRate(k.cfg.RPS))

		if !limiter.Allow() {
			metrics.IncRateLimit("api", "limited")
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.IncRateLimit("api", "allowed")

		remaining := int(limiter.Tokens())
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		c.Next()
	}
}

func formatRate(rps float64) string {
	return strconv.FormatFloat(rps, 'f', -1, 64)
}
