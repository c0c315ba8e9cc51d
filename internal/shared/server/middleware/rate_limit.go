package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"legaldocs-backend/internal/shared/server/respond"
	"legaldocs-backend/internal/shared/telemetry"
)

const (
	defaultRateLimitGroup = "DEFAULT"
	sweepEvery            = 1024
)

// RateLimitRule is a token bucket: Rate tokens per second up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

// PerWindow builds a rule that allows n requests per window.
func PerWindow(n int, window time.Duration) RateLimitRule {
	return RateLimitRule{Rate: float64(n) / window.Seconds(), Burst: n}
}

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration, error)
}

type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      Limiter
}

// RateLimiter is an in-process token bucket limiter.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
	calls   int
}

type rateBucket struct {
	tokens float64
	last   time.Time
	fullAt time.Time
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets: make(map[string]*rateBucket),
		now:     now,
	}
}

func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		principal := strings.TrimSpace(UserIDFromContext(c))
		if principal == "" {
			principal = strings.TrimSpace(c.ClientIP())
		}
		key := principal + "|" + group
		allowed, retryAfter, err := cfg.Limiter.Allow(c.Request.Context(), key, rule)
		if err != nil {
			telemetry.Warn("rate_limit.backend_error", map[string]any{
				"key":        key,
				"error":      err.Error(),
				"request_id": RequestIDFromContext(c),
			})
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Burst))
		if allowed {
			c.Next()
			return
		}
		retryAfterMs := int(retryAfter / time.Millisecond)
		if retryAfterMs <= 0 {
			retryAfterMs = 1000
		}
		retryAfterSeconds := int(math.Ceil(float64(retryAfterMs) / 1000.0))
		if retryAfterSeconds <= 0 {
			retryAfterSeconds = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Too many requests", gin.H{
			"retryAfterMs": retryAfterMs,
		})
	}
}

func (l *RateLimiter) Allow(_ context.Context, key string, rule RateLimitRule) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}
	if rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0, nil
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweepLocked(now)
	}
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &rateBucket{
			tokens: float64(rule.Burst),
			last:   now,
		}
		l.buckets[key] = bucket
	}
	elapsed := now.Sub(bucket.last).Seconds()
	if elapsed > 0 {
		bucket.tokens = math.Min(float64(rule.Burst), bucket.tokens+elapsed*rule.Rate)
		bucket.last = now
	}
	allowed := false
	var retryAfter time.Duration
	if bucket.tokens >= 1 {
		bucket.tokens -= 1
		allowed = true
	} else {
		needed := 1 - bucket.tokens
		waitSec := needed / rule.Rate
		if waitSec < 0 {
			waitSec = 0
		}
		retryAfter = time.Duration(math.Ceil(waitSec*1000.0)) * time.Millisecond
	}
	missing := float64(rule.Burst) - bucket.tokens
	bucket.fullAt = now.Add(time.Duration(missing / rule.Rate * float64(time.Second)))
	return allowed, retryAfter, nil
}

// Len reports the number of tracked buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Sweep drops buckets that have refilled completely; a full bucket behaves
// the same as a missing one.
func (l *RateLimiter) Sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sweepLocked(now)
}

func (l *RateLimiter) sweepLocked(now time.Time) {
	for key, bucket := range l.buckets {
		if !now.Before(bucket.fullAt) {
			delete(l.buckets, key)
		}
	}
}

var _ Limiter = (*RateLimiter)(nil)
