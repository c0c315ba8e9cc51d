package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local rate_per_ms = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl_seconds = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(state[1])
local last = tonumber(state[2])
if tokens == nil or last == nil then
  tokens = burst
  last = now_ms
end

local elapsed = math.max(0, now_ms - last)
tokens = math.min(burst, tokens + elapsed * rate_per_ms)

local allowed = 0
local retry_ms = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
else
  retry_ms = math.ceil((1 - tokens) / rate_per_ms)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'last_ms', tostring(now_ms))
redis.call('EXPIRE', key, ttl_seconds)
return { allowed, retry_ms }
`)

// RedisRateLimiter shares token buckets between API instances. Keys expire
// once a bucket would have refilled.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisRateLimiter(client *redis.Client, now func() time.Time) *RedisRateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RedisRateLimiter{client: client, prefix: "ratelimit:", now: now}
}

func (l *RedisRateLimiter) Allow(ctx context.Context, key string, rule RateLimitRule) (bool, time.Duration, error) {
	if rule.Rate <= 0 || rule.Burst <= 0 {
		return true, 0, nil
	}
	ttl := int64(math.Ceil(float64(rule.Burst)/rule.Rate)) + 1
	args := []interface{}{
		l.now().UnixMilli(),
		strconv.FormatFloat(rule.Rate/1000.0, 'g', -1, 64),
		rule.Burst,
		ttl,
	}
	vals, err := tokenBucketScript.Run(ctx, l.client, []string{l.prefix + key}, args...).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("rate limit script: %w", err)
	}
	if len(vals) != 2 {
		return false, 0, fmt.Errorf("rate limit script: unexpected result %v", vals)
	}
	if vals[0] == 1 {
		return true, 0, nil
	}
	return false, time.Duration(vals[1]) * time.Millisecond, nil
}

var _ Limiter = (*RedisRateLimiter)(nil)
