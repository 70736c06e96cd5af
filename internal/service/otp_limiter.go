package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// IssuanceLimiter decides whether another code may be issued for a key.
type IssuanceLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// tokenBucketScript refills tokens lazily from the elapsed time and takes one when available.
// KEYS[1] bucket hash; ARGV: capacity, refill interval ms, now ms, ttl ms.
var tokenBucketScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local interval = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil then
  tokens = capacity
  ts = now
end

local elapsed = now - ts
if elapsed > 0 then
  local refill = math.floor(elapsed / interval)
  if refill > 0 then
    tokens = math.min(capacity, tokens + refill)
    ts = ts + refill * interval
  end
end
if tokens >= capacity then
  ts = now
end

local allowed = 0
if tokens > 0 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", KEYS[1], ttl)
return allowed
`)

type redisTokenBucket struct {
	client   *redis.Client
	capacity int
	refill   time.Duration
	prefix   string
	now      func() time.Time
}

// NewRedisTokenBucket builds a per-key token bucket limiter stored in Redis.
func NewRedisTokenBucket(client *redis.Client, capacity int, refill time.Duration) IssuanceLimiter {
	if capacity <= 0 {
		capacity = 3
	}
	if refill <= 0 {
		refill = time.Minute
	}
	return &redisTokenBucket{
		client:   client,
		capacity: capacity,
		refill:   refill,
		prefix:   "otp:bucket",
		now:      time.Now,
	}
}

func (b *redisTokenBucket) Allow(ctx context.Context, key string) (bool, error) {
	ttl := b.refill * time.Duration(b.capacity+1)
	result, err := tokenBucketScript.Run(ctx, b.client, []string{b.prefix + ":" + key},
		b.capacity,
		b.refill.Milliseconds(),
		b.now().UnixMilli(),
		ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return result == 1, nil
}
