package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Fixed-window counter: the first hit sets the expiry, later hits only
// increment. Returns {allowed, remaining, ttl_ms}.
var redisAllowScript = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false then
	redis.call("SET", KEYS[1], 1, "PX", ARGV[2])
	return {1, tonumber(ARGV[1]) - 1, tonumber(ARGV[2])}
end
local count = tonumber(current)
if count >= tonumber(ARGV[1]) then
	local ttl = redis.call("PTTL", KEYS[1])
	if ttl < 0 then
		ttl = 0
	end
	return {0, 0, ttl}
end
count = redis.call("INCR", KEYS[1])
local ttl = redis.call("PTTL", KEYS[1])
if ttl < 0 then
	ttl = tonumber(ARGV[2])
end
return {1, tonumber(ARGV[1]) - count, ttl}
`)

// Redis is a fixed-window Limiter backed by a shared Redis instance, so the
// limit holds across gateway replicas.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
	limit     int64
	window    time.Duration
}

// NewRedis constructs a Redis-backed limiter.
func NewRedis(client redis.UniversalClient, keyPrefix string, limit int64, window time.Duration) (*Redis, error) {
	if limit <= 0 || window <= 0 {
		return nil, ErrLimitConfig
	}
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}

	return &Redis{
		client:    client,
		keyPrefix: keyPrefix,
		limit:     limit,
		window:    window,
	}, nil
}

// Allow counts a request against the key's current window.
func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	vals, err := redisAllowScript.Run(ctx, r.client,
		[]string{r.keyPrefix + key},
		r.limit, r.window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis eval: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("ratelimit: redis eval: unexpected reply length %d", len(vals))
	}

	res := Result{
		Allowed:   vals[0] == 1,
		Remaining: vals[1],
	}
	if !res.Allowed {
		res.RetryAfter = time.Duration(vals[2]) * time.Millisecond
	}

	return res, nil
}
