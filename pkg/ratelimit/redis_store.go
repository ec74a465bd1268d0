package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript is the Redis-side equivalent of Advance. Running it as a
// script makes the read-modify-write atomic per key across instances.
var consumeScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local window = tonumber(ARGV[3])

local start = tonumber(redis.call('HGET', key, 'start'))
local count = tonumber(redis.call('HGET', key, 'count'))
if start == nil or count == nil or now - start >= window then
  start = now
  count = 0
end

local allowed = 0
if count + 1 <= limit then
  count = count + 1
  allowed = 1
end

redis.call('HSET', key, 'start', start, 'count', count)
redis.call('PEXPIREAT', key, start + window)
return {allowed, count, start}
`)

// RedisStore keeps buckets in Redis so limits hold across instances.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisStore creates a RedisStore. Keys are stored as prefix+key.
func NewRedisStore(client redis.Scripter, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

var _ Store = (*RedisStore)(nil)

// Consume implements Store.
func (s *RedisStore) Consume(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	vals, err := consumeScript.Run(ctx, s.client,
		[]string{s.prefix + key},
		now.UnixMilli(), limit, window.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("failed to consume rate limit token: %w", err)
	}
	if len(vals) != 3 {
		return Result{}, fmt.Errorf("unexpected rate limit script reply: %v", vals)
	}

	allowed, count, start := vals[0] == 1, int(vals[1]), vals[2]
	return Result{
		Allowed:   allowed,
		Remaining: max(limit-count, 0),
		ResetAt:   time.UnixMilli(start).Add(window),
	}, nil
}
