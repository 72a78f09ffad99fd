package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces limiter keys in a shared Redis database.
const keyPrefix = "entitle:ratelimit:"

// checkScript implements the sliding window atomically: prune, count, and
// conditionally record in one round trip. KEYS[1] is the sorted-set key;
// ARGV are now (unix micros), window (micros), max requests, and a unique
// member for this request. Returns {allowed, current, oldest score}.
var checkScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local max = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local current = redis.call('ZCARD', KEYS[1])
local allowed = 0
if current < max then
  redis.call('ZADD', KEYS[1], now, ARGV[4])
  redis.call('PEXPIRE', KEYS[1], math.ceil(window / 1000))
  allowed = 1
  current = current + 1
end
local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
if oldest[2] then
  return {allowed, current, oldest[2]}
end
return {allowed, current, tostring(now)}
`)

// RedisLimiter enforces the sliding window against a shared Redis store, so
// the limit holds across process instances. Each key is a sorted set of
// request timestamps scored in unix microseconds.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    Config
	clock  func() time.Time

	// seq disambiguates members recorded within the same clock reading.
	// Two concurrent requests sharing a nanosecond must not collapse into
	// one sorted-set member, or ZADD would count them as a single request.
	seq atomic.Int64
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed limiter for the given config.
// MaxKeys is ignored: per-key PEXPIRE bounds the key space instead.
func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg,
		clock:  time.Now,
	}
}

// WithClock overrides the limiter's time source. For tests.
func (l *RedisLimiter) WithClock(clock func() time.Time) *RedisLimiter {
	l.clock = clock
	return l
}

// Check evaluates and records a request for the key.
func (l *RedisLimiter) Check(ctx context.Context, key string) (Result, error) {
	now := l.clock()
	if l.cfg.MaxRequests <= 0 {
		return Result{ResetAt: now.Add(l.cfg.Window)}, nil
	}

	member := fmt.Sprintf("%d-%d", now.UnixNano(), l.seq.Add(1))
	raw, err := checkScript.Run(ctx, l.client,
		[]string{keyPrefix + key},
		now.UnixMicro(),
		l.cfg.Window.Microseconds(),
		l.cfg.MaxRequests,
		member,
	).Int64Slice()
	if err != nil {
		return Result{}, fmt.Errorf("ratelimit: redis check %q: %w", key, err)
	}
	if len(raw) != 3 {
		return Result{}, fmt.Errorf("ratelimit: redis check %q: unexpected reply %v", key, raw)
	}

	allowed := raw[0] == 1
	current := int(raw[1])
	oldest := time.UnixMicro(raw[2])

	res := Result{
		Allowed:   allowed,
		Current:   current,
		Remaining: max(0, l.cfg.MaxRequests-current),
		ResetAt:   now.Add(l.cfg.Window),
	}
	if current > 0 {
		res.ResetAt = oldest.Add(l.cfg.Window)
	}
	return res, nil
}

// Status computes the key's window state without consuming a request.
func (l *RedisLimiter) Status(ctx context.Context, key string) (Result, error) {
	now := l.clock()
	cutoff := now.Add(-l.cfg.Window)

	pipe := l.client.Pipeline()
	countCmd := pipe.ZCount(ctx, keyPrefix+key,
		"("+strconv.FormatInt(cutoff.UnixMicro(), 10), "+inf")
	oldestCmd := pipe.ZRangeByScoreWithScores(ctx, keyPrefix+key, &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(cutoff.UnixMicro(), 10), Max: "+inf",
		Offset: 0, Count: 1,
	})
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return Result{}, fmt.Errorf("ratelimit: redis status %q: %w", key, err)
	}

	current := int(countCmd.Val())
	res := Result{
		Allowed:   current < l.cfg.MaxRequests,
		Current:   current,
		Remaining: max(0, l.cfg.MaxRequests-current),
		ResetAt:   now.Add(l.cfg.Window),
	}
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		res.ResetAt = time.UnixMicro(int64(oldest[0].Score)).Add(l.cfg.Window)
	}
	return res, nil
}

// Reset unconditionally clears the key's record.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis reset %q: %w", key, err)
	}
	return nil
}
