package ratelimit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, admits the event only when under the limit
// and reports the oldest surviving entry so callers can compute the reset.
// Scores are unix milliseconds. Rejected events are not recorded, so a
// client hammering the endpoint does not extend its own lockout.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, limit - count - 1, now}
end
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {0, 0, tonumber(oldest[2])}
`)

// RedisLimiter is a sliding window limiter shared by every API replica
// pointing at the same Redis.
type RedisLimiter struct {
	Client *redis.Client
	Prefix string
	now    func() time.Time
}

// Allow records an event for key when fewer than max events happened within
// window.
func (l RedisLimiter) Allow(ctx context.Context, key string, window time.Duration, max int) (Result, error) {
	now := time.Now()
	if l.now != nil {
		now = l.now()
	}
	if l.Client == nil || max <= 0 || window <= 0 {
		return Result{Allowed: true, Remaining: max, Reset: now.Add(window)}, nil
	}

	out, err := slidingWindow.Run(ctx, l.Client, []string{l.Prefix + key},
		now.UnixMilli(), window.Milliseconds(), max, uuid.NewString()).Int64Slice()
	if err != nil {
		return Result{Reset: now.Add(window)}, err
	}
	return Result{
		Allowed:   out[0] == 1,
		Remaining: int(out[1]),
		Reset:     time.UnixMilli(out[2]).Add(window).In(now.Location()),
	}, nil
}
