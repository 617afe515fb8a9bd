package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the key's sorted set to the current window, then
// admits the frame if fewer than limit entries remain.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local seq_key = KEYS[2]
	local now = tonumber(ARGV[1])
	local window_ms = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window_ms)
	if redis.call('ZCARD', key) >= limit then
		return 0
	end

	local seq = redis.call('INCR', seq_key)
	redis.call('ZADD', key, now, now .. ':' .. seq)
	redis.call('PEXPIRE', key, window_ms)
	redis.call('PEXPIRE', seq_key, window_ms)
	return 1
`)

// Redis is a sliding-window limiter shared by every process using the same
// Redis instance.
type Redis struct {
	client *redis.Client
	cfg    Config
	prefix string
	now    func() time.Time
}

func NewRedis(client *redis.Client, cfg Config, prefix string) *Redis {
	return &Redis{
		client: client,
		cfg:    cfg.normalized(),
		prefix: prefix,
		now:    time.Now,
	}
}

// Allow records one frame for key if the window still has room.
func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := l.prefix + key
	allowed, err := slidingWindow.Run(ctx, l.client,
		[]string{redisKey, redisKey + ":seq"},
		l.now().UnixMilli(),
		l.cfg.Interval.Milliseconds(),
		l.cfg.Burst,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit script: %w", err)
	}
	return allowed == 1, nil
}
