package redisx

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrWithWindow bumps the counter and gives it a TTL in one atomic step. A
// key found without a TTL gets one too, so a counter can never outlive its
// window.
var incrWithWindow = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// LoginLimiter counts failed logins per key inside a fixed window that starts
// at the first failure.
type LoginLimiter struct {
	rdb    Cmdable
	max    int
	window time.Duration
}

func NewLoginLimiter(rdb Cmdable, maxFailures int, window time.Duration) *LoginLimiter {
	return &LoginLimiter{rdb: rdb, max: maxFailures, window: window}
}

func (l *LoginLimiter) Blocked(ctx context.Context, key string) (bool, error) {
	s, err := l.rdb.Get(ctx, fmt.Sprintf(KeyLoginFailures, key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return false, fmt.Errorf("login counter %q: %w", s, err)
	}
	return n >= l.max, nil
}

func (l *LoginLimiter) RecordFailure(ctx context.Context, key string) error {
	k := fmt.Sprintf(KeyLoginFailures, key)
	return incrWithWindow.Run(ctx, l.rdb, []string{k}, l.window.Milliseconds()).Err()
}

func (l *LoginLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, fmt.Sprintf(KeyLoginFailures, key)).Err()
}
