package core

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns a configured go-redis client from URL (e.g., redis://localhost:6379/0).
func NewRedisClient(redisURL string) (*redis.Client, error) {
	if redisURL == "" {
		return nil, errors.New("empty redis url")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return client, nil
}

// LoginLimiter throttles login attempts per client using a fixed window
// counter in redis. It is admission control for the expensive password
// hashing path, not a substitute for credential checks.
type LoginLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewLoginLimiter builds a limiter; limit <= 0 disables throttling.
func NewLoginLimiter(client *redis.Client, limit int, window time.Duration) *LoginLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &LoginLimiter{client: client, limit: limit, window: window}
}

// Allow records one attempt for key and reports whether it is within the
// window limit. INCR and EXPIRE run in one script so the window start cannot
// be lost between the two commands. Redis being unreachable fails open:
// availability of login is preferred over throttling.
func (l *LoginLimiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil || l.limit <= 0 {
		return true
	}
	script := redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)
	res, err := script.Run(ctx, l.client, []string{"login_attempts:" + key}, l.window.Milliseconds()).Int64()
	if err != nil {
		return true
	}
	return res <= int64(l.limit)
}
