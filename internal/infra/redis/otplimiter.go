package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hostelcart/batch-engine/internal/otp"
	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultAttemptsPerMin int64 = 5
	attemptWindowSeconds        = 60
)

var attemptScript = goredis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("EXPIRE", KEYS[1], ARGV[2])
end
if current > tonumber(ARGV[1]) then
  return 0
end
return 1
`)

var _ otp.AttemptLimiter = (*RedisAttemptLimiter)(nil)

// RedisAttemptLimiter bounds delivery-code verification attempts per order
// per minute, shared across engine instances.
type RedisAttemptLimiter struct {
	client         *goredis.Client
	attemptsPerMin int64
	now            func() time.Time
	script         *goredis.Script
}

func NewRedisAttemptLimiter(client *goredis.Client, attemptsPerMin int) (*RedisAttemptLimiter, error) {
	return newRedisAttemptLimiter(client, int64(attemptsPerMin), time.Now)
}

func newRedisAttemptLimiter(
	client *goredis.Client,
	attemptsPerMin int64,
	nowFn func() time.Time,
) (*RedisAttemptLimiter, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if attemptsPerMin <= 0 {
		attemptsPerMin = defaultAttemptsPerMin
	}
	if nowFn == nil {
		nowFn = time.Now
	}

	return &RedisAttemptLimiter{
		client:         client,
		attemptsPerMin: attemptsPerMin,
		now:            nowFn,
		script:         attemptScript,
	}, nil
}

func (r *RedisAttemptLimiter) Allow(ctx context.Context, orderID string) (bool, error) {
	if r == nil || r.client == nil || r.script == nil {
		return false, fmt.Errorf("attempt limiter is not initialized")
	}

	trimmedID := strings.TrimSpace(orderID)
	if trimmedID == "" {
		return false, fmt.Errorf("order id is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	bucket := r.now().UTC().Unix() / attemptWindowSeconds
	key := fmt.Sprintf("otpattempts:%s:%d", trimmedID, bucket)
	result, err := r.script.Run(ctx, r.client, []string{key}, r.attemptsPerMin, attemptWindowSeconds).Int()
	if err != nil {
		return false, fmt.Errorf("failed to evaluate attempt limit: %w", err)
	}

	return result == 1, nil
}
