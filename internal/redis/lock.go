package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockWaitExceeded = errors.New("interval lock wait budget exceeded")
)

// Locker serializes scheduling operations that touch the same provider's
// calendar at the same facility. Row locks in Postgres remain the ground
// truth; this lock bounds how long a caller may wait for its turn.
type Locker interface {
	WithIntervalLock(ctx context.Context, providerID, facilityID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisIntervalLocker struct {
	client     *redis.Client
	ttl        time.Duration
	waitBudget time.Duration
}

// NewRedisIntervalLocker creates a locker keyed on (provider, facility).
// Acquisition retries until waitBudget elapses, then fails with
// ErrLockWaitExceeded so callers can surface a retryable condition.
func NewRedisIntervalLocker(client *redis.Client, ttl, waitBudget time.Duration) Locker {
	return &redisIntervalLocker{
		client:     client,
		ttl:        ttl,
		waitBudget: waitBudget,
	}
}

const acquireRetryInterval = 50 * time.Millisecond

func (l *redisIntervalLocker) WithIntervalLock(ctx context.Context, providerID, facilityID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:calendar:%s:%s", providerID.String(), facilityID.String())
	token := uuid.NewString()

	deadline := time.Now().Add(l.waitBudget)
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("acquire interval lock: %w", err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return ErrLockWaitExceeded
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(acquireRetryInterval):
		}
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisIntervalLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release interval lock: %w", err)
	}
	return nil
}
