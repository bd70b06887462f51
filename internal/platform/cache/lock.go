package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockBusy is returned when the lock is still held after all retries.
var ErrLockBusy = errors.New("platform/cache: lock busy")

// Locker hands out short lived distributed locks.
type Locker struct {
	client  *redislock.Client
	backoff time.Duration
	retries int
}

// NewLocker wraps the client with a distributed lock helper.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: redislock.New(client), backoff: 100 * time.Millisecond, retries: 30}
}

// Lock obtains key for ttl, retrying with a linear backoff. The returned func releases it.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	lock, err := l.client.Obtain(ctx, key, ttl, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.backoff), l.retries),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrLockBusy
		}
		return nil, fmt.Errorf("platform/cache: obtain %s: %w", key, err)
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
