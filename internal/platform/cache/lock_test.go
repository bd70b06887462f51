package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockerExcludesSecondHolder(t *testing.T) {
	mr := miniredis.RunT(t)
	locker := NewLocker(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	locker.retries = 1
	locker.backoff = 10 * time.Millisecond
	ctx := context.Background()

	release, err := locker.Lock(ctx, "report:lock:190:2024-03-01", 10*time.Second)
	require.NoError(t, err)

	_, err = locker.Lock(ctx, "report:lock:190:2024-03-01", 10*time.Second)
	assert.ErrorIs(t, err, ErrLockBusy)

	release()
	release2, err := locker.Lock(ctx, "report:lock:190:2024-03-01", 10*time.Second)
	require.NoError(t, err)
	release2()
}
