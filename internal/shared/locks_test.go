package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *RedisLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, time.Minute)
}

func TestRedisLockerSerialises(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()
	key := PayrollCloseKey(Period{Year: 2025, Month: 1})

	release, err := locker.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrLockHeld)

	release()

	release2, err := locker.Acquire(ctx, key)
	require.NoError(t, err)
	release2()
}

func TestLockKeysAreDistinct(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, InvoiceCloseKey(1, 7, "S-100"))
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := locker.Acquire(ctx, InvoiceCloseKey(2, 7, "S-100"))
	require.NoError(t, err)
	releaseB()
}
