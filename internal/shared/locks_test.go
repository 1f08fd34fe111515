package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestPayrollPeriodLockKey(t *testing.T) {
	require.Equal(t, "payroll:period:2026-06:lock", PayrollPeriodLockKey(time.June, 2026))
	require.Equal(t, "payroll:period:2026-12:lock", PayrollPeriodLockKey(time.December, 2026))
}

func TestPeriodLockAcquireAndRelease(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := NewPeriodLock(client, time.Minute)
	key := PayrollPeriodLockKey(time.June, 2026)

	release, err := lock.Acquire(ctx, key)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, key)
	require.ErrorIs(t, err, ErrLockHeld)

	release()

	release2, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	release2()
}

func TestPeriodLockDistinctPeriodsDoNotContend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := NewPeriodLock(client, time.Minute)

	releaseJune, err := lock.Acquire(ctx, PayrollPeriodLockKey(time.June, 2026))
	require.NoError(t, err)
	defer releaseJune()

	releaseJuly, err := lock.Acquire(ctx, PayrollPeriodLockKey(time.July, 2026))
	require.NoError(t, err)
	defer releaseJuly()
}

func TestPeriodLockExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	lock := NewPeriodLock(client, time.Second)
	key := PayrollPeriodLockKey(time.June, 2026)

	_, err := lock.Acquire(ctx, key)
	require.NoError(t, err)

	// A crashed holder never calls release; the lease must lapse on its own.
	mr.FastForward(2 * time.Second)

	release, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	release()
}

func TestPeriodLockNilClientIsNoOp(t *testing.T) {
	var lock *PeriodLock
	release, err := lock.Acquire(context.Background(), "any")
	require.NoError(t, err)
	release()
}
