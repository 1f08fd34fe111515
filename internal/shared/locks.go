package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// PayrollPeriodLockKey builds redis keys for payroll critical sections.
func PayrollPeriodLockKey(month time.Month, year int) string {
	return fmt.Sprintf("payroll:period:%04d-%02d:lock", year, int(month))
}

// ErrLockHeld indicates another request holds the critical section.
var ErrLockHeld = errors.New("lock already held")

// PeriodLock serialises payroll generation per period across instances. Two
// concurrent generate calls for the same period must not both pass the
// duplicate-period check, so the whole sequence runs under this lock.
type PeriodLock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPeriodLock constructs a PeriodLock with the given lease TTL.
func NewPeriodLock(client *redis.Client, ttl time.Duration) *PeriodLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &PeriodLock{client: client, ttl: ttl}
}

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Acquire takes the lock and returns a release func. ErrLockHeld is returned
// when the key is already set.
func (l *PeriodLock) Acquire(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
