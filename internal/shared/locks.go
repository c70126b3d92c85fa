package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serialises close operations that must not run concurrently.
type Locker interface {
	// Acquire takes the named lock or returns ErrLockHeld. The returned
	// function releases the lock and is safe to defer.
	Acquire(ctx context.Context, key string) (func(), error)
}

// PayrollCloseKey names the advisory lock guarding a month close.
func PayrollCloseKey(p Period) string {
	return fmt.Sprintf("gaja:payroll:close:%s", p.Key())
}

// InvoiceCloseKey names the advisory lock guarding one invoice close.
func InvoiceCloseKey(ps, user int64, invoiceNo string) string {
	return fmt.Sprintf("gaja:invoice:close:%d:%d:%s", ps, user, invoiceNo)
}

// releaseScript deletes the lock only when still owned by the caller.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker implements Locker on top of SET NX with a TTL.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker builds a locker. The TTL bounds how long a crashed close
// can keep its month or invoice locked.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl}
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
