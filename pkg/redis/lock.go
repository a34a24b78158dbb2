package redis

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only when it still holds our token, so an
// expired lock that another owner re-acquired is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker hands out short-lived exclusive locks using SET NX PX.
type Locker struct {
	db     redis.UniversalClient
	prefix string
}

// NewLocker creates a Locker. Keys are namespaced with prefix.
func NewLocker(client redis.UniversalClient, prefix string) *Locker {
	return &Locker{db: client, prefix: prefix}
}

// TryLock attempts to take key for ttl without waiting. When acquired is
// false the lock is held by someone else and release is nil.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error) {
	token := uuid.NewString()
	fullKey := l.prefix + key

	ok, err := l.db.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	return func(ctx context.Context) error {
		n, err := releaseScript.Run(ctx, l.db, []string{fullKey}, token).Int()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrLockNotHeld
		}
		return nil
	}, true, nil
}

// IsLockNotHeld reports whether err means the lock expired before release.
func IsLockNotHeld(err error) bool {
	return errors.Is(err, ErrLockNotHeld)
}
