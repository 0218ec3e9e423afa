// Package lock provides the cross-process flush lock.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 2 * time.Minute

// RedisLocker holds a redis lease while a flush runs so that a server and a
// worker sharing one queue file never flush at the same time.
type RedisLocker struct {
	locker *redislock.Client
	key    string
	ttl    time.Duration
}

func NewRedisLocker(rdb *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = "salestracker:lock:flush"
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisLocker{locker: redislock.New(rdb), key: key, ttl: ttl}
}

// TryLock obtains the lock without waiting. ok is false when it is held
// elsewhere.
func (l *RedisLocker) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	lk, err := l.locker.Obtain(ctx, l.key, l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("obtain %s: %w", l.key, err)
	}

	unlock := func(ctx context.Context) error {
		err := lk.Release(ctx)
		if errors.Is(err, redislock.ErrLockNotHeld) {
			// lease expired during a long flush
			return nil
		}
		return err
	}
	return unlock, true, nil
}
