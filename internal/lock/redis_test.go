package lock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewRedisLockerDefaults(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer rdb.Close()

	l := NewRedisLocker(rdb, "", 0)
	if l.key != "salestracker:lock:flush" {
		t.Errorf("key = %q", l.key)
	}
	if l.ttl != defaultTTL {
		t.Errorf("ttl = %v", l.ttl)
	}
}

func TestTryLockUnreachableRedis(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	unlock, ok, err := NewRedisLocker(rdb, "test", time.Second).TryLock(ctx)
	if err == nil {
		t.Fatal("expected an error from an unreachable redis")
	}
	if ok || unlock != nil {
		t.Fatal("lock must not be reported as held")
	}
}
