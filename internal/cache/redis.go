package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"salestracker/internal/core"
)

// RedisSnapshot keeps the dashboard snapshot in Redis. The server reads and
// fills it; the worker invalidates it after flushes that write records.
type RedisSnapshot struct {
	client *redis.Client
	ttl    time.Duration
	key    string

	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ SnapshotCache = (*RedisSnapshot)(nil)

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return rdb, nil
}

func NewRedisSnapshot(client *redis.Client, ttl time.Duration) *RedisSnapshot {
	return &RedisSnapshot{client: client, ttl: ttl, key: "salestracker:" + snapshotKey}
}

// GetSnapshot treats any redis error as a miss so the caller goes to the
// record store.
func (r *RedisSnapshot) GetSnapshot(ctx context.Context) ([]core.SalesRecord, bool) {
	val, err := r.client.Get(ctx, r.key).Result()
	if err == redis.Nil {
		r.misses.Add(1)
		return nil, false
	}
	if err != nil {
		slog.WarnContext(ctx, "Redis snapshot read failed", "error", err)
		r.misses.Add(1)
		return nil, false
	}

	var recs []core.SalesRecord
	if err := json.Unmarshal([]byte(val), &recs); err != nil {
		slog.WarnContext(ctx, "Discarding undecodable snapshot", "error", err)
		r.misses.Add(1)
		return nil, false
	}
	r.hits.Add(1)
	return recs, true
}

func (r *RedisSnapshot) SetSnapshot(ctx context.Context, recs []core.SalesRecord) {
	data, err := json.Marshal(recs)
	if err != nil {
		slog.WarnContext(ctx, "Failed to encode snapshot", "error", err)
		return
	}
	if err := r.client.Set(ctx, r.key, data, r.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "Redis snapshot write failed", "error", err)
	}
}

func (r *RedisSnapshot) Invalidate(ctx context.Context) {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		slog.WarnContext(ctx, "Redis snapshot invalidate failed", "error", err)
	}
}

func (r *RedisSnapshot) Stats() Stats {
	return Stats{Hits: r.hits.Load(), Misses: r.misses.Load()}
}
