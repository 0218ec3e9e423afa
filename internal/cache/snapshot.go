package cache

import (
	"context"
	"time"

	"salestracker/internal/core"
)

const snapshotKey = "sales:snapshot"

// SnapshotCache fronts the full record store fetch.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context) ([]core.SalesRecord, bool)
	SetSnapshot(ctx context.Context, recs []core.SalesRecord)
	Invalidate(ctx context.Context)
	Stats() Stats
}

// MemorySnapshot keeps the snapshot in an in-process LRU.
type MemorySnapshot struct {
	lru *LRUCache[[]core.SalesRecord]
}

var _ SnapshotCache = (*MemorySnapshot)(nil)

func NewMemorySnapshot(ttl time.Duration) *MemorySnapshot {
	return &MemorySnapshot{lru: NewLRUCache[[]core.SalesRecord](1, ttl)}
}

func (m *MemorySnapshot) GetSnapshot(context.Context) ([]core.SalesRecord, bool) {
	recs, ok := m.lru.Get(snapshotKey)
	if !ok {
		return nil, false
	}
	return append([]core.SalesRecord(nil), recs...), true
}

func (m *MemorySnapshot) SetSnapshot(_ context.Context, recs []core.SalesRecord) {
	m.lru.Set(snapshotKey, append([]core.SalesRecord(nil), recs...))
}

func (m *MemorySnapshot) Invalidate(context.Context) {
	m.lru.Delete(snapshotKey)
}

func (m *MemorySnapshot) Stats() Stats {
	return m.lru.Stats()
}

// Cleaner exposes the LRU to a Manager.
func (m *MemorySnapshot) Cleaner() Cleaner {
	return m.lru
}
