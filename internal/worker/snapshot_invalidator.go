package worker

import (
	"context"
	"log/slog"

	"salestracker/internal/events"
)

// SnapshotCache is the part of the shared snapshot cache the worker touches.
type SnapshotCache interface {
	Invalidate(ctx context.Context)
}

// SnapshotInvalidator drops the shared dashboard snapshot whenever a flush
// in this process writes records, so the server's next refresh refetches.
type SnapshotInvalidator struct {
	bus   *events.Bus
	cache SnapshotCache
}

func NewSnapshotInvalidator(bus *events.Bus, cache SnapshotCache) *SnapshotInvalidator {
	return &SnapshotInvalidator{bus: bus, cache: cache}
}

// Run blocks until ctx is done.
func (s *SnapshotInvalidator) Run(ctx context.Context) error {
	changes, unsubscribe := s.bus.Subscribe(events.RecordsChanged)
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			s.cache.Invalidate(ctx)
			slog.DebugContext(ctx, "Invalidated shared snapshot after flush")
		}
	}
}
