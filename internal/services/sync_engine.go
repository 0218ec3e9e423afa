package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"salestracker/internal/connectivity"
	"salestracker/internal/core"
	"salestracker/internal/events"
	"salestracker/internal/records"
)

// PendingQueue is the part of the local queue the flush needs.
type PendingQueue interface {
	ListPending(ctx context.Context) ([]core.PendingEntry, error)
	ClearThrough(ctx context.Context, lastID int64) (int64, error)
	Count(ctx context.Context) (int64, error)
}

// FlushLocker guards a flush across processes sharing one queue file.
// ok is false when another process holds the lock.
type FlushLocker interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}

// SyncEngineConfig holds configuration for the sync engine
type SyncEngineConfig struct {
	// Interval is the periodic background wake (default: 30s). Zero disables it.
	Interval time.Duration

	// WriteTimeout bounds a single record store insert (default: 10s)
	WriteTimeout time.Duration
}

func DefaultSyncEngineConfig() SyncEngineConfig {
	return SyncEngineConfig{
		Interval:     30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// FlushResult describes one flush attempt.
type FlushResult struct {
	Attempted int       `json:"attempted"`
	Written   int       `json:"written"`
	Cleared   int64     `json:"cleared"`
	Failed    int       `json:"failed"`
	Skipped   bool      `json:"skipped"`
	Err       string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// SyncEngine replays the local pending queue into the record store.
type SyncEngine struct {
	queue   PendingQueue
	writer  records.RecordWriter
	monitor *connectivity.Monitor
	bus     *events.Bus
	locker  FlushLocker
	config  SyncEngineConfig

	group singleflight.Group

	resultMu sync.Mutex
	last     *FlushResult

	flushOK     atomic.Int64
	flushFailed atomic.Int64

	// Lifecycle management
	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	triggerCh chan struct{}
}

// NewSyncEngine wires the engine. bus and locker may be nil.
func NewSyncEngine(
	queue PendingQueue,
	writer records.RecordWriter,
	monitor *connectivity.Monitor,
	bus *events.Bus,
	locker FlushLocker,
	config SyncEngineConfig,
) *SyncEngine {
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultSyncEngineConfig().WriteTimeout
	}
	return &SyncEngine{
		queue:     queue,
		writer:    writer,
		monitor:   monitor,
		bus:       bus,
		locker:    locker,
		config:    config,
		triggerCh: make(chan struct{}, 1),
	}
}

// Flush replays the pending batch in enqueue order. It stops at the first
// failed write and then leaves the queue untouched; entries already written
// are sent again on the next flush. The queue is cleared only through the
// last entry of the batch it read, so entries queued during the flush stay.
//
// Concurrent calls share one in-flight flush.
func (e *SyncEngine) Flush(ctx context.Context) (FlushResult, error) {
	v, err, shared := e.group.Do("flush", func() (interface{}, error) {
		return e.flush(ctx)
	})
	res := v.(FlushResult)
	if shared {
		slog.DebugContext(ctx, "Joined in-flight flush")
	}
	return res, err
}

func (e *SyncEngine) flush(ctx context.Context) (FlushResult, error) {
	res := FlushResult{At: time.Now().UTC()}

	if e.locker != nil {
		unlock, ok, err := e.locker.TryLock(ctx)
		if err != nil {
			return e.finish(ctx, res, fmt.Errorf("acquire flush lock: %w", err))
		}
		if !ok {
			slog.InfoContext(ctx, "Flush skipped, lock held by another process")
			res.Skipped = true
			return e.finish(ctx, res, nil)
		}
		defer func() {
			if err := unlock(context.Background()); err != nil {
				slog.WarnContext(ctx, "Failed to release flush lock", "error", err)
			}
		}()
	}

	entries, err := e.queue.ListPending(ctx)
	if err != nil {
		return e.finish(ctx, res, fmt.Errorf("list pending: %w", err))
	}
	if len(entries) == 0 {
		return e.finish(ctx, res, nil)
	}
	res.Attempted = len(entries)

	slog.InfoContext(ctx, "Flushing pending sales", "count", len(entries))

	for _, entry := range entries {
		if err := e.write(ctx, entry); err != nil {
			res.Failed = res.Attempted - res.Written
			if e.monitor != nil {
				e.monitor.Report(false)
			}
			slog.WarnContext(ctx, "Flush stopped, queue left intact",
				"local_id", entry.LocalID,
				"written", res.Written,
				"remaining", res.Failed,
				"error", err)
			if res.Written > 0 && e.bus != nil {
				e.bus.Publish(events.Event{Type: events.RecordsChanged})
			}
			return e.finish(ctx, res, fmt.Errorf("write pending sale %d: %w", entry.LocalID, err))
		}
		res.Written++
	}

	lastID := entries[len(entries)-1].LocalID
	cleared, err := e.queue.ClearThrough(ctx, lastID)
	if err != nil {
		return e.finish(ctx, res, fmt.Errorf("clear pending through %d: %w", lastID, err))
	}
	res.Cleared = cleared

	if e.monitor != nil {
		e.monitor.Report(true)
	}
	if e.bus != nil {
		e.bus.Publish(events.Event{Type: events.RecordsChanged})
	}

	slog.InfoContext(ctx, "Flush complete", "written", res.Written, "cleared", res.Cleared)
	return e.finish(ctx, res, nil)
}

func (e *SyncEngine) write(ctx context.Context, entry core.PendingEntry) error {
	wctx, cancel := context.WithTimeout(ctx, e.config.WriteTimeout)
	defer cancel()
	_, err := e.writer.Insert(wctx, entry.Record)
	return err
}

func (e *SyncEngine) finish(ctx context.Context, res FlushResult, err error) (FlushResult, error) {
	if err != nil {
		res.Err = err.Error()
		e.flushFailed.Add(1)
		slog.ErrorContext(ctx, "Flush failed", "error", err)
	} else if !res.Skipped {
		e.flushOK.Add(1)
	}
	e.resultMu.Lock()
	e.last = &res
	e.resultMu.Unlock()
	return res, err
}

// LastResult returns the most recent flush outcome, if any.
func (e *SyncEngine) LastResult() (FlushResult, bool) {
	e.resultMu.Lock()
	defer e.resultMu.Unlock()
	if e.last == nil {
		return FlushResult{}, false
	}
	return *e.last, true
}

// FlushCounts returns how many flushes completed and failed since start.
// Skipped flushes count as neither.
func (e *SyncEngine) FlushCounts() (ok, failed int64) {
	return e.flushOK.Load(), e.flushFailed.Load()
}

// Trigger asks the running loop to flush soon. Calls coalesce.
func (e *SyncEngine) Trigger() {
	select {
	case e.triggerCh <- struct{}{}:
	default:
	}
}

// Start begins the flush loop. Returns an error if already running.
func (e *SyncEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return fmt.Errorf("sync engine is already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	var transitions <-chan connectivity.Transition
	cancelSub := func() {}
	if e.monitor != nil {
		transitions, cancelSub = e.monitor.Subscribe()
	}

	go e.runLoop(ctx, transitions, cancelSub)

	slog.InfoContext(ctx, "Sync engine started", "interval", e.config.Interval)
	return nil
}

// Stop gracefully stops the engine and waits for an in-flight flush.
func (e *SyncEngine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	stopCh, doneCh := e.stopCh, e.doneCh
	e.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync engine stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync engine stop timed out")
		return ctx.Err()
	}

	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	return nil
}

func (e *SyncEngine) IsRunning() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *SyncEngine) runLoop(ctx context.Context, transitions <-chan connectivity.Transition, cancelSub func()) {
	defer close(e.doneCh)
	defer cancelSub()

	var tick <-chan time.Time
	if e.config.Interval > 0 {
		ticker := time.NewTicker(e.config.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	// Flush on startup so a queue left by a previous run drains
	e.wake(ctx, false)

	for {
		select {
		case <-e.stopCh:
			return
		case <-ctx.Done():
			return
		case tr := <-transitions:
			if tr.To == connectivity.Online {
				e.wake(ctx, true)
			}
		case <-e.triggerCh:
			e.wake(ctx, true)
		case <-tick:
			e.wake(ctx, false)
		}
	}
}

// wake runs a flush. Periodic wakes do nothing while offline; explicit
// triggers and reconnect edges always try.
func (e *SyncEngine) wake(ctx context.Context, force bool) {
	if !force && e.monitor != nil && !e.monitor.IsOnline() {
		return
	}
	_, _ = e.Flush(ctx)
}
