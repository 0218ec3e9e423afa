package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"salestracker/internal/amqp"
	"salestracker/internal/core"
)

var errRemoteDown = errors.New("remote down")

// fakeWriter fails the listed call numbers (1-based) and records the rest.
type fakeWriter struct {
	mu       sync.Mutex
	calls    int
	failOn   map[int]bool
	failAll  bool
	written  []core.SalesRecord
	onInsert func()
}

func (w *fakeWriter) Insert(_ context.Context, rec core.SalesRecord) (string, error) {
	w.mu.Lock()
	w.calls++
	n := w.calls
	fail := w.failAll || w.failOn[n]
	hook := w.onInsert
	if !fail {
		w.written = append(w.written, rec)
	}
	w.mu.Unlock()

	if hook != nil {
		hook()
	}
	if fail {
		return "", errRemoteDown
	}
	return fmt.Sprintf("remote-%d", n), nil
}

func (w *fakeWriter) ListAll(context.Context) ([]core.SalesRecord, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAll {
		return nil, errRemoteDown
	}
	return append([]core.SalesRecord(nil), w.written...), nil
}

func (w *fakeWriter) setFailAll(v bool) {
	w.mu.Lock()
	w.failAll = v
	w.mu.Unlock()
}

func (w *fakeWriter) writtenCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.written)
}

// fakeQueue is an in-memory PendingQueue and Enqueuer.
type fakeQueue struct {
	mu        sync.Mutex
	nextID    int64
	entries   []core.PendingEntry
	clears    int
	failQueue bool
}

func (q *fakeQueue) Enqueue(_ context.Context, rec core.SalesRecord) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failQueue {
		return 0, errors.New("disk full")
	}
	q.nextID++
	q.entries = append(q.entries, core.PendingEntry{LocalID: q.nextID, Record: rec})
	return q.nextID, nil
}

func (q *fakeQueue) ListPending(context.Context) ([]core.PendingEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failQueue {
		return nil, errors.New("disk unreadable")
	}
	return append([]core.PendingEntry(nil), q.entries...), nil
}

func (q *fakeQueue) ClearThrough(_ context.Context, lastID int64) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clears++
	var kept []core.PendingEntry
	var n int64
	for _, e := range q.entries {
		if e.LocalID <= lastID {
			n++
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return n, nil
}

func (q *fakeQueue) Count(context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

type fakeLocker struct {
	held     bool
	err      error
	unlocked int
}

func (l *fakeLocker) TryLock(context.Context) (func(context.Context) error, bool, error) {
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) error { l.unlocked++; return nil }, true, nil
}

type fakePublisher struct {
	mu      sync.Mutex
	sales   []*amqp.SaleRecordedMessage
	flushes []string
	err     error
	closed  bool
}

func (p *fakePublisher) PublishSaleRecorded(_ context.Context, msg *amqp.SaleRecordedMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sales = append(p.sales, msg)
	return nil
}

func (p *fakePublisher) PublishFlushRequest(_ context.Context, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.flushes = append(p.flushes, reason)
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func sale(date string, cash, online int64) core.SalesRecord {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.SalesRecord{Date: d, Cash: core.Money{Cents: cash}, Online: core.Money{Cents: online}}
}
