package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"salestracker/internal/amqp"
	"salestracker/internal/connectivity"
	"salestracker/internal/core"
	"salestracker/internal/events"
	"salestracker/internal/records"
)

// Enqueuer appends a record to the local pending queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, rec core.SalesRecord) (int64, error)
}

// SalePublisher announces recorded sales and queued work to other processes.
type SalePublisher interface {
	PublishSaleRecorded(ctx context.Context, msg *amqp.SaleRecordedMessage) error
	PublishFlushRequest(ctx context.Context, reason string) error
	Close() error
}

// SubmitResult tells the caller where the record went.
type SubmitResult struct {
	Record   core.SalesRecord
	RemoteID string // set when written to the record store
	LocalID  int64  // set when queued
	Queued   bool
}

// SalesService orchestrates sale submission across the record store, the
// local queue and the event channels.
type SalesService struct {
	writer    records.RecordWriter
	queue     Enqueuer
	monitor   *connectivity.Monitor
	bus       *events.Bus
	publisher SalePublisher
	now       func() time.Time
}

// NewSalesService wires the service. bus and publisher may be nil.
func NewSalesService(
	writer records.RecordWriter,
	queue Enqueuer,
	monitor *connectivity.Monitor,
	bus *events.Bus,
	publisher SalePublisher,
) *SalesService {
	return &SalesService{
		writer:    writer,
		queue:     queue,
		monitor:   monitor,
		bus:       bus,
		publisher: publisher,
		now:       time.Now,
	}
}

// Submit writes the sale directly when online and queues it otherwise.
// A failed direct write flips the monitor offline and queues the sale.
// A failed enqueue is returned as an error: the sale was not saved.
func (s *SalesService) Submit(ctx context.Context, in core.SaleInput) (SubmitResult, error) {
	rec, err := core.NewSalesRecord(in, s.now())
	if err != nil {
		return SubmitResult{}, fmt.Errorf("build sale: %w", err)
	}
	res := SubmitResult{Record: rec}

	if s.monitor == nil || s.monitor.IsOnline() {
		id, err := s.writer.Insert(ctx, rec)
		if err == nil {
			if s.monitor != nil {
				s.monitor.Report(true)
			}
			rec.ID = id
			res.Record = rec
			res.RemoteID = id
			s.announce(ctx, rec)
			slog.InfoContext(ctx, "Sale recorded", "id", id, "date", rec.Date.String())
			return res, nil
		}
		slog.WarnContext(ctx, "Direct write failed, queueing sale", "date", rec.Date.String(), "error", err)
		if s.monitor != nil {
			s.monitor.Report(false)
		}
	}

	localID, err := s.queue.Enqueue(ctx, rec)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("queue sale: %w", err)
	}
	res.LocalID = localID
	res.Queued = true

	if s.publisher != nil {
		if err := s.publisher.PublishFlushRequest(ctx, "sale queued"); err != nil {
			slog.WarnContext(ctx, "Failed to publish flush request", "local_id", localID, "error", err)
		}
	}
	return res, nil
}

// Replay inserts a sale directly with no queue fallback. Failures are
// returned so the caller can retry.
func (s *SalesService) Replay(ctx context.Context, in core.SaleInput) (SubmitResult, error) {
	rec, err := core.NewSalesRecord(in, s.now())
	if err != nil {
		return SubmitResult{}, fmt.Errorf("build sale: %w", err)
	}
	id, err := s.writer.Insert(ctx, rec)
	if err != nil {
		if s.monitor != nil && errors.Is(err, records.ErrUnavailable) {
			s.monitor.Report(false)
		}
		return SubmitResult{}, fmt.Errorf("replay sale: %w", err)
	}
	if s.monitor != nil {
		s.monitor.Report(true)
	}
	rec.ID = id
	s.announce(ctx, rec)
	slog.InfoContext(ctx, "Replayed sale from client", "id", id, "date", rec.Date.String())
	return SubmitResult{Record: rec, RemoteID: id}, nil
}

func (s *SalesService) announce(ctx context.Context, rec core.SalesRecord) {
	if s.bus != nil {
		r := rec
		s.bus.Publish(events.Event{Type: events.SaleRecorded, Record: &r})
	}
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSaleRecorded(ctx, amqp.NewSaleRecordedMessage(rec)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sale recorded message", "id", rec.ID, "error", err)
		// Don't fail the request - the sale is stored
	}
}

// Close closes the publisher.
func (s *SalesService) Close() error {
	var errs []error
	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	return errors.Join(errs...)
}
