package worker

import (
	"context"
	"fmt"
	"log/slog"

	"salestracker/internal/amqp"
	"salestracker/internal/services"
)

// Flusher runs one flush of the pending queue.
type Flusher interface {
	Flush(ctx context.Context) (services.FlushResult, error)
}

// Counter reports how many entries are pending.
type Counter interface {
	Count(ctx context.Context) (int64, error)
}

// FlushWorker turns AMQP flush requests into flushes of the shared queue.
type FlushWorker struct {
	flusher Flusher
	pending Counter
}

func NewFlushWorker(flusher Flusher, pending Counter) *FlushWorker {
	return &FlushWorker{flusher: flusher, pending: pending}
}

// HandleFlushRequest flushes the queue. A failed flush is logged and the
// request acknowledged: the entries stay queued and the next trigger retries
// them, so requeueing the request would only spin. Only a shutdown mid-flush
// returns an error, which puts the request back for the next worker.
func (w *FlushWorker) HandleFlushRequest(ctx context.Context, msg *amqp.FlushRequestMessage) error {
	slog.InfoContext(ctx, "Processing flush request",
		"reason", msg.Reason,
		"requested_at", msg.Timestamp)

	res, err := w.flusher.Flush(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("flush interrupted: %w", ctx.Err())
		}
		slog.WarnContext(ctx, "Flush request left entries queued",
			"written", res.Written,
			"remaining", res.Failed,
			"error", err)
		return nil
	}

	slog.InfoContext(ctx, "Flush request handled",
		"written", res.Written,
		"cleared", res.Cleared,
		"skipped", res.Skipped)
	return nil
}

// StartupCheck reports and drains whatever a previous run left queued.
func (w *FlushWorker) StartupCheck(ctx context.Context) error {
	n, err := w.pending.Count(ctx)
	if err != nil {
		return fmt.Errorf("count pending sales: %w", err)
	}
	if n == 0 {
		slog.InfoContext(ctx, "No pending sales found on startup")
		return nil
	}

	slog.InfoContext(ctx, "Found pending sales on startup, flushing", "count", n)
	if _, err := w.flusher.Flush(ctx); err != nil {
		slog.WarnContext(ctx, "Startup flush failed, will retry on next trigger", "error", err)
	}
	return nil
}
