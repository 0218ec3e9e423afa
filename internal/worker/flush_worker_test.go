package worker

import (
	"context"
	"errors"
	"testing"

	"salestracker/internal/amqp"
	"salestracker/internal/services"
)

type fakeFlusher struct {
	calls int
	res   services.FlushResult
	err   error
}

func (f *fakeFlusher) Flush(context.Context) (services.FlushResult, error) {
	f.calls++
	return f.res, f.err
}

type fakeCounter struct {
	n   int64
	err error
}

func (c fakeCounter) Count(context.Context) (int64, error) { return c.n, c.err }

func TestHandleFlushRequest(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		cancel  bool
		wantErr bool
	}{
		{name: "success"},
		{name: "remote failure is acknowledged", err: errors.New("remote down")},
		{name: "shutdown requeues", err: context.Canceled, cancel: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFlusher{err: tt.err}
			w := NewFlushWorker(f, fakeCounter{})

			ctx, cancel := context.WithCancel(context.Background())
			if tt.cancel {
				cancel()
			} else {
				defer cancel()
			}

			err := w.HandleFlushRequest(ctx, amqp.NewFlushRequestMessage("test"))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if f.calls != 1 {
				t.Fatalf("flush calls = %d, want 1", f.calls)
			}
		})
	}
}

func TestStartupCheck(t *testing.T) {
	t.Run("empty queue does not flush", func(t *testing.T) {
		f := &fakeFlusher{}
		if err := NewFlushWorker(f, fakeCounter{}).StartupCheck(context.Background()); err != nil {
			t.Fatal(err)
		}
		if f.calls != 0 {
			t.Errorf("flush calls = %d, want 0", f.calls)
		}
	})

	t.Run("pending entries flush", func(t *testing.T) {
		f := &fakeFlusher{err: errors.New("still offline")}
		if err := NewFlushWorker(f, fakeCounter{n: 3}).StartupCheck(context.Background()); err != nil {
			t.Fatalf("flush failure must not fail startup: %v", err)
		}
		if f.calls != 1 {
			t.Errorf("flush calls = %d, want 1", f.calls)
		}
	})

	t.Run("count error", func(t *testing.T) {
		if err := NewFlushWorker(&fakeFlusher{}, fakeCounter{err: errors.New("locked")}).StartupCheck(context.Background()); err == nil {
			t.Fatal("expected count error")
		}
	})
}
