package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"salestracker/internal/connectivity"
	"salestracker/internal/core"
	"salestracker/internal/events"
)

func coreInput(date, cash, online string) core.SaleInput {
	return core.SaleInput{Date: date, Cash: cash, Online: online}
}

func TestSubmitOnlineWritesDirectly(t *testing.T) {
	w := &fakeWriter{}
	q := &fakeQueue{}
	bus := events.NewBus()
	ch, cancel := bus.Subscribe(events.SaleRecorded)
	defer cancel()
	pub := &fakePublisher{}

	s := NewSalesService(w, q, connectivity.NewMonitor(connectivity.Online), bus, pub)
	res, err := s.Submit(context.Background(), coreInput("2025-01-01", "100", "50,5"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Queued || res.RemoteID == "" {
		t.Fatalf("expected direct write, got %+v", res)
	}
	if res.Record.Cash.Cents != 10000 || res.Record.Online.Cents != 5050 {
		t.Fatalf("unexpected amounts %+v", res.Record)
	}
	if q.len() != 0 {
		t.Fatal("nothing should be queued")
	}

	select {
	case e := <-ch:
		if e.Record == nil || e.Record.ID != res.RemoteID {
			t.Fatalf("unexpected event %+v", e)
		}
	default:
		t.Fatal("expected sale.recorded event")
	}
	if len(pub.sales) != 1 || pub.sales[0].ID != res.RemoteID {
		t.Fatalf("expected one amqp sale message, got %+v", pub.sales)
	}
}

func TestSubmitFallsBackToQueueOnWriteError(t *testing.T) {
	w := &fakeWriter{failAll: true}
	q := &fakeQueue{}
	m := connectivity.NewMonitor(connectivity.Online)
	pub := &fakePublisher{}
	s := NewSalesService(w, q, m, nil, pub)

	res, err := s.Submit(context.Background(), coreInput("2025-01-01", "10", ""))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Queued || res.LocalID != 1 {
		t.Fatalf("expected queued, got %+v", res)
	}
	if m.IsOnline() {
		t.Error("monitor should be offline after a failed write")
	}
	if len(pub.flushes) != 1 {
		t.Errorf("expected a flush request, got %v", pub.flushes)
	}

	// Now offline: no write attempt is made.
	before := w.calls
	if _, err := s.Submit(context.Background(), coreInput("", "1", "1")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if w.calls != before {
		t.Error("offline submit must not try the record store")
	}
	if q.len() != 2 {
		t.Fatalf("queue len = %d, want 2", q.len())
	}
}

func TestSubmitQueueFailureIsAnError(t *testing.T) {
	q := &fakeQueue{failQueue: true}
	s := NewSalesService(&fakeWriter{}, q, connectivity.NewMonitor(connectivity.Offline), nil, nil)

	res, err := s.Submit(context.Background(), coreInput("2025-01-01", "5", "5"))
	if err == nil {
		t.Fatal("a failed enqueue must not be reported as success")
	}
	if res.Queued || res.LocalID != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestSubmitRejectsBadDate(t *testing.T) {
	s := NewSalesService(&fakeWriter{}, &fakeQueue{}, nil, nil, nil)
	_, err := s.Submit(context.Background(), coreInput("2025-13-01", "1", "1"))
	if !errors.Is(err, core.ErrInvalidDate) {
		t.Fatalf("err = %v, want ErrInvalidDate", err)
	}
}

func TestSubmitEmptyDateIsToday(t *testing.T) {
	w := &fakeWriter{}
	s := NewSalesService(w, &fakeQueue{}, nil, nil, nil)
	fixed := time.Date(2025, 6, 15, 22, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	res, err := s.Submit(context.Background(), coreInput("", "abc", "-3"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Record.Date.String() != "2025-06-15" {
		t.Errorf("date = %s", res.Record.Date)
	}
	if !res.Record.Cash.IsZero() || !res.Record.Online.IsZero() {
		t.Errorf("bad amounts should coerce to zero, got %+v", res.Record)
	}
}

func TestSubmitPublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	s := NewSalesService(&fakeWriter{}, &fakeQueue{}, nil, nil, pub)
	if _, err := s.Submit(context.Background(), coreInput("2025-01-01", "1", "")); err != nil {
		t.Fatalf("publish failure must not fail submit: %v", err)
	}
}

func TestReplay(t *testing.T) {
	w := &fakeWriter{}
	q := &fakeQueue{}
	s := NewSalesService(w, q, connectivity.NewMonitor(connectivity.Offline), nil, nil)

	res, err := s.Replay(context.Background(), coreInput("2025-02-02", "3", "4"))
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if res.RemoteID == "" || q.len() != 0 {
		t.Fatalf("replay must write directly, got %+v", res)
	}

	w.setFailAll(true)
	if _, err := s.Replay(context.Background(), coreInput("2025-02-02", "3", "4")); err == nil {
		t.Fatal("replay failure must surface so the client retries")
	}
	if q.len() != 0 {
		t.Fatal("replay never queues")
	}
}

func TestSalesServiceClose(t *testing.T) {
	pub := &fakePublisher{}
	s := NewSalesService(&fakeWriter{}, &fakeQueue{}, nil, nil, pub)
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !pub.closed {
		t.Error("publisher should be closed")
	}
	if err := NewSalesService(&fakeWriter{}, &fakeQueue{}, nil, nil, nil).Close(); err != nil {
		t.Errorf("close without publisher: %v", err)
	}
}
