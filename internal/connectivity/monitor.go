// Package connectivity tracks whether the record store is reachable.
//
// The monitor is fed two ways: operations report the outcome of each record
// store call, and an optional probe loop pings the store on an interval.
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type State string

const (
	Online  State = "online"
	Offline State = "offline"
)

// Transition is delivered to subscribers when the state changes.
type Transition struct {
	From State
	To   State
	At   time.Time
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Monitor struct {
	mu          sync.Mutex
	state       State
	since       time.Time
	subs        map[int]chan Transition
	nextSub     int
	onReconnect []func()
	now         func() time.Time

	// probe lifecycle
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMonitor starts in the given state. Most callers start Online and let the
// first failed call flip it.
func NewMonitor(initial State) *Monitor {
	if initial != Offline {
		initial = Online
	}
	return &Monitor{
		state: initial,
		since: time.Now(),
		subs:  make(map[int]chan Transition),
		now:   time.Now,
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) IsOnline() bool {
	return m.State() == Online
}

// Since returns when the current state was entered.
func (m *Monitor) Since() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.since
}

// Report records the outcome of a record store call.
func (m *Monitor) Report(ok bool) {
	next := Offline
	if ok {
		next = Online
	}
	m.set(next)
}

func (m *Monitor) set(next State) {
	m.mu.Lock()
	if m.state == next {
		m.mu.Unlock()
		return
	}
	tr := Transition{From: m.state, To: next, At: m.now()}
	m.state = next
	m.since = tr.At

	subs := make([]chan Transition, 0, len(m.subs))
	for _, ch := range m.subs {
		subs = append(subs, ch)
	}
	var hooks []func()
	if next == Online {
		hooks = append(hooks, m.onReconnect...)
	}
	m.mu.Unlock()

	slog.Info("Connectivity changed", "from", tr.From, "to", tr.To)

	for _, ch := range subs {
		select {
		case ch <- tr:
		default:
			// slow subscriber; it will read State() on its next wake-up
		}
	}
	for _, fn := range hooks {
		go fn()
	}
}

// Subscribe returns a channel of transitions and a cancel func.
func (m *Monitor) Subscribe() (<-chan Transition, func()) {
	ch := make(chan Transition, 4)
	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subs[id] = ch
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
	return ch, cancel
}

// OnReconnect registers fn to run in its own goroutine on every
// Offline to Online transition.
func (m *Monitor) OnReconnect(fn func()) {
	m.mu.Lock()
	m.onReconnect = append(m.onReconnect, fn)
	m.mu.Unlock()
}

// Start probes p every interval until Stop or ctx is done.
func (m *Monitor) Start(ctx context.Context, p Pinger, interval, timeout time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("probe interval must be positive")
	}
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("connectivity monitor is already running")
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	m.mu.Unlock()

	go m.probeLoop(ctx, p, interval, timeout)

	slog.InfoContext(ctx, "Connectivity probe started", "interval", interval)
	return nil
}

func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	stopCh, doneCh := m.stopCh, m.doneCh
	m.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	return nil
}

func (m *Monitor) probeLoop(ctx context.Context, p Pinger, interval, timeout time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.probe(ctx, p, timeout)
	for {
		select {
		case <-m.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx, p, timeout)
		}
	}
}

func (m *Monitor) probe(ctx context.Context, p Pinger, timeout time.Duration) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := p.Ping(pctx)
	if err != nil {
		slog.DebugContext(ctx, "Connectivity probe failed", "error", err)
	}
	m.Report(err == nil)
}
