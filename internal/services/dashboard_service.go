package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"salestracker/internal/cache"
	"salestracker/internal/core"
	"salestracker/internal/events"
	"salestracker/internal/records"
)

// DashboardConfig holds configuration for the dashboard service
type DashboardConfig struct {
	// PollInterval is how often the snapshot is refetched (default: 60s). Zero disables polling.
	PollInterval time.Duration

	// FetchTimeout bounds a full record store read (default: 15s)
	FetchTimeout time.Duration

	Window core.Window
}

func DefaultDashboardConfig() DashboardConfig {
	return DashboardConfig{
		PollInterval: 60 * time.Second,
		FetchTimeout: 15 * time.Second,
		Window:       core.DefaultWindow(),
	}
}

// Snapshot is the last-known full record list.
type Snapshot struct {
	Records     []core.SalesRecord
	FetchedAt   time.Time
	LastError   string
	LastErrorAt time.Time
}

// ChartQuery selects a series. Zero Month and End mean the current month
// and today.
type ChartQuery struct {
	Period core.Period
	View   core.ValueView
	Month  core.YearMonth
	End    core.Date
}

type ChartResult struct {
	Period    core.Period       `json:"period"`
	View      core.ValueView    `json:"view"`
	Label     string            `json:"label"`
	Points    []core.ChartPoint `json:"points"`
	Summary   core.Summary      `json:"summary"`
	Stale     bool              `json:"stale"`
	Error     string            `json:"error,omitempty"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

// DashboardService keeps a snapshot of the record store and aggregates it
// on demand. A failed fetch keeps the previous snapshot.
type DashboardService struct {
	lister records.RecordLister
	cache  cache.SnapshotCache
	bus    *events.Bus
	config DashboardConfig
	now    func() time.Time

	group singleflight.Group

	snapMu sync.RWMutex
	snap   Snapshot

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewDashboardService wires the service. snapshots and bus may be nil.
func NewDashboardService(lister records.RecordLister, snapshots cache.SnapshotCache, bus *events.Bus, config DashboardConfig) *DashboardService {
	def := DefaultDashboardConfig()
	if config.FetchTimeout <= 0 {
		config.FetchTimeout = def.FetchTimeout
	}
	if config.Window == (core.Window{}) {
		config.Window = def.Window
	}
	return &DashboardService{
		lister: lister,
		cache:  snapshots,
		bus:    bus,
		config: config,
		now:    time.Now,
	}
}

// Refresh loads the snapshot, from the cache when it holds one.
func (d *DashboardService) Refresh(ctx context.Context) error {
	return d.refresh(ctx, true)
}

// Reload bypasses and replaces the cached snapshot.
func (d *DashboardService) Reload(ctx context.Context) error {
	if d.cache != nil {
		d.cache.Invalidate(ctx)
	}
	return d.refresh(ctx, false)
}

func (d *DashboardService) refresh(ctx context.Context, useCache bool) error {
	key := "reload"
	if useCache {
		key = "refresh"
	}
	_, err, _ := d.group.Do(key, func() (interface{}, error) {
		if useCache && d.cache != nil {
			if recs, ok := d.cache.GetSnapshot(ctx); ok {
				d.store(recs)
				return nil, nil
			}
		}

		fctx, cancel := context.WithTimeout(ctx, d.config.FetchTimeout)
		defer cancel()

		recs, err := d.lister.ListAll(fctx)
		if err != nil {
			d.snapMu.Lock()
			d.snap.LastError = err.Error()
			d.snap.LastErrorAt = d.now()
			d.snapMu.Unlock()
			slog.WarnContext(ctx, "Dashboard refresh failed, keeping last snapshot", "error", err)
			return nil, fmt.Errorf("list records: %w", err)
		}

		d.store(recs)
		if d.cache != nil {
			d.cache.SetSnapshot(ctx, recs)
		}
		slog.DebugContext(ctx, "Dashboard snapshot refreshed", "records", len(recs))
		return nil, nil
	})
	return err
}

func (d *DashboardService) store(recs []core.SalesRecord) {
	d.snapMu.Lock()
	d.snap.Records = recs
	d.snap.FetchedAt = d.now()
	d.snap.LastError = ""
	d.snap.LastErrorAt = time.Time{}
	d.snapMu.Unlock()
}

// Snapshot returns a copy of the current snapshot.
func (d *DashboardService) Snapshot() Snapshot {
	d.snapMu.RLock()
	defer d.snapMu.RUnlock()
	s := d.snap
	s.Records = append([]core.SalesRecord(nil), d.snap.Records...)
	return s
}

func (d *DashboardService) Records() []core.SalesRecord {
	return d.Snapshot().Records
}

// Window returns the trailing window sizes used by Chart.
func (d *DashboardService) Window() core.Window {
	return d.config.Window
}

// Chart aggregates the current snapshot. Before the first successful fetch
// it tries one refresh; a fetch failure is reported on the result, never as
// an error, and the series is built from whatever snapshot exists.
func (d *DashboardService) Chart(ctx context.Context, q ChartQuery) (ChartResult, error) {
	if q.Period == "" {
		q.Period = core.Daily
	}
	if q.View == "" {
		q.View = core.ViewTotal
	}

	if d.Snapshot().FetchedAt.IsZero() {
		_ = d.Refresh(ctx)
	}
	snap := d.Snapshot()

	anchor := core.NewAnchor(d.now())
	if !q.End.IsZero() {
		anchor.Today = q.End
	}
	if q.Month != (core.YearMonth{}) {
		anchor.Month = q.Month
	}

	points, err := core.Aggregate(snap.Records, q.Period, anchor, d.config.Window)
	if err != nil {
		return ChartResult{}, err
	}

	return ChartResult{
		Period:    q.Period,
		View:      q.View,
		Label:     core.PeriodLabel(q.Period, d.config.Window, anchor),
		Points:    points,
		Summary:   core.Summarize(points, q.View),
		Stale:     snap.LastError != "",
		Error:     snap.LastError,
		FetchedAt: snap.FetchedAt,
	}, nil
}

// Start begins polling and listening for change events.
func (d *DashboardService) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("dashboard service is already running")
	}
	d.running = true
	d.stopCh = make(chan struct{})
	d.doneCh = make(chan struct{})
	d.mu.Unlock()

	var changes <-chan events.Event
	unsubscribe := func() {}
	if d.bus != nil {
		changes, unsubscribe = d.bus.Subscribe(events.SaleRecorded, events.RecordsChanged)
	}

	go d.runLoop(ctx, changes, unsubscribe)

	slog.InfoContext(ctx, "Dashboard service started", "poll_interval", d.config.PollInterval)
	return nil
}

func (d *DashboardService) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	stopCh, doneCh := d.stopCh, d.doneCh
	d.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()
	return nil
}

func (d *DashboardService) runLoop(ctx context.Context, changes <-chan events.Event, unsubscribe func()) {
	defer close(d.doneCh)
	defer unsubscribe()

	var tick <-chan time.Time
	if d.config.PollInterval > 0 {
		ticker := time.NewTicker(d.config.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	_ = d.Refresh(ctx)

	for {
		select {
		case <-d.stopCh:
			return
		case <-ctx.Done():
			return
		case e := <-changes:
			slog.DebugContext(ctx, "Reloading dashboard after change", "event", e.Type)
			_ = d.Reload(ctx)
		case <-tick:
			_ = d.Refresh(ctx)
		}
	}
}
