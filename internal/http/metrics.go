package http

import (
	"sync/atomic"
	"time"
)

// appMetrics counts domain events seen by the handlers.
type appMetrics struct {
	salesDirect   atomic.Int64
	salesQueued   atomic.Int64
	salesReplayed atomic.Int64
	replayFailed  atomic.Int64
	exports       atomic.Int64
	uptime        time.Time
}

func newAppMetrics() *appMetrics {
	return &appMetrics{uptime: time.Now()}
}

func (m *appMetrics) recordSubmit(queued bool) {
	if queued {
		m.salesQueued.Add(1)
		return
	}
	m.salesDirect.Add(1)
}
