// Package events is an in-process publish/subscribe bus used to tell the
// dashboard that the record store has changed.
package events

import (
	"sync"
	"time"

	"salestracker/internal/core"
)

type Type string

const (
	// SaleRecorded is published after a record reaches the record store.
	SaleRecorded Type = "sale.recorded"
	// RecordsChanged is published after a flush wrote at least one record.
	RecordsChanged Type = "records.changed"
)

type Event struct {
	Type   Type
	Record *core.SalesRecord
	At     time.Time
}

const subscriberBuffer = 16

type subscriber struct {
	ch    chan Event
	types map[Type]bool
}

// Bus delivers events without blocking the publisher. A full subscriber
// buffer drops the event for that subscriber.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]*subscriber
	nextID int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if len(s.types) > 0 && !s.types[e.Type] {
			continue
		}
		select {
		case s.ch <- e:
		default:
		}
	}
}

// Subscribe receives the listed types, or every type when none are given.
func (b *Bus) Subscribe(types ...Type) (<-chan Event, func()) {
	s := &subscriber{ch: make(chan Event, subscriberBuffer), types: make(map[Type]bool, len(types))}
	for _, t := range types {
		s.types[t] = true
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}
