package records

import (
	"context"
	"errors"

	"salestracker/internal/core"
)

// ErrUnavailable marks a record store failure caused by connectivity rather
// than by the request itself.
var ErrUnavailable = errors.New("record store unavailable")

// Ports for the remote record store.
type (
	RecordWriter interface {
		// Insert stores the record and returns the id assigned by the store.
		Insert(ctx context.Context, rec core.SalesRecord) (id string, err error)
	}

	RecordLister interface {
		// ListAll returns every stored record. No filtering is pushed down.
		ListAll(ctx context.Context) ([]core.SalesRecord, error)
	}

	// Pinger reports whether the store is reachable.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	Store interface {
		RecordWriter
		RecordLister
		Pinger
	}
)
