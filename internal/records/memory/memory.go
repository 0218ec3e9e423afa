package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"salestracker/internal/core"
	"salestracker/internal/records"
)

var _ records.Store = (*Store)(nil)

// Store keeps records in process. FailWith lets tests and demos simulate an
// unreachable remote.
type Store struct {
	mu    sync.Mutex
	items []core.SalesRecord
	fail  error
	now   func() time.Time
}

func New(seed ...core.SalesRecord) *Store {
	s := &Store{now: time.Now}
	for _, r := range seed {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.items = append(s.items, r.Normalize())
	}
	return s
}

type seedRecord struct {
	Date         core.Date  `json:"date"`
	CashAmount   core.Money `json:"cashAmount"`
	OnlineAmount core.Money `json:"onlineAmount"`
	Notes        string     `json:"notes"`
}

// NewFromFile seeds the store from a JSON array of records. A missing file
// yields an empty store.
func NewFromFile(path string) (*Store, error) {
	if path == "" {
		return New(), nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var seeds []seedRecord
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}
	recs := make([]core.SalesRecord, 0, len(seeds))
	for _, sr := range seeds {
		if sr.Date.IsZero() {
			continue
		}
		recs = append(recs, core.SalesRecord{
			Date:   sr.Date,
			Cash:   sr.CashAmount,
			Online: sr.OnlineAmount,
			Notes:  sr.Notes,
		})
	}
	return New(recs...), nil
}

// FailWith makes every call return err until it is called again with nil.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Store) Insert(_ context.Context, rec core.SalesRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	rec = rec.Normalize()
	rec.ID = uuid.NewString()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	s.items = append(s.items, rec)
	return rec.ID, nil
}

func (s *Store) ListAll(_ context.Context) ([]core.SalesRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	return append([]core.SalesRecord(nil), s.items...), nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
