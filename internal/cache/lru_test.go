package cache

import (
	"context"
	"testing"
	"time"

	"salestracker/internal/core"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be present")
	}
	c.Set("c", 3) // evicts b

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Errorf("a = %v, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Errorf("size = %d, want 2", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	clk := &clock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c := NewLRUCache[string](10, time.Second)
	c.now = clk.now

	c.Set("k", "v")
	c.Set("other", "x")
	clk.t = clk.t.Add(2 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Error("k should have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Errorf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Errorf("size = %d, want 0", c.Size())
	}
	st := c.Stats()
	if st.Hits != 0 || st.Misses != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestMemorySnapshotCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySnapshot(time.Minute)
	if _, ok := s.GetSnapshot(ctx); ok {
		t.Fatal("empty cache should miss")
	}

	recs := []core.SalesRecord{{ID: "1", Date: core.NewDate(2025, 1, 1)}}
	s.SetSnapshot(ctx, recs)
	recs[0].ID = "mutated"

	got, ok := s.GetSnapshot(ctx)
	if !ok || got[0].ID != "1" {
		t.Fatalf("got %+v, %v", got, ok)
	}

	s.Invalidate(ctx)
	if _, ok := s.GetSnapshot(ctx); ok {
		t.Fatal("invalidated cache should miss")
	}
	if st := s.Stats(); st.Hits != 1 || st.Misses != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestManagerCleansRegisteredCaches(t *testing.T) {
	clk := &clock{t: time.Now()}
	c := NewLRUCache[int](10, time.Millisecond)
	c.now = clk.now
	c.Set("a", 1)
	clk.t = clk.t.Add(time.Second)

	m := NewManager()
	m.Register(c)
	if n := m.cleanOnce(); n != 1 {
		t.Fatalf("cleanOnce = %d, want 1", n)
	}
	m.StartCleanup(time.Hour)
	m.Stop()
	m.Stop()
}
