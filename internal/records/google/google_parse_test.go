package google

import (
	"testing"
	"time"

	"salestracker/internal/core"
)

func TestParseRow(t *testing.T) {
	cases := []struct {
		name   string
		row    []interface{}
		ok     bool
		date   string
		cash   int64
		online int64
	}{
		{"numbers", []interface{}{"id-1", "2025-01-01", 100.0, 50.5, "note", "2025-01-01T10:00:00Z"}, true, "2025-01-01", 10000, 5050},
		{"strings with comma", []interface{}{"id-2", "2025-01-02", "12,30", "0"}, true, "2025-01-02", 1230, 0},
		{"serial date", []interface{}{"id-3", 45658.0, 1.0, 2.0}, true, "2025-01-01", 100, 200},
		{"negative coerced", []interface{}{"id-4", "2025-01-03", -5.0, "abc"}, true, "2025-01-03", 0, 0},
		{"large amount", []interface{}{"id-5", "2025-01-04", 12345678.9, 0.0}, true, "2025-01-04", 1234567890, 0},
		{"missing amounts", []interface{}{"id-6", "2025-01-05"}, true, "2025-01-05", 0, 0},
		{"bad date", []interface{}{"id-7", "01/01/2025", 1.0, 1.0}, false, "", 0, 0},
		{"short row", []interface{}{"id-8"}, false, "", 0, 0},
		{"empty", []interface{}{}, false, "", 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, ok := parseRow(tc.row)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if !ok {
				return
			}
			if rec.Date.String() != tc.date || rec.Cash.Cents != tc.cash || rec.Online.Cents != tc.online {
				t.Fatalf("got %s cash=%d online=%d", rec.Date, rec.Cash.Cents, rec.Online.Cents)
			}
		})
	}
}

func TestFormatRowRoundTrip(t *testing.T) {
	created := time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)
	rec := core.SalesRecord{
		Date:   core.NewDate(2025, 2, 3),
		Cash:   core.Money{Cents: 15050},
		Online: core.Money{Cents: 1},
		Notes:  "market day",
	}
	row := formatRow("abc", rec, created)
	got, ok := parseRow(row)
	if !ok {
		t.Fatal("formatted row must parse")
	}
	if got.ID != "abc" || got.Date.String() != "2025-02-03" || got.Cash.Cents != 15050 || got.Online.Cents != 1 {
		t.Fatalf("unexpected %+v", got)
	}
	if got.Notes != "market day" || !got.CreatedAt.Equal(created) {
		t.Fatalf("unexpected notes/createdAt %+v", got)
	}
}
