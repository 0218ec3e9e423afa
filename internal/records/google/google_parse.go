package google

import (
	"fmt"
	"strings"
	"time"

	"salestracker/internal/core"
)

// sheetsEpoch is day zero of spreadsheet date serial numbers.
var sheetsEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

func formatRow(id string, rec core.SalesRecord, createdAt time.Time) []any {
	return []any{
		id,
		rec.Date.String(),
		rec.Cash.Float64(),
		rec.Online.Float64(),
		rec.Notes,
		createdAt.UTC().Format(time.RFC3339),
	}
}

// parseRow converts a values row (ID, Date, Cash, Online, Notes, CreatedAt)
// into a record. Rows without a usable date are rejected.
func parseRow(row []interface{}) (core.SalesRecord, bool) {
	if len(row) < 2 {
		return core.SalesRecord{}, false
	}
	date, ok := parseDateCell(row[1])
	if !ok {
		return core.SalesRecord{}, false
	}

	rec := core.SalesRecord{
		ID:     strings.TrimSpace(cellString(row, 0)),
		Date:   date,
		Cash:   core.ParseAmount(cellString(row, 2)),
		Online: core.ParseAmount(cellString(row, 3)),
		Notes:  strings.TrimSpace(cellString(row, 4)),
	}
	if ts := strings.TrimSpace(cellString(row, 5)); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			rec.CreatedAt = t
		}
	}
	return rec, true
}

// parseDateCell accepts an ISO date string or a spreadsheet serial number,
// which is what a hand-typed date comes back as with unformatted values.
func parseDateCell(v interface{}) (core.Date, bool) {
	switch val := v.(type) {
	case float64:
		if val < 1 {
			return core.Date{}, false
		}
		return core.DateOf(sheetsEpoch.AddDate(0, 0, int(val))), true
	case string:
		d, err := core.ParseDate(val)
		if err != nil {
			return core.Date{}, false
		}
		return d, true
	default:
		return core.Date{}, false
	}
}

func cellString(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	switch v := row[idx].(type) {
	case float64:
		// Avoid exponent notation for large amounts.
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
	default:
		return fmt.Sprint(v)
	}
}
