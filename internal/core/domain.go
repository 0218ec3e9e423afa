package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DateLayout is the civil date format used for record dates and bucket keys.
	DateLayout = "2006-01-02"
	// MonthLayout is the format of a YearMonth.
	MonthLayout = "2006-01"

	// MaxNotesLength bounds the free text stored with a record.
	MaxNotesLength = 500
)

type (
	// Date is a civil calendar date with no timezone component.
	// The wrapped time is always midnight UTC.
	Date struct {
		time.Time
	}

	// YearMonth identifies a calendar month.
	YearMonth struct {
		Year  int
		Month time.Month
	}

	Money struct {
		Cents int64
	}

	// SalesRecord is one day's cash and online takings.
	SalesRecord struct {
		ID        string    `json:"id,omitempty"` // assigned by the record store, empty while queued
		Date      Date      `json:"date"`
		Cash      Money     `json:"cashAmount"`
		Online    Money     `json:"onlineAmount"`
		Notes     string    `json:"notes,omitempty"`
		CreatedAt time.Time `json:"createdAt"`
	}

	// PendingEntry is a record held in the local queue waiting for a flush.
	PendingEntry struct {
		LocalID int64       `json:"localId"`
		Record  SalesRecord `json:"record"`
		Synced  bool        `json:"synced"`
	}

	// SaleInput carries raw, unvalidated values from the entry form.
	SaleInput struct {
		Date   string `json:"date" validate:"omitempty,datetime=2006-01-02"`
		Cash   string `json:"cashAmount"`
		Online string `json:"onlineAmount"`
		Notes  string `json:"notes" validate:"max=500"`
	}
)

var (
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidMonth  = errors.New("invalid month")
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidView   = errors.New("invalid value view")
	ErrInvalidWindow = errors.New("invalid window")
)

// NewDate builds a civil date. Out of range values normalise the way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the civil date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n calendar days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// YearMonth returns the month the date belongs to.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

// WeekStart returns the Sunday on or before d.
func (d Date) WeekStart() Date {
	return d.AddDays(-int(d.Weekday()))
}

func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// ParseYearMonth parses a YYYY-MM string.
func ParseYearMonth(s string) (YearMonth, error) {
	t, err := time.Parse(MonthLayout, strings.TrimSpace(s))
	if err != nil {
		return YearMonth{}, fmt.Errorf("%w: %q", ErrInvalidMonth, s)
	}
	return YearMonth{Year: t.Year(), Month: t.Month()}, nil
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// FirstDay returns the first calendar day of the month.
func (ym YearMonth) FirstDay() Date {
	return NewDate(ym.Year, ym.Month, 1)
}

// DaysIn returns the number of days in the month, honouring leap years.
func (ym YearMonth) DaysIn() int {
	// Day 0 of the following month is the last day of this one.
	return time.Date(ym.Year, ym.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths shifts the month by n, crossing year boundaries as needed.
func (ym YearMonth) AddMonths(n int) YearMonth {
	t := time.Date(ym.Year, ym.Month+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (ym YearMonth) Validate() error {
	if ym.Month < time.January || ym.Month > time.December || ym.Year < 1 {
		return fmt.Errorf("%w: %s", ErrInvalidMonth, ym)
	}
	return nil
}

// Total returns cash plus online.
func (r SalesRecord) Total() Money {
	return r.Cash.Add(r.Online)
}

// Normalize enforces the non-negative amount floor on a record that did not
// come through NewSalesRecord, such as one read back from a record store.
func (r SalesRecord) Normalize() SalesRecord {
	if r.Cash.Cents < 0 {
		r.Cash = Money{}
	}
	if r.Online.Cents < 0 {
		r.Online = Money{}
	}
	return r
}

// NewSalesRecord builds a record from raw form input. Amounts are coerced,
// never rejected; an empty date means the civil date of now.
func NewSalesRecord(in SaleInput, now time.Time) (SalesRecord, error) {
	date := DateOf(now)
	if s := strings.TrimSpace(in.Date); s != "" {
		d, err := ParseDate(s)
		if err != nil {
			return SalesRecord{}, err
		}
		date = d
	}

	return SalesRecord{
		Date:      date,
		Cash:      ParseAmount(in.Cash),
		Online:    ParseAmount(in.Online),
		Notes:     truncateNotes(strings.TrimSpace(in.Notes)),
		CreatedAt: now.UTC(),
	}, nil
}

func truncateNotes(s string) string {
	if utf8.RuneCountInString(s) <= MaxNotesLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:MaxNotesLength])
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
