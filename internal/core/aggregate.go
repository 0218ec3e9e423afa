// This file implements the Strategy Pattern for period bucketing.
// Each period has a bucketer that pre-enumerates the buckets of its window
// and maps a record date onto one of them.

package core

import (
	"fmt"
	"time"
)

// ChartPoint is one zero-filled bucket of a chart series.
type ChartPoint struct {
	Date   string `json:"date"` // bucket key: YYYY-MM-DD, YYYY-MM, or a week's Sunday
	Cash   Money  `json:"cash"`
	Online Money  `json:"online"`
	Total  Money  `json:"total"`
	Label  string `json:"label"`
}

// Anchor fixes the reference points a period is enumerated from.
type Anchor struct {
	// Today is the last day of the Daily, Weekly and Weeks windows.
	Today Date
	// Month is the target of the Monthly view.
	Month YearMonth
}

// NewAnchor anchors trailing windows on the civil date of now and the
// Monthly view on the current month.
func NewAnchor(now time.Time) Anchor {
	today := DateOf(now)
	return Anchor{Today: today, Month: today.YearMonth()}
}

// bucketer is the strategy interface for one period.
type bucketer interface {
	// buckets returns the zero-valued points of the window in ascending order.
	buckets(a Anchor, w Window) []ChartPoint
	// key maps a record date to the key of the bucket that holds it.
	key(d Date) string
}

// dayBuckets enumerates n consecutive days ending on last.
func dayBuckets(last Date, n int, layout string) []ChartPoint {
	points := make([]ChartPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		d := last.AddDays(-i)
		points = append(points, ChartPoint{Date: d.String(), Label: d.Format(layout)})
	}
	return points
}

type dailyBucketer struct{}

func (dailyBucketer) buckets(a Anchor, w Window) []ChartPoint {
	return dayBuckets(a.Today, w.Days, "Mon 02 Jan")
}

func (dailyBucketer) key(d Date) string { return d.String() }

// monthWindowBucketer backs the Weekly period: trailing calendar months.
type monthWindowBucketer struct{}

func (monthWindowBucketer) buckets(a Anchor, w Window) []ChartPoint {
	current := a.Today.YearMonth()
	points := make([]ChartPoint, 0, w.Months)
	for i := w.Months - 1; i >= 0; i-- {
		ym := current.AddMonths(-i)
		points = append(points, ChartPoint{Date: ym.String(), Label: ym.FirstDay().Format("Jan 06")})
	}
	return points
}

func (monthWindowBucketer) key(d Date) string { return d.YearMonth().String() }

// monthDaysBucketer backs the Monthly period: every day of the target month.
type monthDaysBucketer struct{}

func (monthDaysBucketer) buckets(a Anchor, _ Window) []ChartPoint {
	first := a.Month.FirstDay()
	n := a.Month.DaysIn()
	return dayBuckets(first.AddDays(n-1), n, "02 Jan")
}

func (monthDaysBucketer) key(d Date) string { return d.String() }

type weekBucketer struct{}

func (weekBucketer) buckets(a Anchor, w Window) []ChartPoint {
	start := a.Today.WeekStart()
	points := make([]ChartPoint, 0, w.Weeks)
	for i := w.Weeks - 1; i >= 0; i-- {
		ws := start.AddDays(-7 * i)
		points = append(points, ChartPoint{Date: ws.String(), Label: "Week of " + ws.Format("02 Jan")})
	}
	return points
}

func (weekBucketer) key(d Date) string { return d.WeekStart().String() }

var bucketers = map[Period]bucketer{
	Daily:   dailyBucketer{},
	Weekly:  monthWindowBucketer{},
	Monthly: monthDaysBucketer{},
	Weeks:   weekBucketer{},
}

// Aggregate turns flat records into a chart series for the period.
//
// The buckets are enumerated from the anchor and window, never from the data,
// so empty buckets are present with zero amounts and the series is never
// empty. Records sharing a bucket, including several records for the same
// date, are summed. Records outside the window are ignored.
func Aggregate(records []SalesRecord, p Period, a Anchor, w Window) ([]ChartPoint, error) {
	b, ok := bucketers[p]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if p == Monthly {
		if err := a.Month.Validate(); err != nil {
			return nil, err
		}
	} else if err := a.Today.Validate(); err != nil {
		return nil, err
	}

	points := b.buckets(a, w)
	index := make(map[string]int, len(points))
	for i, pt := range points {
		index[pt.Date] = i
	}

	for _, r := range records {
		if r.Date.IsZero() {
			continue
		}
		i, ok := index[b.key(r.Date)]
		if !ok {
			continue
		}
		r = r.Normalize()
		points[i].Cash = points[i].Cash.Add(r.Cash)
		points[i].Online = points[i].Online.Add(r.Online)
	}

	for i := range points {
		points[i].Total = points[i].Cash.Add(points[i].Online)
	}
	return points, nil
}

// BucketKey returns the key of the bucket d falls into for period p. It
// matches ChartPoint.Date of the bucket holding d.
func BucketKey(p Period, d Date) (string, error) {
	b, ok := bucketers[p]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, p)
	}
	return b.key(d), nil
}
