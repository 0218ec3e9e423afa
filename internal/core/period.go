package core

import (
	"fmt"
	"strings"
)

// Period selects how records are bucketed for a chart.
type Period string

const (
	// Daily is one bucket per day over a trailing window ending today.
	Daily Period = "daily"
	// Weekly is one bucket per calendar month over a trailing window.
	Weekly Period = "weekly"
	// Monthly is one bucket per day of a single target month.
	Monthly Period = "monthly"
	// Weeks is one bucket per Sunday-start week over a trailing window.
	Weeks Period = "weeks"
)

// ValueView selects which amount a chart summary reduces over.
type ValueView string

const (
	ViewCash   ValueView = "cash"
	ViewOnline ValueView = "online"
	ViewTotal  ValueView = "total"
)

// Window sizes for the trailing periods.
type Window struct {
	Days   int
	Months int
	Weeks  int
}

// DefaultWindow returns the window sizes shown by the dashboard.
func DefaultWindow() Window {
	return Window{Days: 7, Months: 12, Weeks: 4}
}

func (w Window) Validate() error {
	switch {
	case w.Days < 1 || w.Days > 366:
		return fmt.Errorf("%w: days %d must be between 1 and 366", ErrInvalidWindow, w.Days)
	case w.Months < 1 || w.Months > 120:
		return fmt.Errorf("%w: months %d must be between 1 and 120", ErrInvalidWindow, w.Months)
	case w.Weeks < 1 || w.Weeks > 104:
		return fmt.Errorf("%w: weeks %d must be between 1 and 104", ErrInvalidWindow, w.Weeks)
	}
	return nil
}

// ParsePeriod parses a period name. An empty string means Daily.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return Daily, nil
	case Daily, Weekly, Monthly, Weeks:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
	}
}

// ParseValueView parses a view name. An empty string means ViewTotal.
func ParseValueView(s string) (ValueView, error) {
	switch v := ValueView(strings.ToLower(strings.TrimSpace(s))); v {
	case "":
		return ViewTotal, nil
	case ViewCash, ViewOnline, ViewTotal:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidView, s)
	}
}

// PeriodLabel describes the range a chart covers, e.g. "Last 7 Days".
func PeriodLabel(p Period, w Window, a Anchor) string {
	switch p {
	case Daily:
		return fmt.Sprintf("Last %d %s", w.Days, plural(w.Days, "Day", "Days"))
	case Weekly:
		return fmt.Sprintf("Last %d %s", w.Months, plural(w.Months, "Month", "Months"))
	case Weeks:
		return fmt.Sprintf("Last %d %s", w.Weeks, plural(w.Weeks, "Week", "Weeks"))
	case Monthly:
		return a.Month.FirstDay().Format("January 2006")
	default:
		return ""
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
