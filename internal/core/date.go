package core

import (
	"strings"
	"time"
)

// DateLayout is the persisted date format.
const DateLayout = "2006-01-02"

// Accepted input layouts, tried in order. The two-digit year form is the
// legacy "21-04-18" style.
var dateLayouts = []string{
	DateLayout,
	"06-01-02",
	"2006/01/02",
}

// ParseDate parses user input into a Date. Empty input means today.
func ParseDate(s string, now time.Time) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return NewDate(now.Year(), int(now.Month()), now.Day()), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return Date{Time: t}, nil
		}
	}
	return Date{}, ErrInvalidDate
}

// MonthRange returns the first day of the month and the first day of the
// following month, for half-open range queries.
func MonthRange(year, month int) (Date, Date, error) {
	if month < 1 || month > 12 {
		return Date{}, Date{}, ErrInvalidMonth
	}
	start := NewDate(year, month, 1)
	return start, Date{Time: start.AddDate(0, 1, 0)}, nil
}
