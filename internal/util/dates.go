package util

import (
	"errors"
	"strings"
	"time"
)

// ErrBadDate marks a date filter that matched neither accepted layout.
var ErrBadDate = errors.New("invalid date format (use YYYY-MM-DD or RFC3339)")

// ParseDateRange parses optional start/end filter strings (YYYY-MM-DD or
// RFC3339). Date-only ends are made inclusive by returning an exclusive bound
// at the start of the following day.
func ParseDateRange(startStr, endStr *string) (start time.Time, hasStart bool, endExclusive time.Time, hasEnd bool, err error) {
	parseAny := func(s string) (t time.Time, ok bool, isDateOnly bool, err error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return time.Time{}, false, false, nil
		}
		if tt, e := time.Parse(time.RFC3339, s); e == nil {
			return tt, true, false, nil
		}
		if tt, e := time.Parse("2006-01-02", s); e == nil {
			return tt, true, true, nil
		}
		return time.Time{}, false, false, ErrBadDate
	}

	var (
		rawStart, rawEnd time.Time
		startOk, endOk   bool
		endDateOnly      bool
	)

	if startStr != nil {
		t, ok, _, e := parseAny(*startStr)
		if e != nil {
			return time.Time{}, false, time.Time{}, false, e
		}
		rawStart, startOk = t, ok
	}
	if endStr != nil {
		t, ok, dateOnly, e := parseAny(*endStr)
		if e != nil {
			return time.Time{}, false, time.Time{}, false, e
		}
		rawEnd, endOk, endDateOnly = t, ok, dateOnly
	}

	if startOk && endOk && rawEnd.Before(rawStart) {
		rawStart, rawEnd = rawEnd, rawStart
	}

	if startOk {
		start, hasStart = rawStart, true
	}
	if endOk {
		if endDateOnly {
			endExclusive = rawEnd.AddDate(0, 0, 1)
		} else {
			endExclusive = rawEnd
		}
		hasEnd = true
	}
	return start, hasStart, endExclusive, hasEnd, nil
}
