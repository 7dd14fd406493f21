// Package period computes budget windows. A window is an inclusive range of
// calendar days derived from a start day and a period type; all math goes
// through time.Date so month lengths and leap days come out right.
package period

import (
	"fmt"
	"strings"
	"time"
)

// Type is the length unit of a budget window.
type Type string

const (
	Daily     Type = "daily"
	Weekly    Type = "weekly"
	Monthly   Type = "monthly"
	Quarterly Type = "quarterly"
	Yearly    Type = "yearly"
)

// Types lists every supported period type.
var Types = []Type{Daily, Weekly, Monthly, Quarterly, Yearly}

// Valid reports whether t is a supported period type.
func (t Type) Valid() bool {
	switch t {
	case Daily, Weekly, Monthly, Quarterly, Yearly:
		return true
	}
	return false
}

// Parse converts a case-insensitive name into a Type.
func Parse(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown period type %q", s)
	}
	return t, nil
}

// Truncate returns the UTC calendar day of t at midnight.
func Truncate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndDate returns the last day (inclusive) of the window starting at start.
func EndDate(start time.Time, t Type) time.Time {
	start = Truncate(start)
	y, m, _ := start.Date()

	switch t {
	case Daily:
		return start
	case Weekly:
		return start.AddDate(0, 0, 6)
	case Monthly:
		return lastDayOfMonth(y, m)
	case Quarterly:
		qm := time.Month(((int(m)-1)/3 + 1) * 3)
		return lastDayOfMonth(y, qm)
	case Yearly:
		return time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
	}
	return start
}

// lastDayOfMonth relies on day 0 of the next month normalizing to the last
// day of m.
func lastDayOfMonth(y int, m time.Month) time.Time {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
}

// Window is an inclusive [Start, End] range of calendar days.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Type  Type      `json:"type"`
}

// NewWindow builds the window of type t that starts on start's calendar day.
func NewWindow(start time.Time, t Type) Window {
	s := Truncate(start)
	return Window{Start: s, End: EndDate(s, t), Type: t}
}

// Contains reports whether ts falls on a day inside the window.
func (w Window) Contains(ts time.Time) bool {
	d := Truncate(ts)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the number of calendar days covered.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// ExclusiveEnd returns midnight of the day after End, for half-open range queries.
func (w Window) ExclusiveEnd() time.Time {
	return w.End.AddDate(0, 0, 1)
}

// Next returns the window immediately following w. Every window ends on a
// unit boundary, so the next one always starts the day after End.
func Next(w Window) Window {
	return NewWindow(w.End.AddDate(0, 0, 1), w.Type)
}

// Previous returns the window of the preceding unit. Month, quarter and year
// windows snap to the first day of the previous calendar unit.
func Previous(w Window) Window {
	y, m, _ := w.Start.Date()

	switch w.Type {
	case Daily:
		return NewWindow(w.Start.AddDate(0, 0, -1), w.Type)
	case Weekly:
		return NewWindow(w.Start.AddDate(0, 0, -7), w.Type)
	case Monthly:
		return NewWindow(time.Date(y, m-1, 1, 0, 0, 0, 0, time.UTC), w.Type)
	case Quarterly:
		firstOfQuarter := time.Month((int(m)-1)/3*3 + 1)
		return NewWindow(time.Date(y, firstOfQuarter-3, 1, 0, 0, 0, 0, time.UTC), w.Type)
	case Yearly:
		return NewWindow(time.Date(y-1, time.January, 1, 0, 0, 0, 0, time.UTC), w.Type)
	}
	return w
}

// Shift moves w by n units; negative n goes backwards.
func Shift(w Window, n int) Window {
	for ; n > 0; n-- {
		w = Next(w)
	}
	for ; n < 0; n++ {
		w = Previous(w)
	}
	return w
}
