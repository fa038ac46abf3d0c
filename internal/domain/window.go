package domain

import (
	"fmt"
	"time"
)

// WindowKind is an aggregation period for leaderboard totals.
type WindowKind string

const (
	WindowGlobal  WindowKind = "global"
	WindowWeekly  WindowKind = "weekly"
	WindowMonthly WindowKind = "monthly"
)

// WindowKinds lists every supported window in a fixed order.
func WindowKinds() []WindowKind {
	return []WindowKind{WindowGlobal, WindowWeekly, WindowMonthly}
}

// ParseWindowKind validates a window name coming from a caller.
func ParseWindowKind(raw string) (WindowKind, error) {
	switch k := WindowKind(raw); k {
	case WindowGlobal, WindowWeekly, WindowMonthly:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidWindow, raw)
}

// Window is the half-open interval [Start, End) a leaderboard aggregates over.
// The global window has zero bounds and contains every instant.
type Window struct {
	Kind  WindowKind
	Start time.Time
	End   time.Time
}

// WindowAt returns the window of the given kind containing now. Weeks start on
// Monday 00:00 and months on the 1st, both in loc.
func WindowAt(kind WindowKind, now time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	t := now.In(loc)
	switch kind {
	case WindowWeekly:
		offset := (int(t.Weekday()) + 6) % 7
		start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, loc)
		return Window{Kind: kind, Start: start, End: start.AddDate(0, 0, 7)}
	case WindowMonthly:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
		return Window{Kind: kind, Start: start, End: start.AddDate(0, 1, 0)}
	default:
		return Window{Kind: WindowGlobal}
	}
}

// Bounded reports whether the window rolls over.
func (w Window) Bounded() bool {
	return !w.End.IsZero()
}

// Contains reports whether t falls in [Start, End).
func (w Window) Contains(t time.Time) bool {
	if !w.Bounded() {
		return true
	}
	return !t.Before(w.Start) && t.Before(w.End)
}

// Expired reports whether now has passed the window's end.
func (w Window) Expired(now time.Time) bool {
	return w.Bounded() && !now.Before(w.End)
}
