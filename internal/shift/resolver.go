// Package shift resolves an agent's free-form shift descriptor into a
// concrete start/end window around the current instant.
package shift

import (
	"fmt"
	"strings"
	"time"
)

// Window is an agent's shift for the day containing now, in the
// organizational timezone. Derived on every call, never stored.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the instant falls inside the window.
func (w *Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// timeLayouts are the clock formats seen in shift descriptors coming
// out of the agent-settings collaborator.
var timeLayouts = []string{"3:04 PM", "3:04PM", "15:04", "3 PM", "3PM"}

// Resolve parses a descriptor like "7:00 AM - 4:00 PM" against now's
// date in loc. A nil Window with nil error means no shift is configured
// and callers must treat shift-bound checks as unconstrained.
//
// Overnight descriptors (end clock earlier than start clock) resolve
// with the end pushed to the next calendar day, so the window may cross
// a date boundary.
func Resolve(descriptor string, now time.Time, loc *time.Location) (*Window, error) {
	descriptor = strings.TrimSpace(descriptor)
	if descriptor == "" {
		return nil, nil
	}

	startStr, endStr, ok := splitDescriptor(descriptor)
	if !ok {
		return nil, fmt.Errorf("malformed shift descriptor: %q", descriptor)
	}

	local := now.In(loc)
	start, err := onDate(local, startStr)
	if err != nil {
		return nil, fmt.Errorf("shift start: %w", err)
	}
	end, err := onDate(local, endStr)
	if err != nil {
		return nil, fmt.Errorf("shift end: %w", err)
	}

	if !end.After(start) {
		end = end.AddDate(0, 0, 1)
		// Early-morning instants belong to the shift that started the
		// previous evening, not tonight's.
		if local.Before(start) {
			start = start.AddDate(0, 0, -1)
			end = end.AddDate(0, 0, -1)
		}
	}
	return &Window{Start: start, End: end}, nil
}

func splitDescriptor(s string) (start, end string, ok bool) {
	for _, sep := range []string{" - ", "-", " to ", "–"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), true
		}
	}
	return "", "", false
}

func onDate(day time.Time, clock string) (time.Time, error) {
	clock = strings.ToUpper(strings.TrimSpace(clock))
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, clock)
		if err != nil {
			continue
		}
		return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location()), nil
	}
	return time.Time{}, fmt.Errorf("unparseable clock value: %q", clock)
}
