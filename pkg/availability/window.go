// Package availability matches offerings against a requested date window and
// enumerates the bookable start dates inside it.
//
// All dates are whole civil days without a timezone. Matching is a linear
// scan: filtering k offerings is O(k) and enumerating candidates for a w-day
// window is O(w) per offering, which is fine for catalogues in the low
// hundreds and not meant for more.
package availability

import (
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
)

var (
	// ErrMalformedDate is returned when a date value cannot be parsed.
	ErrMalformedDate = errors.New("malformed date")

	// ErrNegativeShift is returned for a window with a negative shift.
	ErrNegativeShift = errors.New("shift days must not be negative")

	// ErrInvertedInterval is returned when an interval ends before it starts.
	ErrInvertedInterval = errors.New("interval ends before it starts")
)

// Window is the range of acceptable booking start dates around a requested
// center date.
type Window struct {
	Center   civil.Date
	Earliest civil.Date
	Latest   civil.Date
}

// NewWindow returns the window [center-shift, center+shift].
func NewWindow(center civil.Date, shiftDays int) (Window, error) {
	if shiftDays < 0 {
		return Window{}, fmt.Errorf("%w: %d", ErrNegativeShift, shiftDays)
	}
	return Window{
		Center:   center,
		Earliest: center.AddDays(-shiftDays),
		Latest:   center.AddDays(shiftDays),
	}, nil
}

// Days returns the number of dates in the window.
func (w Window) Days() int {
	return w.Latest.DaysSince(w.Earliest) + 1
}

// Contains reports whether d lies inside the window, bounds included.
func (w Window) Contains(d civil.Date) bool {
	return !d.Before(w.Earliest) && !d.After(w.Latest)
}

// Interval is an inclusive availability range.
type Interval struct {
	Start civil.Date
	End   civil.Date
}

// NewInterval validates that end is not before start.
func NewInterval(start, end civil.Date) (Interval, error) {
	if end.Before(start) {
		return Interval{}, fmt.Errorf("%w: %s to %s", ErrInvertedInterval, start, end)
	}
	return Interval{Start: start, End: end}, nil
}

// Length returns end minus start in days. A single-day interval has
// length 0.
func (i Interval) Length() int {
	return i.End.DaysSince(i.Start)
}

// Contains reports whether d lies inside the interval, bounds included.
func (i Interval) Contains(d civil.Date) bool {
	return !d.Before(i.Start) && !d.After(i.End)
}

// ParseDate parses a yyyy-mm-dd date. A full dateTime is accepted and its
// time part dropped, since templates may type start dates as xsd:dateTime.
// Errors wrap ErrMalformedDate and name the field.
func ParseDate(field, value string) (civil.Date, error) {
	text := strings.TrimSpace(value)
	if idx := strings.IndexByte(text, 'T'); idx >= 0 {
		if _, err := civil.ParseDateTime(text); err != nil {
			return civil.Date{}, fmt.Errorf("%s: %w: %q", field, ErrMalformedDate, value)
		}
		text = text[:idx]
	}
	date, err := civil.ParseDate(text)
	if err != nil {
		return civil.Date{}, fmt.Errorf("%s: %w: %q", field, ErrMalformedDate, value)
	}
	return date, nil
}
