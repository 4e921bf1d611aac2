package availability

import (
	"iter"

	"cloud.google.com/go/civil"
)

// Offering is a bookable resource and the dates it is available.
type Offering struct {
	ID        string
	Available Interval
}

// Label tells whether a candidate starts on the requested date.
type Label string

const (
	LabelExact   Label = "exact"
	LabelShifted Label = "shifted"
)

// Candidate is one bookable period.
type Candidate struct {
	Start civil.Date
	End   civil.Date
	Label Label
}

// Days returns the length of the booking period in days.
func (c Candidate) Days() int {
	return c.End.DaysSince(c.Start) + 1
}

// FilterOfferings keeps the offerings whose availability overlaps the window
// and spans at least minDuration days. The result preserves input order and
// is never nil.
func FilterOfferings(offerings []Offering, window Window, minDuration int) []Offering {
	matched := make([]Offering, 0, len(offerings))
	for _, offering := range offerings {
		available := offering.Available
		if available.Start.After(window.Latest) || available.End.Before(window.Earliest) {
			continue
		}
		if available.Length() < minDuration {
			continue
		}
		matched = append(matched, offering)
	}
	return matched
}

// CandidateDates yields, in ascending order, every date inside both the
// window and the interval.
func CandidateDates(window Window, interval Interval) iter.Seq[civil.Date] {
	return func(yield func(civil.Date) bool) {
		first, last := overlap(window, interval)
		for d := first; !d.After(last); d = d.AddDays(1) {
			if !yield(d) {
				return
			}
		}
	}
}

// overlap clamps the window to the interval. last is before first when they
// do not intersect.
func overlap(window Window, interval Interval) (first, last civil.Date) {
	first, last = window.Earliest, window.Latest
	if interval.Start.After(first) {
		first = interval.Start
	}
	if interval.End.Before(last) {
		last = interval.End
	}
	return first, last
}

// overlapDays is the number of candidate dates in window and interval.
func overlapDays(window Window, interval Interval) int {
	first, last := overlap(window, interval)
	return max(0, last.DaysSince(first)+1)
}

// EnumerateCandidateDates collects CandidateDates into a slice. An empty
// intersection gives an empty, non-nil slice.
func EnumerateCandidateDates(window Window, interval Interval) []civil.Date {
	dates := make([]civil.Date, 0, overlapDays(window, interval))
	for d := range CandidateDates(window, interval) {
		dates = append(dates, d)
	}
	return dates
}

// Candidates returns one booking period of duration days for every candidate
// date. A period starting on the window center is labelled exact, any other
// start shifted. Durations below one are treated as one day.
func Candidates(window Window, duration int, interval Interval) []Candidate {
	duration = max(duration, 1)

	candidates := make([]Candidate, 0, overlapDays(window, interval))
	for d := range CandidateDates(window, interval) {
		label := LabelShifted
		if d == window.Center {
			label = LabelExact
		}
		candidates = append(candidates, Candidate{
			Start: d,
			End:   d.AddDays(duration - 1),
			Label: label,
		})
	}
	return candidates
}
