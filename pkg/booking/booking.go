package booking

import (
	"github.com/google/uuid"

	"github.com/coolbeans/rdgmed/pkg/availability"
)

// Booking is one bookable period offered to the booker.
type Booking struct {
	Number     string
	BookerName string
	availability.Candidate
}

// Bookings lists a booking for every candidate start date of r that falls
// inside available. Each booking gets a fresh random booking number.
func Bookings(r Request, available availability.Interval) ([]Booking, error) {
	window, err := r.Window()
	if err != nil {
		return nil, err
	}

	candidates := availability.Candidates(window, r.Duration, available)
	bookings := make([]Booking, 0, len(candidates))
	for _, c := range candidates {
		bookings = append(bookings, Booking{
			Number:     uuid.NewString(),
			BookerName: r.BookerName,
			Candidate:  c,
		})
	}
	return bookings, nil
}
