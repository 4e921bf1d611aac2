package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/coolbeans/rdgmed/pkg/align"
	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/extract"
	"github.com/coolbeans/rdgmed/pkg/mediator"
	"github.com/coolbeans/rdgmed/pkg/provider"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/template"
)

var errBadForm = errors.New("bad form")

// statusFor maps an error to the HTTP status it is reported with. Provider
// failures are checked first: they may wrap lower-level errors that would
// otherwise read as bad input.
func statusFor(err error) int {
	switch {
	case errors.Is(err, mediator.ErrProviderUnavailable),
		errors.Is(err, extract.ErrAmbiguousMapping):
		return http.StatusBadGateway
	case errors.Is(err, provider.ErrNoCatalog):
		return http.StatusServiceUnavailable
	case errors.Is(err, align.ErrAlignmentExists):
		return http.StatusConflict
	case errors.Is(err, availability.ErrMalformedDate),
		errors.Is(err, availability.ErrNegativeShift),
		errors.Is(err, booking.ErrInvalidRequest),
		errors.Is(err, booking.ErrNoRequest),
		errors.Is(err, template.ErrInvalidValue),
		errors.Is(err, store.ErrMalformedGraph),
		errors.Is(err, errBadForm):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
