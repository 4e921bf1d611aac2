// Package booking holds the typed booking request exchanged between the
// mediator forms, the request templates and the provider's matcher.
package booking

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"cloud.google.com/go/civil"

	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/template"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

var (
	// ErrInvalidRequest is returned for field values outside their range.
	ErrInvalidRequest = errors.New("invalid booking request")

	// ErrNoRequest is returned when a graph carries no booking request node.
	ErrNoRequest = errors.New("no booking request in graph")
)

// MaxShiftDays bounds how far a start date may move either way.
const MaxShiftDays = 1000

// Request is a booking request. Zero distance limits and an empty city
// mean the criterion is not applied.
type Request struct {
	BookerName      string
	Places          int
	Bedrooms        int
	City            string
	MaxCityDistance int
	MaxLakeDistance int
	Start           civil.Date
	Duration        int
	MaxShiftDays    int
}

// Validate checks the value ranges: places, bedrooms and duration at least
// one, everything else non-negative, the shift at most MaxShiftDays, and a
// valid start date.
func (r Request) Validate() error {
	var errs []error
	atLeast := func(field string, value, min int) {
		if value < min {
			errs = append(errs, fmt.Errorf("%w: %s must be at least %d, got %d", ErrInvalidRequest, field, min, value))
		}
	}
	atLeast(vocab.FieldNumberOfPlaces, r.Places, 1)
	atLeast(vocab.FieldNumberOfBedrooms, r.Bedrooms, 1)
	atLeast(vocab.FieldDuration, r.Duration, 1)
	atLeast(vocab.FieldDistanceFromCity, r.MaxCityDistance, 0)
	atLeast(vocab.FieldDistanceFromLake, r.MaxLakeDistance, 0)
	atLeast(vocab.FieldMaxShiftDays, r.MaxShiftDays, 0)
	if r.MaxShiftDays > MaxShiftDays {
		errs = append(errs, fmt.Errorf("%w: %s must be at most %d, got %d", ErrInvalidRequest, vocab.FieldMaxShiftDays, MaxShiftDays, r.MaxShiftDays))
	}
	if !r.Start.IsValid() {
		errs = append(errs, fmt.Errorf("%s: %w", vocab.FieldStartDate, availability.ErrMalformedDate))
	}
	return errors.Join(errs...)
}

// Window returns the start date window around the requested start.
func (r Request) Window() (availability.Window, error) {
	return availability.NewWindow(r.Start, r.MaxShiftDays)
}

// MinAvailability is the shortest availability span, in days between first
// and last available date, that fits the requested duration.
func (r Request) MinAvailability() int {
	return max(r.Duration-1, 0)
}

// Fields returns the request as template field values in form order.
func (r Request) Fields() []template.FieldValue {
	return []template.FieldValue{
		{Name: vocab.FieldBookerName, Value: r.BookerName},
		{Name: vocab.FieldNumberOfPlaces, Value: strconv.Itoa(r.Places)},
		{Name: vocab.FieldNumberOfBedrooms, Value: strconv.Itoa(r.Bedrooms)},
		{Name: vocab.FieldCityName, Value: r.City},
		{Name: vocab.FieldDistanceFromCity, Value: strconv.Itoa(r.MaxCityDistance)},
		{Name: vocab.FieldDistanceFromLake, Value: strconv.Itoa(r.MaxLakeDistance)},
		{Name: vocab.FieldStartDate, Value: r.Start.String()},
		{Name: vocab.FieldDuration, Value: strconv.Itoa(r.Duration)},
		{Name: vocab.FieldMaxShiftDays, Value: strconv.Itoa(r.MaxShiftDays)},
	}
}

// ParseForm reads and validates a submitted booking form. Distance limits and
// shift days may be left blank; every other number and the start date are
// required.
func ParseForm(form url.Values) (Request, error) {
	p := fieldParser{lookup: func(name string) (string, bool, error) {
		value := strings.TrimSpace(form.Get(name))
		return value, value != "", nil
	}}
	return p.parse(true)
}

// Locate finds the booking request node of an invocation graph. When no
// node is typed BookingRequest, the request:BookingRequest node of a
// directly built graph is used and direct is true.
func Locate(g *store.Graph, ns vocab.Namespaces) (node store.Term, direct bool, err error) {
	node, card := g.UniqueSubjectOfType(ns.BookingRequestClass())
	switch card {
	case store.One:
		return node, false, nil
	case store.Many:
		return store.Term{}, false, fmt.Errorf("%w: more than one booking request node", ErrInvalidRequest)
	}

	node = ns.RequestTerm("BookingRequest")
	if len(g.Find(node, store.Any, store.Any)) == 0 {
		return store.Term{}, false, ErrNoRequest
	}
	return node, true, nil
}

// FromGraph reads the booking request out of an invocation graph. Blank or
// missing numbers mean no constraint. Graphs built directly under the
// request namespace are accepted when no typed BookingRequest node exists.
func FromGraph(g *store.Graph, ns vocab.Namespaces) (Request, error) {
	node, direct, err := Locate(g, ns)
	if err != nil {
		return Request{}, err
	}
	term := ns.Term
	if direct {
		term = ns.RequestTerm
	}

	p := fieldParser{lookup: func(name string) (string, bool, error) {
		object, card := g.UniqueObject(node, term(name))
		switch card {
		case store.None:
			return "", false, nil
		case store.Many:
			return "", false, fmt.Errorf("%w: %s has several values", ErrInvalidRequest, name)
		}
		value := strings.TrimSpace(object.Value)
		return value, value != "", nil
	}}
	return p.parse(false)
}

type fieldParser struct {
	lookup func(name string) (string, bool, error)
	errs   []error
}

func (p *fieldParser) parse(strict bool) (Request, error) {
	r := Request{
		BookerName:      p.text(vocab.FieldBookerName),
		Places:          p.integer(vocab.FieldNumberOfPlaces, strict, 0),
		Bedrooms:        p.integer(vocab.FieldNumberOfBedrooms, strict, 0),
		City:            p.text(vocab.FieldCityName),
		MaxCityDistance: p.integer(vocab.FieldDistanceFromCity, false, 0),
		MaxLakeDistance: p.integer(vocab.FieldDistanceFromLake, false, 0),
		Start:           p.date(vocab.FieldStartDate),
		Duration:        p.integer(vocab.FieldDuration, strict, 1),
		MaxShiftDays:    p.integer(vocab.FieldMaxShiftDays, false, 0),
	}
	if err := errors.Join(p.errs...); err != nil {
		return Request{}, err
	}

	if strict {
		if err := r.Validate(); err != nil {
			return Request{}, err
		}
		return r, nil
	}
	// Zero or blank places, bedrooms and duration ask for nothing; negatives
	// still fail.
	if r.Places == 0 {
		r.Places = 1
	}
	if r.Bedrooms == 0 {
		r.Bedrooms = 1
	}
	if r.Duration == 0 {
		r.Duration = 1
	}
	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

func (p *fieldParser) text(name string) string {
	value, _, err := p.lookup(name)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return value
}

func (p *fieldParser) integer(name string, required bool, fallback int) int {
	value, ok, err := p.lookup(name)
	if err != nil {
		p.errs = append(p.errs, err)
		return fallback
	}
	if !ok {
		if required {
			p.errs = append(p.errs, fmt.Errorf("%w: %s is required", ErrInvalidRequest, name))
		}
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%w: %s=%q is not a whole number", ErrInvalidRequest, name, value))
		return fallback
	}
	return n
}

func (p *fieldParser) date(name string) civil.Date {
	value, ok, err := p.lookup(name)
	if err != nil {
		p.errs = append(p.errs, err)
		return civil.Date{}
	}
	if !ok {
		p.errs = append(p.errs, fmt.Errorf("%s: %w: value is required", name, availability.ErrMalformedDate))
		return civil.Date{}
	}
	d, err := availability.ParseDate(name, value)
	if err != nil {
		p.errs = append(p.errs, err)
	}
	return d
}
