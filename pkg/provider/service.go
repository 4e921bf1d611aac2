package provider

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/logger"
	"github.com/coolbeans/rdgmed/pkg/metrics"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/template"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

// ErrNoCatalog is returned when the service has no catalog loaded.
var ErrNoCatalog = errors.New("no catalog loaded")

// Snapshot holds the current catalog. Readers always see a complete catalog;
// reloads replace it as a whole.
type Snapshot struct {
	current atomic.Pointer[Catalog]
}

// NewSnapshot creates a snapshot holding c, which may be nil.
func NewSnapshot(c *Catalog) *Snapshot {
	s := &Snapshot{}
	if c != nil {
		s.current.Store(c)
	}
	return s
}

// Current returns the catalog in use, or nil.
func (s *Snapshot) Current() *Catalog {
	return s.current.Load()
}

// Swap installs c and returns the catalog it replaces.
func (s *Snapshot) Swap(c *Catalog) *Catalog {
	return s.current.Swap(c)
}

// Service answers template requests, invocation graphs and direct searches
// against the current catalog snapshot.
type Service struct {
	ns       vocab.Namespaces
	snapshot *Snapshot
	rdg      *store.Graph
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithRDG publishes g instead of the built-in request template.
func WithRDG(g *store.Graph) Option {
	return func(s *Service) {
		s.rdg = g
	}
}

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

// WithMetrics sets the metrics the service records to.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a provider service over snapshot.
func NewService(ns vocab.Namespaces, snapshot *Snapshot, opts ...Option) *Service {
	s := &Service{
		ns:       ns,
		snapshot: snapshot,
		log:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rdg == nil {
		s.rdg = template.Default(ns)
	}
	return s
}

// Namespaces returns the vocabulary the service speaks.
func (s *Service) Namespaces() vocab.Namespaces {
	return s.ns
}

// RDG returns a copy of the published request template.
func (s *Service) RDG() *store.Graph {
	return s.rdg.Clone()
}

// Catalog returns the current catalog.
func (s *Service) Catalog() (*Catalog, error) {
	c := s.snapshot.Current()
	if c == nil {
		return nil, ErrNoCatalog
	}
	return c, nil
}

// ProcessRIG answers an invocation graph. The response echoes the invocation
// and, when an offering matches, maps the request node to the best match and
// carries that offering's description. No match leaves the mapping out.
func (s *Service) ProcessRIG(ctx context.Context, rig *store.Graph) (*store.Graph, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	node, _, err := booking.Locate(rig, s.ns)
	if err != nil {
		return nil, err
	}
	r, err := booking.FromGraph(rig, s.ns)
	if err != nil {
		return nil, err
	}

	matches, err := catalog.Match(ctx, r)
	if err != nil {
		return nil, err
	}
	s.recordMatches(len(matches))

	rrg := rig.Clone()
	s.ns.Bind(rrg)
	if len(matches) == 0 {
		s.log.Debug().Str("start", r.Start.String()).Msg("no offering matches invocation")
		return rrg, nil
	}

	best := matches[0]
	if err := rrg.Set(node, s.ns.MapsTo(), best.IRI); err != nil {
		return nil, fmt.Errorf("map request to offering: %w", err)
	}
	if err := rrg.BulkAdd(catalog.Graph().Find(best.IRI, store.Any, store.Any)); err != nil {
		return nil, fmt.Errorf("describe offering: %w", err)
	}
	s.log.Debug().
		Str("offering", best.IRI.Value).
		Int("matches", len(matches)).
		Msg("invocation mapped")
	return rrg, nil
}

// SearchResult is a matching cottage with every bookable period in the
// request window.
type SearchResult struct {
	Cottage  Cottage
	Bookings []booking.Booking
}

// Search returns every matching cottage, best first, each with its candidate
// bookings.
func (s *Service) Search(ctx context.Context, r booking.Request) ([]SearchResult, error) {
	catalog, err := s.Catalog()
	if err != nil {
		return nil, err
	}
	matches, err := catalog.Match(ctx, r)
	if err != nil {
		return nil, err
	}
	s.recordMatches(len(matches))

	results := make([]SearchResult, 0, len(matches))
	for _, cottage := range matches {
		bookings, err := booking.Bookings(r, cottage.Available)
		if err != nil {
			return nil, err
		}
		if s.metrics != nil {
			s.metrics.CandidatesTotal.Add(float64(len(bookings)))
		}
		results = append(results, SearchResult{Cottage: cottage, Bookings: bookings})
	}
	return results, nil
}

func (s *Service) recordMatches(n int) {
	if s.metrics != nil {
		s.metrics.OfferingsMatchedTotal.Add(float64(n))
	}
}
