package mediator

import (
	"context"
	"errors"
	"fmt"

	"github.com/coolbeans/rdgmed/pkg/align"
	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/extract"
	"github.com/coolbeans/rdgmed/pkg/logger"
	"github.com/coolbeans/rdgmed/pkg/metrics"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/template"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

// Service runs the mediation pipeline and the vocabulary alignment.
type Service struct {
	ns          vocab.Namespaces
	client      *Client
	builder     *template.Builder
	extractor   *extract.Extractor
	reference   *store.Graph
	persister   *align.Persister
	providerURL string
	log         *logger.Logger
	metrics     *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithProviderURL sets the provider used when a submission names none.
func WithProviderURL(url string) Option {
	return func(s *Service) {
		s.providerURL = url
	}
}

// WithReference sets the mediator's own request template, the reference
// side of every alignment.
func WithReference(g *store.Graph) Option {
	return func(s *Service) {
		s.reference = g
	}
}

// WithPersister sets where confirmed alignments are saved.
func WithPersister(p *align.Persister) Option {
	return func(s *Service) {
		s.persister = p
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

// NewService creates a mediator talking to providers through client.
func NewService(ns vocab.Namespaces, client *Client, opts ...Option) *Service {
	s := &Service{
		ns:        ns,
		client:    client,
		builder:   template.NewBuilder(ns),
		extractor: extract.NewExtractor(ns),
		log:       logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reference == nil {
		s.reference = template.Default(ns)
	}
	if s.persister == nil {
		s.persister = align.NewPersister("Saved_Alignments")
	}
	return s
}

// ProviderURL returns the default provider.
func (s *Service) ProviderURL() string {
	return s.providerURL
}

// Outcome is the mediated answer to one booking request. When Result.Found
// is false the provider had no offering and Bookings is empty.
type Outcome struct {
	ProviderURL string
	Request     booking.Request
	RIG         *store.Graph
	Result      extract.Result
	Available   availability.Interval
	Bookings    []booking.Booking
}

// Submit mediates r with the provider at serviceURL, or the default provider
// when serviceURL is empty: it fetches and normalizes the provider's
// template, fills it in, sends it and extracts the mapped offering. Bookings
// are listed only for dates the offering is actually available.
func (s *Service) Submit(ctx context.Context, serviceURL string, r booking.Request) (Outcome, error) {
	if serviceURL == "" {
		serviceURL = s.providerURL
	}
	out := Outcome{ProviderURL: serviceURL, Request: r, Bookings: []booking.Booking{}}

	window, err := r.Window()
	if err != nil {
		return out, err
	}

	rdg, err := s.client.FetchTemplate(ctx, serviceURL)
	if err != nil {
		return out, err
	}
	rig, err := s.BuildRIG(rdg, r)
	if err != nil {
		return out, err
	}
	out.RIG = rig

	rrg, err := s.client.SendRIG(ctx, serviceURL, rig)
	if err != nil {
		return out, err
	}
	out.Result, err = s.extractor.Extract(rrg)
	if err != nil {
		return out, err
	}
	if !out.Result.Found {
		s.log.Info().Str("provider", serviceURL).Msg("provider returned no offering")
		return out, nil
	}

	out.Available, err = out.Result.Availability()
	if err != nil {
		// without dates the whole window is offered
		s.log.Warn().Err(err).Str("offering", out.Result.Node.Value).Msg("offering availability unreadable")
		out.Available = availability.Interval{Start: window.Earliest, End: window.Latest}
	}
	out.Bookings, err = booking.Bookings(r, out.Available)
	if err != nil {
		return out, err
	}
	if s.metrics != nil {
		s.metrics.OfferingsMatchedTotal.Inc()
		s.metrics.CandidatesTotal.Add(float64(len(out.Bookings)))
	}
	s.log.Info().
		Str("provider", serviceURL).
		Str("offering", out.Result.Node.Value).
		Int("bookings", len(out.Bookings)).
		Msg("booking request mediated")
	return out, nil
}

// BuildRIG turns a provider template into the invocation graph for r. A
// template without a BookingRequest node gets a graph built directly on the
// request namespace instead.
func (s *Service) BuildRIG(rdg *store.Graph, r booking.Request) (*store.Graph, error) {
	rig, err := s.builder.Build(template.Normalize(rdg), r.Fields())
	switch {
	case errors.Is(err, template.ErrNoRequestNode):
		s.log.Debug().Msg("template has no booking request node, building directly")
		rig, err = s.builder.BuildDirect(r.Fields())
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		rig = template.Denormalize(rig)
	}
	s.ns.Bind(rig)
	return rig, nil
}

// Reference returns a copy of the mediator's own template.
func (s *Service) Reference() *store.Graph {
	return s.reference.Clone()
}

// Align ranks the vocabulary of the template at rdgURL against the
// mediator's own.
func (s *Service) Align(ctx context.Context, rdgURL string) (align.Alignment, error) {
	candidate, err := s.client.FetchGraph(ctx, rdgURL)
	if err != nil {
		return align.Alignment{}, err
	}
	alignment := s.AlignGraph(candidate)
	s.log.Info().
		Str("rdg", rdgURL).
		Int("terms", alignment.Len()).
		Msg("vocabularies aligned")
	return alignment, nil
}

// AlignGraph ranks the vocabulary of a template against the mediator's own.
func (s *Service) AlignGraph(candidate *store.Graph) align.Alignment {
	alignment := align.AlignTerms(align.Vocabulary(s.reference, s.ns), align.Vocabulary(candidate, s.ns))
	if s.metrics != nil {
		s.metrics.AlignmentsTotal.Inc()
	}
	return alignment
}

// SaveAlignment persists confirmed selections and returns the file written.
func (s *Service) SaveAlignment(selections []align.Selection) (string, error) {
	path, err := s.persister.Save(selections)
	if s.metrics != nil {
		s.metrics.RecordAlignmentSave(err)
	}
	if err != nil {
		s.log.Error().Err(err).Str("dir", s.persister.Dir()).Msg("alignment save failed")
		return "", fmt.Errorf("save alignment: %w", err)
	}
	s.log.Info().Str("path", path).Int("selections", len(selections)).Msg("alignment saved")
	return path, nil
}
