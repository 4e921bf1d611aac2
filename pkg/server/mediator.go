package server

import (
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/coolbeans/rdgmed/pkg/align"
	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/logger"
	"github.com/coolbeans/rdgmed/pkg/mediator"
	"github.com/coolbeans/rdgmed/pkg/metrics"
)

const maxFormBytes = 1 << 20

type mediatorHandler struct {
	svc   *mediator.Service
	pages *pages
}

// NewMediatorHandler routes the mediator's pages and form endpoints.
func NewMediatorHandler(svc *mediator.Service, m *metrics.Metrics, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("mediator-http")
	h := &mediatorHandler{
		svc: svc,
		pages: loadPages(log,
			"home", "booking_form", "booking_results",
			"alignment_form", "alignment_results", "alignment_saved"),
	}

	r := newRouter("mediator", m, log, nil)
	r.Get("/", h.home)
	r.Get("/booking_form", h.bookingForm)
	r.Post("/submit_request", h.submitRequest)
	r.Get("/align_ontology", h.alignmentForm)
	r.Post("/perform_alignment", h.performAlignment)
	r.Post("/save_alignment", h.saveAlignment)
	return r
}

func (h *mediatorHandler) home(w http.ResponseWriter, _ *http.Request) {
	h.pages.render(w, http.StatusOK, "home", formPage{Title: "Mediator for Cottage Booking"})
}

func (h *mediatorHandler) bookingForm(w http.ResponseWriter, _ *http.Request) {
	h.pages.render(w, http.StatusOK, "booking_form", formPage{
		Title:       "Book a Cottage",
		ProviderURL: h.svc.ProviderURL(),
		Defaults:    defaultRequest(),
	})
}

type bookingResultsPage struct {
	Title       string
	ProviderURL string
	Found       bool
	ImageURL    string
	Values      map[string]string
	Available   availability.Interval
	Request     booking.Request
	Bookings    []booking.Booking
}

// Field returns an offering field, or "Not available" when the provider did
// not send it.
func (p bookingResultsPage) Field(name string) string {
	if v, ok := p.Values[name]; ok && v != "" {
		return v
	}
	return "Not available"
}

func (h *mediatorHandler) submitRequest(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		h.pages.fail(w, r, err)
		return
	}
	req, err := booking.ParseForm(r.PostForm)
	if err != nil {
		h.pages.fail(w, r, err)
		return
	}

	out, err := h.svc.Submit(r.Context(), strings.TrimSpace(r.PostForm.Get("booking_service_url")), req)
	if err != nil {
		h.pages.fail(w, r, err)
		return
	}
	h.pages.render(w, http.StatusOK, "booking_results", bookingResultsPage{
		Title:       "Booking Results",
		ProviderURL: out.ProviderURL,
		Found:       out.Result.Found,
		ImageURL:    out.Result.Values["hasImageURL"],
		Values:      out.Result.Values,
		Available:   out.Available,
		Request:     out.Request,
		Bookings:    out.Bookings,
	})
}

func (h *mediatorHandler) alignmentForm(w http.ResponseWriter, _ *http.Request) {
	rdgURL := ""
	if provider := h.svc.ProviderURL(); provider != "" {
		rdgURL = strings.TrimRight(provider, "/") + "/rdg"
	}
	h.pages.render(w, http.StatusOK, "alignment_form", formPage{Title: "Align Vocabularies", RDGURL: rdgURL})
}

type alignmentResultsPage struct {
	Title     string
	RDGURL    string
	Alignment align.Alignment
}

func (h *mediatorHandler) performAlignment(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		h.pages.fail(w, r, err)
		return
	}
	rdgURL := strings.TrimSpace(r.PostForm.Get("rdg_url"))
	if rdgURL == "" {
		h.pages.fail(w, r, fmt.Errorf("%w: rdg_url is required", errBadForm))
		return
	}

	alignment, err := h.svc.Align(r.Context(), rdgURL)
	if err != nil {
		h.pages.fail(w, r, err)
		return
	}
	h.pages.render(w, http.StatusOK, "alignment_results", alignmentResultsPage{
		Title:     "Alignment Results",
		RDGURL:    rdgURL,
		Alignment: alignment,
	})
}

type alignmentSavedPage struct {
	Title string
	Path  string
	Count int
}

// saveAlignment reads one field per reference term, named by its IRI, whose
// value is the chosen candidate IRI.
func (h *mediatorHandler) saveAlignment(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		h.pages.fail(w, r, err)
		return
	}

	references := make([]string, 0, len(r.PostForm))
	for reference := range r.PostForm {
		references = append(references, reference)
	}
	slices.Sort(references)

	selections := make([]align.Selection, 0, len(references))
	for _, reference := range references {
		candidate := strings.TrimSpace(r.PostForm.Get(reference))
		if candidate == "" {
			continue
		}
		selections = append(selections, align.Selection{Reference: reference, Candidate: candidate})
	}

	path, err := h.svc.SaveAlignment(selections)
	if err != nil {
		h.pages.fail(w, r, err)
		return
	}
	h.pages.render(w, http.StatusOK, "alignment_saved", alignmentSavedPage{
		Title: "Alignment Saved",
		Path:  path,
		Count: len(selections),
	})
}

func parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		return fmt.Errorf("%w: %w", errBadForm, err)
	}
	return nil
}
