package server

import (
	"io"
	"net/http"

	"github.com/munnerz/goautoneg"

	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/logger"
	"github.com/coolbeans/rdgmed/pkg/metrics"
	"github.com/coolbeans/rdgmed/pkg/provider"
	"github.com/coolbeans/rdgmed/pkg/store"
)

const maxGraphBytes = 8 << 20

// graphFormats are the representations a graph endpoint can answer with,
// preferred first.
var graphFormats = []string{store.ContentTypeTurtle, store.ContentTypeJSONLD, store.ContentTypeRDFXML}

type providerHandler struct {
	svc   *provider.Service
	pages *pages
	log   *logger.Logger
}

// NewProviderHandler routes the provider's template, invocation and search
// endpoints.
func NewProviderHandler(svc *provider.Service, m *metrics.Metrics, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("provider-http")
	h := &providerHandler{
		svc:   svc,
		pages: loadPages(log, "search_form", "search_results"),
		log:   log,
	}

	health := func() map[string]any {
		offerings := 0
		if c, err := svc.Catalog(); err == nil {
			offerings = c.Len()
		}
		return map[string]any{"offerings": offerings}
	}

	r := newRouter("provider", m, log, health)
	r.Get("/", h.searchForm)
	r.Post("/search_cottages", h.searchCottages)
	r.Get("/rdg", h.rdg)
	r.Post("/process_rig", h.processRIG)
	return r
}

func (h *providerHandler) searchForm(w http.ResponseWriter, _ *http.Request) {
	h.pages.render(w, http.StatusOK, "search_form", formPage{
		Title:    "Search for Cottage Bookings",
		Defaults: defaultRequest(),
	})
}

type searchResultsPage struct {
	Title   string
	Results []provider.SearchResult
}

func (h *providerHandler) searchCottages(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		h.pages.fail(w, r, err)
		return
	}
	req, err := booking.ParseForm(r.PostForm)
	if err != nil {
		h.pages.fail(w, r, err)
		return
	}

	results, err := h.svc.Search(r.Context(), req)
	if err != nil {
		h.pages.fail(w, r, err)
		return
	}
	h.pages.render(w, http.StatusOK, "search_results", searchResultsPage{
		Title:   "Search Results",
		Results: results,
	})
}

func (h *providerHandler) rdg(w http.ResponseWriter, r *http.Request) {
	h.writeGraph(w, r, h.svc.RDG())
}

func (h *providerHandler) processRIG(w http.ResponseWriter, r *http.Request) {
	rig, err := store.ParseTurtle(http.MaxBytesReader(w, r.Body, maxGraphBytes))
	if err != nil {
		h.graphError(w, r, err)
		return
	}
	rrg, err := h.svc.ProcessRIG(r.Context(), rig)
	if err != nil {
		h.graphError(w, r, err)
		return
	}
	h.writeGraph(w, r, rrg)
}

// graphError answers a graph endpoint in plain text; its callers are
// programs, not browsers.
func (h *providerHandler) graphError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	h.log.Warn().Err(err).Str("path", r.URL.Path).Int("status", status).Msg("invocation rejected")
	http.Error(w, err.Error(), status)
}

// writeGraph answers with the representation the Accept header prefers.
// Turtle is the default and the answer to anything unknown.
func (h *providerHandler) writeGraph(w http.ResponseWriter, r *http.Request, g *store.Graph) {
	format := store.ContentTypeTurtle
	if accept := r.Header.Get("Accept"); accept != "" {
		if negotiated := goautoneg.Negotiate(accept, graphFormats); negotiated != "" {
			format = negotiated
		}
	}

	var body string
	switch format {
	case store.ContentTypeJSONLD:
		data, err := store.SerializeJSONLD(g)
		if err != nil {
			h.graphError(w, r, err)
			return
		}
		body = string(data)
	case store.ContentTypeRDFXML:
		xml, err := store.SerializeRDFXML(g)
		if err != nil {
			h.graphError(w, r, err)
			return
		}
		body = xml
	default:
		body = store.SerializeTurtle(g)
	}

	w.Header().Set("Content-Type", format+"; charset=utf-8")
	w.Header().Add("Vary", "Accept")
	_, _ = io.WriteString(w, body)
}
