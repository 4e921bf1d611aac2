// Package metrics provides Prometheus metrics for the mediator and provider.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all collectors. Each instance owns its registry so several
// services, or tests, can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight *prometheus.GaugeVec

	// Provider round trips, as seen by the mediator
	ProviderCallDuration *prometheus.HistogramVec
	ProviderErrorsTotal  *prometheus.CounterVec

	// Matching
	OfferingsMatchedTotal prometheus.Counter
	CandidatesTotal       prometheus.Counter
	CatalogOfferings      prometheus.Gauge
	CatalogReloadsTotal   *prometheus.CounterVec

	// Alignment
	AlignmentsTotal     prometheus.Counter
	AlignmentSavesTotal *prometheus.CounterVec
}

// New creates and registers every collector on a fresh registry, together
// with the Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{registry: reg}

	m.RequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdgmed_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "route", "status"},
	)
	m.RequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rdgmed_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "route"},
	)
	m.RequestsInFlight = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rdgmed_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
		[]string{"service"},
	)

	m.ProviderCallDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rdgmed_provider_call_duration_seconds",
			Help:    "Duration of provider round trips in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)
	m.ProviderErrorsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdgmed_provider_errors_total",
			Help: "Total number of failed provider round trips",
		},
		[]string{"operation"},
	)

	m.OfferingsMatchedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "rdgmed_offerings_matched_total",
		Help: "Total number of offerings that matched a request window",
	})
	m.CandidatesTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "rdgmed_candidates_total",
		Help: "Total number of candidate booking periods produced",
	})
	m.CatalogOfferings = factory.NewGauge(prometheus.GaugeOpts{
		Name: "rdgmed_catalog_offerings",
		Help: "Number of offerings in the current catalog snapshot",
	})
	m.CatalogReloadsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdgmed_catalog_reloads_total",
			Help: "Total number of catalog reload attempts",
		},
		[]string{"status"},
	)

	m.AlignmentsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "rdgmed_alignments_total",
		Help: "Total number of alignments computed",
	})
	m.AlignmentSavesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rdgmed_alignment_saves_total",
			Help: "Total number of alignment save attempts",
		},
		[]string{"status"},
	)

	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          m.registry,
	})
}

// RecordRequest records a finished HTTP request.
func (m *Metrics) RecordRequest(service, route, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(service, route, status).Inc()
	m.RequestDuration.WithLabelValues(service, route).Observe(duration.Seconds())
}

// RecordProviderCall records one provider round trip.
func (m *Metrics) RecordProviderCall(operation string, duration time.Duration, err error) {
	m.ProviderCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.ProviderErrorsTotal.WithLabelValues(operation).Inc()
	}
}

// RecordCatalogReload records a reload attempt and the new catalog size.
func (m *Metrics) RecordCatalogReload(offerings int, err error) {
	if err != nil {
		m.CatalogReloadsTotal.WithLabelValues("error").Inc()
		return
	}
	m.CatalogReloadsTotal.WithLabelValues("success").Inc()
	m.CatalogOfferings.Set(float64(offerings))
}

// RecordAlignmentSave records an alignment save attempt.
func (m *Metrics) RecordAlignmentSave(err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.AlignmentSavesTotal.WithLabelValues(status).Inc()
}
