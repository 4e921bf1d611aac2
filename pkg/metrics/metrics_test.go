package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gather(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	t.Fatalf("metric family %s not gathered", name)
	return nil
}

func TestRecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest("mediator", "/submit_request", "200", 20*time.Millisecond)
	m.RecordRequest("mediator", "/submit_request", "200", 30*time.Millisecond)
	m.RecordRequest("mediator", "/submit_request", "502", time.Millisecond)

	family := gather(t, m, "rdgmed_http_requests_total")
	total := 0.0
	for _, metric := range family.GetMetric() {
		total += metric.GetCounter().GetValue()
	}
	assert.Equal(t, 3.0, total)
	assert.Len(t, family.GetMetric(), 2, "one series per status")

	histogram := gather(t, m, "rdgmed_http_request_duration_seconds")
	require.Len(t, histogram.GetMetric(), 1)
	assert.Equal(t, uint64(3), histogram.GetMetric()[0].GetHistogram().GetSampleCount())
}

func TestRecordProviderCall(t *testing.T) {
	m := New()
	m.RecordProviderCall("fetch_rdg", time.Millisecond, nil)
	m.RecordProviderCall("fetch_rdg", time.Millisecond, errors.New("refused"))

	errorsFamily := gather(t, m, "rdgmed_provider_errors_total")
	require.Len(t, errorsFamily.GetMetric(), 1)
	assert.Equal(t, 1.0, errorsFamily.GetMetric()[0].GetCounter().GetValue())
}

func TestRecordCatalogReload(t *testing.T) {
	m := New()
	m.RecordCatalogReload(12, nil)
	m.RecordCatalogReload(0, errors.New("bad turtle"))

	gauge := gather(t, m, "rdgmed_catalog_offerings")
	assert.Equal(t, 12.0, gauge.GetMetric()[0].GetGauge().GetValue(), "failed reload keeps the previous size")
	assert.Len(t, gather(t, m, "rdgmed_catalog_reloads_total").GetMetric(), 2)
}

func TestIndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordAlignmentSave(nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), "rdgmed_alignment_saves_total")
}
