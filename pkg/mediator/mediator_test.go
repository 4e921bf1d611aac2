package mediator

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/rdgmed/pkg/align"
	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/extract"
	"github.com/coolbeans/rdgmed/pkg/metrics"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/template"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

var ns = vocab.Default()

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func sampleRequest() booking.Request {
	return booking.Request{
		BookerName:      "Test Booker",
		Places:          4,
		Bedrooms:        3,
		City:            "Jyvaskyla",
		MaxCityDistance: 300,
		MaxLakeDistance: 30,
		Start:           civil.Date{Year: 2023, Month: 7, Day: 1},
		Duration:        5,
		MaxShiftDays:    2,
	}
}

// fakeProvider serves rdg on /rdg and answers invocations with respond.
type fakeProvider struct {
	t        *testing.T
	rdg      *store.Graph
	respond  func(rig *store.Graph) *store.Graph
	received *store.Graph
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/rdg":
		w.Header().Set("Content-Type", turtleContentType)
		_, _ = io.WriteString(w, store.SerializeTurtle(f.rdg))
	case "/process_rig":
		assert.Equal(f.t, turtleContentType, r.Header.Get("Content-Type"))
		rig, err := store.ParseTurtle(r.Body)
		if !assert.NoError(f.t, err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.received = rig
		w.Header().Set("Content-Type", turtleContentType)
		_, _ = io.WriteString(w, store.SerializeTurtle(f.respond(rig)))
	default:
		http.NotFound(w, r)
	}
}

// mapTo answers with the invocation mapped onto a cottage available
// 2023-06-30 to 2023-07-20.
func mapTo(node store.Term) func(*store.Graph) *store.Graph {
	return func(rig *store.Graph) *store.Graph {
		rrg := rig.Clone()
		cottage := ns.Resource("Cottage7")
		_ = rrg.BulkAdd([]store.Triple{
			store.NewTriple(node, ns.MapsTo(), cottage),
			store.NewTriple(cottage, store.IRI(store.RDFType), ns.CottageClass()),
			store.NewTriple(cottage, ns.Term("hasAddress"), store.Literal("Jyvaskyla 7 Lane")),
			store.NewTriple(cottage, ns.Term("numberOfPlaces"), store.TypedLiteral("5", store.XSDInt)),
			store.NewTriple(cottage, ns.Term("startDate"), store.TypedLiteral("2023-06-30", store.XSDDate)),
			store.NewTriple(cottage, ns.Term("endDate"), store.TypedLiteral("2023-07-20", store.XSDDate)),
		})
		return rrg
	}
}

func newProvider(t *testing.T, rdg *store.Graph, respond func(*store.Graph) *store.Graph) (*fakeProvider, *httptest.Server) {
	t.Helper()
	fake := &fakeProvider{t: t, rdg: rdg, respond: respond}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return fake, server
}

func newService(opts ...Option) *Service {
	return NewService(ns, NewClient(5*time.Second), opts...)
}

func TestSubmit(t *testing.T) {
	fake, server := newProvider(t, template.Default(ns), mapTo(template.RequestNode(ns)))
	s := newService()

	out, err := s.Submit(context.Background(), server.URL+"/", sampleRequest())
	require.NoError(t, err)

	places, card := fake.received.UniqueObject(template.RequestNode(ns), ns.Term("numberOfPlaces"))
	require.Equal(t, store.One, card)
	assert.Equal(t, store.TypedLiteral("4", store.XSDInt), places, "filled template keeps its datatype")

	require.True(t, out.Result.Found)
	assert.Equal(t, ns.Resource("Cottage7"), out.Result.Node)
	assert.Equal(t, "Jyvaskyla 7 Lane", out.Result.Values["hasAddress"])
	assert.Equal(t, "2023-06-30", out.Available.Start.String())

	require.Len(t, out.Bookings, 4, "dates before the offering's availability are dropped")
	assert.Equal(t, "2023-06-30", out.Bookings[0].Start.String())
	assert.Equal(t, availability.LabelShifted, out.Bookings[0].Label)
	assert.Equal(t, availability.LabelExact, out.Bookings[1].Label)
	assert.Equal(t, "2023-07-07", out.Bookings[3].End.String())
}

func TestSubmitBlanksZeroValues(t *testing.T) {
	fake, server := newProvider(t, template.Default(ns), mapTo(template.RequestNode(ns)))
	r := sampleRequest()
	r.MaxShiftDays = 0

	out, err := newService().Submit(context.Background(), server.URL, r)
	require.NoError(t, err)

	shift, card := fake.received.UniqueObject(template.RequestNode(ns), ns.Term("maxShiftDays"))
	require.Equal(t, store.One, card)
	assert.Equal(t, store.Literal(""), shift)
	require.Len(t, out.Bookings, 1)
	assert.Equal(t, availability.LabelExact, out.Bookings[0].Label)
}

func TestSubmitNoResult(t *testing.T) {
	_, server := newProvider(t, template.Default(ns), func(rig *store.Graph) *store.Graph { return rig })

	out, err := newService().Submit(context.Background(), server.URL, sampleRequest())
	require.NoError(t, err)
	assert.False(t, out.Result.Found)
	assert.NotNil(t, out.Bookings)
	assert.Empty(t, out.Bookings)
}

func TestSubmitDirect(t *testing.T) {
	rdg := store.NewGraph()
	require.NoError(t, rdg.Add(ns.Resource("Service"), ns.OperatesOn(), ns.Resource("Graph")))
	node := ns.RequestTerm("BookingRequest")
	fake, server := newProvider(t, rdg, mapTo(node))

	out, err := newService().Submit(context.Background(), server.URL, sampleRequest())
	require.NoError(t, err)

	assert.True(t, fake.received.Exists(node, ns.RequestTerm("cityName"), store.Literal("Jyvaskyla")))
	assert.True(t, out.Result.Found)
}

func TestSubmitDefaultProvider(t *testing.T) {
	_, server := newProvider(t, template.Default(ns), mapTo(template.RequestNode(ns)))
	s := newService(WithProviderURL(server.URL))

	out, err := s.Submit(context.Background(), "", sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, server.URL, out.ProviderURL)
	assert.True(t, out.Result.Found)
}

func TestSubmitUnreadableAvailability(t *testing.T) {
	respond := func(rig *store.Graph) *store.Graph {
		rrg := rig.Clone()
		_ = rrg.Add(template.RequestNode(ns), ns.MapsTo(), ns.Resource("Cottage9"))
		_ = rrg.Add(ns.Resource("Cottage9"), ns.Term("hasAddress"), store.Literal("Somewhere"))
		return rrg
	}
	_, server := newProvider(t, template.Default(ns), respond)

	out, err := newService().Submit(context.Background(), server.URL, sampleRequest())
	require.NoError(t, err)
	assert.Len(t, out.Bookings, 5, "the whole window is offered")
}

func TestSubmitErrors(t *testing.T) {
	t.Run("template status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "down", http.StatusInternalServerError)
		}))
		defer server.Close()

		_, err := newService().Submit(context.Background(), server.URL, sampleRequest())
		require.ErrorIs(t, err, ErrProviderUnavailable)
		assert.ErrorContains(t, err, "500")
	})

	t.Run("unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		_, err := newService().Submit(context.Background(), url, sampleRequest())
		assert.ErrorIs(t, err, ErrProviderUnavailable)
	})

	t.Run("malformed response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "this is { not turtle")
		}))
		defer server.Close()

		_, err := newService().Submit(context.Background(), server.URL, sampleRequest())
		require.ErrorIs(t, err, ErrProviderUnavailable)
		assert.ErrorIs(t, err, store.ErrMalformedGraph)
	})

	t.Run("ambiguous mapping", func(t *testing.T) {
		respond := func(rig *store.Graph) *store.Graph {
			rrg := rig.Clone()
			_ = rrg.Add(template.RequestNode(ns), ns.MapsTo(), ns.Resource("Cottage1"))
			_ = rrg.Add(template.RequestNode(ns), ns.MapsTo(), ns.Resource("Cottage2"))
			return rrg
		}
		_, server := newProvider(t, template.Default(ns), respond)

		_, err := newService().Submit(context.Background(), server.URL, sampleRequest())
		assert.ErrorIs(t, err, extract.ErrAmbiguousMapping)
	})

	t.Run("invalid shift", func(t *testing.T) {
		r := sampleRequest()
		r.MaxShiftDays = -3

		_, err := newService().Submit(context.Background(), "http://127.0.0.1:1", r)
		assert.ErrorIs(t, err, availability.ErrNegativeShift)
	})
}

func TestClientRecordsProviderCalls(t *testing.T) {
	m := metrics.New()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(time.Second, WithClientMetrics(m))
	_, err := client.FetchTemplate(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrProviderUnavailable)

	assert.Equal(t, 1.0, counterValue(t, m.ProviderErrorsTotal.WithLabelValues("fetch_template")))
}

func TestClientHonoursContext(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(time.Minute).FetchGraph(ctx, server.URL)
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientRejectsOversizedGraph(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/turtle")
		_, _ = io.WriteString(w, candidateRDG)
	}))
	defer server.Close()

	// a cut after the hasMapping statement would still parse
	client := NewClient(time.Second)
	client.maxBytes = int64(strings.Index(candidateRDG, "ex:Request a"))
	_, err := client.FetchGraph(context.Background(), server.URL)
	require.ErrorIs(t, err, ErrProviderUnavailable)
	assert.ErrorContains(t, err, "graph larger than")

	client.maxBytes = int64(len(candidateRDG))
	g, err := client.FetchGraph(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 6, g.Count())
}

const candidateRDG = `@prefix ex: <http://example.org/hotel#> .
@prefix sswap: <http://sswapmeet.sswap.info/sswap/> .

ex:Service sswap:operatesOn ex:Graph .
ex:Graph sswap:hasMapping ex:Request .
ex:Request a ex:Request ;
    ex:address "" ;
    ex:placeCount "" ;
    ex:nearestCity "" .
`

func TestAlign(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, candidateRDG)
	}))
	defer server.Close()

	m := metrics.New()
	reference := store.NewGraph()
	request := ns.Resource("BookingRequest")
	require.NoError(t, reference.BulkAdd([]store.Triple{
		store.NewTriple(ns.Resource("Graph"), ns.HasMapping(), request),
		store.NewTriple(request, ns.Term("hasAddress"), store.Literal("")),
		store.NewTriple(request, ns.Term("numberOfPlaces"), store.Literal("")),
		store.NewTriple(request, ns.Term("cityName"), store.Literal("")),
	}))
	s := newService(WithReference(reference), WithMetrics(m))

	alignment, err := s.Align(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, 3, alignment.Len())

	best, ok := alignment.Best("hasAddress")
	require.True(t, ok)
	assert.Equal(t, "http://example.org/hotel#address", best.Candidate.IRI)

	selections := alignment.Selections()
	assert.Contains(t, selections, align.Selection{
		Reference: vocab.CottageNamespace + "hasAddress",
		Candidate: "http://example.org/hotel#address",
	})
	assert.Equal(t, 1.0, counterValue(t, m.AlignmentsTotal))
}

func TestAlignDefaultReference(t *testing.T) {
	g, err := store.ParseTurtleString(candidateRDG)
	require.NoError(t, err)

	alignment := newService().AlignGraph(g)
	assert.Equal(t, len(vocab.RequestFields), alignment.Len())
}

func TestAlignUnreachable(t *testing.T) {
	_, err := newService().Align(context.Background(), "http://127.0.0.1:1/rdg")
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestSaveAlignment(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	m := metrics.New()
	s := newService(WithPersister(align.NewPersister(dir, align.WithClock(func() time.Time { return now }))), WithMetrics(m))

	selections := []align.Selection{{Reference: vocab.CottageNamespace + "hasAddress", Candidate: "http://example.org/hotel#address"}}
	path, err := s.SaveAlignment(selections)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "alignment-20240309-140506.ttl"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	saved, err := store.ParseTurtleString(string(data))
	require.NoError(t, err)
	assert.True(t, saved.Exists(
		store.IRI(vocab.CottageNamespace+"hasAddress"),
		store.IRI(store.OWLSameAs),
		store.IRI("http://example.org/hotel#address"),
	))

	_, err = s.SaveAlignment(selections)
	assert.ErrorIs(t, err, align.ErrAlignmentExists)
	assert.Equal(t, 1.0, counterValue(t, m.AlignmentSavesTotal.WithLabelValues("error")))
}
