package provider

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/extract"
	"github.com/coolbeans/rdgmed/pkg/metrics"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/template"
)

func sampleService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	return NewService(ns, NewSnapshot(loadSample(t)), opts...)
}

func invocation(t *testing.T, r booking.Request) *store.Graph {
	t.Helper()
	rig, err := template.NewBuilder(ns).Build(template.Normalize(template.Default(ns)), r.Fields())
	require.NoError(t, err)
	return template.Denormalize(rig)
}

func TestServiceRDG(t *testing.T) {
	s := sampleService(t)

	rdg := s.RDG()
	node, card := rdg.UniqueSubjectOfType(ns.BookingRequestClass())
	require.Equal(t, store.One, card)
	assert.Equal(t, template.RequestNode(ns), node)

	rdg.Delete(node, store.Any, store.Any)
	assert.Equal(t, template.Default(ns).Count(), s.RDG().Count(), "callers get a copy")

	custom := store.NewGraph()
	require.NoError(t, custom.Add(ns.Resource("S"), ns.OperatesOn(), ns.Resource("G")))
	assert.Equal(t, 1, sampleService(t, WithRDG(custom)).RDG().Count())
}

func TestProcessRIG(t *testing.T) {
	m := metrics.New()
	s := sampleService(t, WithMetrics(m))
	rig := invocation(t, sampleRequest())

	rrg, err := s.ProcessRIG(context.Background(), rig)
	require.NoError(t, err)

	assert.Equal(t, rig.Count()+1+9, rrg.Count(), "invocation, mapping and offering description")
	for _, triple := range rig.All() {
		assert.True(t, rrg.Exists(triple.Subject, triple.Predicate, triple.Object), "echoes %s", triple)
	}

	result, err := extract.NewExtractor(ns).Extract(rrg)
	require.NoError(t, err)
	require.True(t, result.Found)
	assert.Equal(t, template.RequestNode(ns), result.Subject)
	assert.Equal(t, ns.Resource("Pinewood"), result.Node)
	assert.Equal(t, "Jyvaskyla 4 Road", result.Values["hasAddress"])

	interval, err := result.Availability()
	require.NoError(t, err)
	assert.Equal(t, "2023-06-25", interval.Start.String())
}

func TestProcessRIGNoMatch(t *testing.T) {
	s := sampleService(t)
	r := sampleRequest()
	r.City = "Oulu"
	rig := invocation(t, r)

	rrg, err := s.ProcessRIG(context.Background(), rig)
	require.NoError(t, err)
	assert.Equal(t, rig.Count(), rrg.Count())

	result, err := extract.NewExtractor(ns).Extract(rrg)
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestProcessRIGDirect(t *testing.T) {
	rig, err := template.NewBuilder(ns).BuildDirect(sampleRequest().Fields())
	require.NoError(t, err)

	rrg, err := sampleService(t).ProcessRIG(context.Background(), rig)
	require.NoError(t, err)

	object, card := rrg.UniqueObject(ns.RequestTerm("BookingRequest"), ns.MapsTo())
	require.Equal(t, store.One, card)
	assert.Equal(t, ns.Resource("Pinewood"), object)
}

func TestProcessRIGErrors(t *testing.T) {
	s := sampleService(t)

	_, err := s.ProcessRIG(context.Background(), store.NewGraph())
	assert.ErrorIs(t, err, booking.ErrNoRequest)

	rig, err := template.NewBuilder(ns).Build(template.Default(ns), []template.FieldValue{{Name: "duration", Value: "5"}})
	require.NoError(t, err)
	_, err = s.ProcessRIG(context.Background(), rig)
	assert.ErrorIs(t, err, availability.ErrMalformedDate)

	empty := NewService(ns, NewSnapshot(nil))
	_, err = empty.ProcessRIG(context.Background(), invocation(t, sampleRequest()))
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestSearch(t *testing.T) {
	results, err := sampleService(t).Search(context.Background(), sampleRequest())
	require.NoError(t, err)
	require.Len(t, results, 2)

	pinewood := results[0]
	assert.Equal(t, "Pinewood", pinewood.Cottage.IRI.LocalName())
	require.Len(t, pinewood.Bookings, 5, "the whole window fits")
	assert.Equal(t, "2023-06-29", pinewood.Bookings[0].Start.String())
	assert.Equal(t, availability.LabelExact, pinewood.Bookings[2].Label)

	lakeside := results[1]
	require.Len(t, lakeside.Bookings, 4, "availability starts on 2023-06-30")
	assert.Equal(t, "2023-06-30", lakeside.Bookings[0].Start.String())
	assert.Equal(t, "2023-07-04", lakeside.Bookings[0].End.String())
	assert.Equal(t, "Test Booker", lakeside.Bookings[0].BookerName)
}

func TestSearchNoMatch(t *testing.T) {
	r := sampleRequest()
	r.Places = 10

	results, err := sampleService(t).Search(context.Background(), r)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestSnapshotSwap(t *testing.T) {
	first := loadSample(t)
	s := NewSnapshot(first)
	assert.Same(t, first, s.Current())

	second := loadSample(t)
	assert.Same(t, first, s.Swap(second))
	assert.Same(t, second, s.Current())
}

func TestGenerateCatalog(t *testing.T) {
	opts := DefaultGenerateOptions()
	opts.Count = 12

	g := GenerateCatalog(ns, opts)
	again := GenerateCatalog(ns, opts)
	assert.Equal(t, store.SerializeTurtle(g), store.SerializeTurtle(again), "same seed, same catalog")

	c, err := LoadCatalog(strings.NewReader(store.SerializeTurtle(g)), ns)
	require.NoError(t, err)
	assert.Equal(t, 12, c.Len())

	for _, cottage := range c.Cottages() {
		assert.Contains(t, generatedCities, cottage.City)
		assert.True(t, strings.HasPrefix(cottage.Address, cottage.City+" "))
		assert.GreaterOrEqual(t, cottage.Places, 1)
		assert.LessOrEqual(t, cottage.Places, 5)
		assert.GreaterOrEqual(t, cottage.Bedrooms, 1)
		assert.LessOrEqual(t, cottage.Bedrooms, 4)
		assert.GreaterOrEqual(t, cottage.LakeDistance, 10)
		assert.LessOrEqual(t, cottage.CityDistance, 20)
		assert.LessOrEqual(t, cottage.Available.Length(), 29)
		assert.LessOrEqual(t, abs(cottage.Available.Start.DaysSince(opts.Center)), opts.Spread)
	}

	opts.Seed = 2
	assert.NotEqual(t, store.SerializeTurtle(g), store.SerializeTurtle(GenerateCatalog(ns, opts)))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func TestCatalogWatcherReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.ttl")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	m := metrics.New()
	snapshot := NewSnapshot(nil)
	w := NewCatalogWatcher(path, ns, snapshot, nil, m)

	require.NoError(t, w.Reload())
	require.NotNil(t, snapshot.Current())
	loaded := snapshot.Current()
	assert.Equal(t, 7, loaded.Len())

	require.NoError(t, os.WriteFile(path, []byte("not turtle {"), 0o644))
	assert.Error(t, w.Reload())
	assert.Same(t, loaded, snapshot.Current(), "a broken catalog keeps the previous one")
}

func TestCatalogWatcherRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.ttl")
	require.NoError(t, os.WriteFile(path, []byte(sampleCatalog), 0o644))

	snapshot := NewSnapshot(nil)
	w := NewCatalogWatcher(path, ns, snapshot, nil, nil)
	require.NoError(t, w.Reload())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	opts := DefaultGenerateOptions()
	opts.Count = 3
	generated := store.SerializeTurtle(GenerateCatalog(ns, opts))

	// the watch may not be registered yet, so keep rewriting until it is seen
	assert.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte(generated), 0o644); err != nil {
			return false
		}
		return snapshot.Current().Len() == 3
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.ttl"), []byte("ignored"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 3, snapshot.Current().Len())
}
