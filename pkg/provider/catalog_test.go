package provider

import (
	"context"
	"strings"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

const catalogPrefixes = `@prefix cot: <http://users.jyu.fi/~kumapmxw/cottage-ontology.owl#> .
@prefix resource: <http://127.0.0.1:8000/> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
`

// Cottages against the sample request (4 places, 3 bedrooms, Jyvaskyla,
// city <= 300, lake <= 30, 2023-07-01 +/- 2 days, 5 days):
// Lakeside and Pinewood match, Tampere only without the city criterion,
// Shore only without the lake limit, the rest never.
const sampleCatalog = catalogPrefixes + `
resource:Lakeside a cot:Cottage ;
    cot:hasAddress "Jyvaskyla a Lane" ;
    cot:hasImageURL "http://example.org/images/lakeside.jpg" ;
    cot:cityName "Jyvaskyla" ;
    cot:numberOfPlaces "4"^^xsd:int ;
    cot:numberOfBedrooms "3"^^xsd:int ;
    cot:distanceFromCity "200"^^xsd:int ;
    cot:distanceFromLake "20"^^xsd:int ;
    cot:startDate "2023-06-30"^^xsd:date ;
    cot:endDate "2023-07-20"^^xsd:date .

resource:Pinewood a cot:Cottage ;
    cot:hasAddress "Jyvaskyla 4 Road" ;
    cot:cityName "Jyvaskyla" ;
    cot:numberOfPlaces "6"^^xsd:int ;
    cot:numberOfBedrooms "4"^^xsd:int ;
    cot:distanceFromCity "100"^^xsd:int ;
    cot:distanceFromLake "10"^^xsd:int ;
    cot:startDate "2023-06-25"^^xsd:date ;
    cot:endDate "2023-07-10"^^xsd:date .

resource:Tampere a cot:Cottage ;
    cot:hasAddress "Tampere x Park" ;
    cot:cityName "Tampere" ;
    cot:numberOfPlaces "5"^^xsd:int ;
    cot:numberOfBedrooms "3"^^xsd:int ;
    cot:distanceFromCity "50"^^xsd:int ;
    cot:distanceFromLake "5"^^xsd:int ;
    cot:startDate "2023-07-01"^^xsd:date ;
    cot:endDate "2023-07-15"^^xsd:date .

resource:Shore a cot:Cottage ;
    cot:hasAddress "Jyvaskyla S Circle" ;
    cot:cityName "Jyvaskyla" ;
    cot:numberOfPlaces "4"^^xsd:int ;
    cot:numberOfBedrooms "3"^^xsd:int ;
    cot:distanceFromCity "10"^^xsd:int ;
    cot:distanceFromLake "500"^^xsd:int ;
    cot:startDate "2023-06-28"^^xsd:date ;
    cot:endDate "2023-07-10"^^xsd:date .

resource:Tiny a cot:Cottage ;
    cot:hasAddress "Jyvaskyla t Street" ;
    cot:cityName "Jyvaskyla" ;
    cot:numberOfPlaces "2"^^xsd:int ;
    cot:numberOfBedrooms "1"^^xsd:int ;
    cot:distanceFromCity "10"^^xsd:int ;
    cot:distanceFromLake "10"^^xsd:int ;
    cot:startDate "2023-06-01"^^xsd:date ;
    cot:endDate "2023-08-01"^^xsd:date .

resource:August a cot:Cottage ;
    cot:hasAddress "Jyvaskyla 8 Avenue" ;
    cot:cityName "Jyvaskyla" ;
    cot:numberOfPlaces "4"^^xsd:int ;
    cot:numberOfBedrooms "3"^^xsd:int ;
    cot:distanceFromCity "10"^^xsd:int ;
    cot:distanceFromLake "10"^^xsd:int ;
    cot:startDate "2023-08-01"^^xsd:date ;
    cot:endDate "2023-08-10"^^xsd:date .

resource:Weekend a cot:Cottage ;
    cot:hasAddress "Jyvaskyla w Boulevard" ;
    cot:cityName "Jyvaskyla" ;
    cot:numberOfPlaces "4"^^xsd:int ;
    cot:numberOfBedrooms "3"^^xsd:int ;
    cot:distanceFromCity "10"^^xsd:int ;
    cot:distanceFromLake "10"^^xsd:int ;
    cot:startDate "2023-07-01"^^xsd:date ;
    cot:endDate "2023-07-02"^^xsd:date .
`

var ns = vocab.Default()

func loadSample(t *testing.T) *Catalog {
	t.Helper()
	c, err := LoadCatalog(strings.NewReader(sampleCatalog), ns)
	require.NoError(t, err)
	return c
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

func names(cottages []Cottage) []string {
	out := make([]string, 0, len(cottages))
	for _, c := range cottages {
		out = append(out, c.IRI.LocalName())
	}
	return out
}

func TestLoadCatalog(t *testing.T) {
	c := loadSample(t)

	assert.Equal(t, 7, c.Len())
	lakeside, ok := c.Cottage(ns.Resource("Lakeside").Value)
	require.True(t, ok)
	assert.Equal(t, "Jyvaskyla a Lane", lakeside.Address)
	assert.Equal(t, "http://example.org/images/lakeside.jpg", lakeside.ImageURL)
	assert.Equal(t, 4, lakeside.Places)
	assert.Equal(t, 20, lakeside.LakeDistance)
	assert.Equal(t, "2023-06-30", lakeside.Available.Start.String())
	assert.Equal(t, 20, lakeside.Available.Length())

	assert.Equal(t, []string{"August", "Lakeside", "Pinewood", "Shore", "Tampere", "Tiny", "Weekend"}, names(c.Cottages()))
}

func TestLoadCatalogRejectsIncompleteCottages(t *testing.T) {
	testCases := []struct {
		name    string
		body    string
		message string
	}{
		{
			name: "missing end date",
			body: `resource:C a cot:Cottage ;
    cot:hasAddress "a" ; cot:cityName "b" ;
    cot:numberOfPlaces "1"^^xsd:int ; cot:numberOfBedrooms "1"^^xsd:int ;
    cot:distanceFromCity "1"^^xsd:int ; cot:distanceFromLake "1"^^xsd:int ;
    cot:startDate "2023-07-01"^^xsd:date .`,
			message: "endDate",
		},
		{
			name: "text places",
			body: `resource:C a cot:Cottage ;
    cot:hasAddress "a" ; cot:cityName "b" ;
    cot:numberOfPlaces "many" ; cot:numberOfBedrooms "1"^^xsd:int ;
    cot:distanceFromCity "1"^^xsd:int ; cot:distanceFromLake "1"^^xsd:int ;
    cot:startDate "2023-07-01"^^xsd:date ; cot:endDate "2023-07-02"^^xsd:date .`,
			message: "numberOfPlaces",
		},
		{
			name: "ends before it starts",
			body: `resource:C a cot:Cottage ;
    cot:hasAddress "a" ; cot:cityName "b" ;
    cot:numberOfPlaces "1"^^xsd:int ; cot:numberOfBedrooms "1"^^xsd:int ;
    cot:distanceFromCity "1"^^xsd:int ; cot:distanceFromLake "1"^^xsd:int ;
    cot:startDate "2023-07-05"^^xsd:date ; cot:endDate "2023-07-02"^^xsd:date .`,
			message: "ends before it starts",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadCatalog(strings.NewReader(catalogPrefixes+tc.body), ns)
			require.ErrorIs(t, err, ErrInvalidCatalog)
			assert.ErrorContains(t, err, tc.message)
		})
	}
}

func TestLoadCatalogFileMissing(t *testing.T) {
	_, err := LoadCatalogFile(t.TempDir()+"/absent.ttl", ns)
	assert.Error(t, err)
}

func TestMatch(t *testing.T) {
	c := loadSample(t)

	matches, err := c.Match(context.Background(), sampleRequest())
	require.NoError(t, err)
	assert.Equal(t, []string{"Pinewood", "Lakeside"}, names(matches), "earliest availability first")
}

func TestMatchCriteria(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(*booking.Request)
		want   []string
	}{
		{"any city", func(r *booking.Request) { r.City = "" }, []string{"Pinewood", "Lakeside", "Tampere"}},
		{"no lake limit", func(r *booking.Request) { r.MaxLakeDistance = 0 }, []string{"Pinewood", "Shore", "Lakeside"}},
		{"more bedrooms", func(r *booking.Request) { r.Bedrooms = 4 }, []string{"Pinewood"}},
		{"close to the city", func(r *booking.Request) { r.MaxCityDistance = 150 }, []string{"Pinewood"}},
		{"short stay", func(r *booking.Request) { r.Duration = 1; r.Places = 3 }, []string{"Pinewood", "Lakeside", "Weekend"}},
		{"other city", func(r *booking.Request) { r.City = "Oulu" }, []string{}},
		{"august", func(r *booking.Request) { r.Start = civil.Date{Year: 2023, Month: 8, Day: 5} }, []string{"August"}},
	}

	c := loadSample(t)
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := sampleRequest()
			tc.modify(&r)

			matches, err := c.Match(context.Background(), r)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(matches))
		})
	}
}

func TestMatchInvalidShift(t *testing.T) {
	r := sampleRequest()
	r.MaxShiftDays = -1

	_, err := loadSample(t).Match(context.Background(), r)
	assert.Error(t, err)
}

func TestMatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loadSample(t).Match(ctx, sampleRequest())
	assert.ErrorIs(t, err, context.Canceled)
}
