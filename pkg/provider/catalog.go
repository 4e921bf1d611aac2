// Package provider implements the cottage booking provider: it publishes a
// request template, matches invocation graphs against its catalog and
// answers with response graphs.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/booking"
	"github.com/coolbeans/rdgmed/pkg/query"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

// ErrInvalidCatalog is returned when a catalog graph holds an incomplete or
// inconsistent cottage.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Cottage is one offering of the catalog.
type Cottage struct {
	IRI          store.Term
	Address      string
	ImageURL     string
	City         string
	Places       int
	Bedrooms     int
	CityDistance int
	LakeDistance int
	Available    availability.Interval
}

// Offering returns the cottage as an availability offering keyed by IRI.
func (c Cottage) Offering() availability.Offering {
	return availability.Offering{ID: c.IRI.Value, Available: c.Available}
}

// The attribute criteria run as a parameterized query; only the vocabulary
// namespace is formatted into the text.
const matchQueryText = `PREFIX cot: <%s>
SELECT ?cottage WHERE {
  ?cottage a cot:Cottage ;
    cot:numberOfPlaces ?places ;
    cot:numberOfBedrooms ?bedrooms ;
    cot:distanceFromCity ?cityDistance ;
    cot:distanceFromLake ?lakeDistance ;
    cot:cityName ?city .
  FILTER(?places >= $places)
  FILTER(?bedrooms >= $bedrooms)
  FILTER(?cityDistance <= $maxCityDistance)
  FILTER(?lakeDistance <= $maxLakeDistance)
  %s
}`

const cityFilter = `FILTER(?city = $city)`

// Catalog is an immutable snapshot of the provider's offerings.
type Catalog struct {
	graph    *store.Graph
	ns       vocab.Namespaces
	cottages map[string]Cottage
	executor *query.Executor
	anyCity  *query.Query
	sameCity *query.Query
}

// NewCatalog indexes every cot:Cottage node of g. The graph must not be
// modified afterwards.
func NewCatalog(g *store.Graph, ns vocab.Namespaces) (*Catalog, error) {
	anyCity, err := query.ParseQuery(fmt.Sprintf(matchQueryText, ns.TermNamespace(), ""))
	if err != nil {
		return nil, fmt.Errorf("compile match query: %w", err)
	}
	sameCity, err := query.ParseQuery(fmt.Sprintf(matchQueryText, ns.TermNamespace(), cityFilter))
	if err != nil {
		return nil, fmt.Errorf("compile match query: %w", err)
	}

	c := &Catalog{
		graph:    g,
		ns:       ns,
		cottages: make(map[string]Cottage),
		executor: query.NewExecutor(g),
		anyCity:  anyCity,
		sameCity: sameCity,
	}

	var errs []error
	for _, node := range g.SubjectsOfType(ns.CottageClass()) {
		cottage, err := c.readCottage(node)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		c.cottages[node.Value] = cottage
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadCatalog parses a Turtle catalog.
func LoadCatalog(r io.Reader, ns vocab.Namespaces) (*Catalog, error) {
	g, err := store.ParseTurtle(r)
	if err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return NewCatalog(g, ns)
}

// LoadCatalogFile parses a Turtle catalog file.
func LoadCatalogFile(path string, ns vocab.Namespaces) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return LoadCatalog(f, ns)
}

func (c *Catalog) readCottage(node store.Term) (Cottage, error) {
	var errs []error
	text := func(field string) string {
		object, card := c.graph.UniqueObject(node, c.ns.Term(field))
		if card != store.One {
			errs = append(errs, fmt.Errorf("%s: expected one %s, found %s", node.Value, field, card))
		}
		return object.Value
	}
	integer := func(field string) int {
		value := text(field)
		n, err := strconv.Atoi(value)
		if err != nil && value != "" {
			errs = append(errs, fmt.Errorf("%s: %s=%q is not a whole number", node.Value, field, value))
		}
		return n
	}
	cottage := Cottage{
		IRI:          node,
		Address:      text(vocab.FieldHasAddress),
		City:         text(vocab.FieldCityName),
		Places:       integer(vocab.FieldNumberOfPlaces),
		Bedrooms:     integer(vocab.FieldNumberOfBedrooms),
		CityDistance: integer(vocab.FieldDistanceFromCity),
		LakeDistance: integer(vocab.FieldDistanceFromLake),
	}
	if image, card := c.graph.UniqueObject(node, c.ns.Term(vocab.FieldHasImageURL)); card == store.One {
		cottage.ImageURL = image.Value
	}
	startText, endText := text(vocab.FieldStartDate), text(vocab.FieldEndDate)
	if err := errors.Join(errs...); err != nil {
		return Cottage{}, fmt.Errorf("%w: %w", ErrInvalidCatalog, err)
	}

	start, err := availability.ParseDate(vocab.FieldStartDate, startText)
	if err != nil {
		return Cottage{}, fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, node.Value, err)
	}
	end, err := availability.ParseDate(vocab.FieldEndDate, endText)
	if err != nil {
		return Cottage{}, fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, node.Value, err)
	}
	if cottage.Available, err = availability.NewInterval(start, end); err != nil {
		return Cottage{}, fmt.Errorf("%w: %s: %w", ErrInvalidCatalog, node.Value, err)
	}
	return cottage, nil
}

// Len returns the number of cottages.
func (c *Catalog) Len() int {
	return len(c.cottages)
}

// Graph returns the catalog graph. Callers must not modify it.
func (c *Catalog) Graph() *store.Graph {
	return c.graph
}

// Cottage looks a cottage up by IRI.
func (c *Catalog) Cottage(iri string) (Cottage, bool) {
	cottage, ok := c.cottages[iri]
	return cottage, ok
}

// Cottages returns every cottage ordered by IRI.
func (c *Catalog) Cottages() []Cottage {
	cottages := make([]Cottage, 0, len(c.cottages))
	for _, cottage := range c.cottages {
		cottages = append(cottages, cottage)
	}
	slices.SortFunc(cottages, func(a, b Cottage) int {
		return strings.Compare(a.IRI.Value, b.IRI.Value)
	})
	return cottages
}

// Match returns the cottages meeting every criterion of r whose availability
// overlaps the request window for at least the requested duration. Results
// are ordered by availability start, then IRI; the first is the best match.
// No match gives an empty, non-nil slice.
func (c *Catalog) Match(ctx context.Context, r booking.Request) ([]Cottage, error) {
	window, err := r.Window()
	if err != nil {
		return nil, err
	}

	params := query.Params{
		"places":          integerParam(r.Places),
		"bedrooms":        integerParam(r.Bedrooms),
		"maxCityDistance": limitParam(r.MaxCityDistance),
		"maxLakeDistance": limitParam(r.MaxLakeDistance),
	}
	q := c.anyCity
	if r.City != "" {
		q = c.sameCity
		params["city"] = store.Literal(r.City)
	}

	result, err := c.executor.ExecuteWithContext(ctx, q, params)
	if err != nil {
		return nil, fmt.Errorf("match catalog: %w", err)
	}

	offerings := make([]availability.Offering, 0, result.Count)
	for _, term := range result.Values("cottage") {
		if cottage, ok := c.cottages[term.Value]; ok {
			offerings = append(offerings, cottage.Offering())
		}
	}

	matched := availability.FilterOfferings(offerings, window, r.MinAvailability())
	cottages := make([]Cottage, 0, len(matched))
	for _, offering := range matched {
		cottages = append(cottages, c.cottages[offering.ID])
	}
	slices.SortFunc(cottages, func(a, b Cottage) int {
		switch {
		case a.Available.Start.Before(b.Available.Start):
			return -1
		case a.Available.Start.After(b.Available.Start):
			return 1
		}
		return strings.Compare(a.IRI.Value, b.IRI.Value)
	})
	return cottages, nil
}

func integerParam(n int) store.Term {
	return store.TypedLiteral(strconv.Itoa(n), store.XSDInteger)
}

// limitParam turns an unset (zero) distance limit into one nothing exceeds.
func limitParam(limit int) store.Term {
	if limit <= 0 {
		return integerParam(math.MaxInt32)
	}
	return integerParam(limit)
}
