// Package extract reads the result node out of a provider's response graph
// (RRG).
package extract

import (
	"errors"
	"fmt"

	"github.com/coolbeans/rdgmed/pkg/availability"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

// ErrAmbiguousMapping is returned when a response carries more than one
// mapsTo triple.
var ErrAmbiguousMapping = errors.New("response maps to more than one result")

// Result is what a response graph says about its mapped node.
//
// Found is false when the response has no mapsTo triple at all, which means
// the provider had nothing to offer. Values holds recognized fields by name;
// Unmapped holds every other predicate by full IRI. Neither map is nil.
type Result struct {
	Found    bool
	Subject  store.Term
	Node     store.Term
	Types    []store.Term
	Values   map[string]string
	Unmapped map[string]string
}

// Value returns a recognized field value.
func (r Result) Value(field string) (string, bool) {
	v, ok := r.Values[field]
	return v, ok
}

// Availability returns the offering's availability interval from its
// startDate and endDate fields.
func (r Result) Availability() (availability.Interval, error) {
	start, err := availability.ParseDate(vocab.FieldStartDate, r.Values[vocab.FieldStartDate])
	if err != nil {
		return availability.Interval{}, err
	}
	end, err := availability.ParseDate(vocab.FieldEndDate, r.Values[vocab.FieldEndDate])
	if err != nil {
		return availability.Interval{}, err
	}
	return availability.NewInterval(start, end)
}

// Extractor resolves mapped nodes against a field table.
type Extractor struct {
	ns     vocab.Namespaces
	fields vocab.FieldTable
}

// NewExtractor creates an extractor for offering fields.
func NewExtractor(ns vocab.Namespaces) *Extractor {
	return &Extractor{ns: ns, fields: vocab.NewFieldTable(ns, vocab.OfferingFields)}
}

// Extract locates the single mapsTo triple of g and collects the properties
// of its object. When a predicate has several objects the first in term
// order is kept. No value is invented for a missing field.
func (e *Extractor) Extract(g *store.Graph) (Result, error) {
	result := Result{
		Values:   make(map[string]string),
		Unmapped: make(map[string]string),
	}

	mapping, card := g.UniqueTriple(store.Any, e.ns.MapsTo(), store.Any)
	switch card {
	case store.None:
		return result, nil
	case store.Many:
		count := len(g.Find(store.Any, e.ns.MapsTo(), store.Any))
		return result, fmt.Errorf("%w: %d mapsTo triples", ErrAmbiguousMapping, count)
	}

	result.Found = true
	result.Subject = mapping.Subject
	result.Node = mapping.Object

	rdfType := store.IRI(store.RDFType)
	for _, triple := range g.Find(mapping.Object, store.Any, store.Any) {
		if triple.Predicate.Equals(rdfType) {
			result.Types = append(result.Types, triple.Object)
			continue
		}
		if field, ok := e.fields.Lookup(triple.Predicate); ok {
			if _, seen := result.Values[field.Name]; !seen {
				result.Values[field.Name] = triple.Object.Value
			}
			continue
		}
		if _, seen := result.Unmapped[triple.Predicate.Value]; !seen {
			result.Unmapped[triple.Predicate.Value] = triple.Object.Value
		}
	}
	return result, nil
}
