// Package template prepares provider request templates (RDGs) and turns
// them into filled invocation graphs (RIGs).
//
// Templates published by providers leave typed literals empty, which most
// RDF tooling rejects as invalid values. Normalize substitutes sentinels so
// the template can be handled as a well-typed graph; Denormalize blanks the
// sentinels again on the copy sent back over the wire.
package template

import (
	"strings"

	"github.com/coolbeans/rdgmed/pkg/store"
)

// Sentinel values written in place of empty typed literals.
const (
	EpochDateTime = "1970-01-01T00:00:00"
	EpochDate     = "1970-01-01"
	ZeroInteger   = "0"
)

// Normalize returns a copy of g where every empty integer literal becomes 0
// and every empty date or dateTime literal becomes the epoch sentinel of the
// same datatype. Other triples are copied unchanged and g is not modified.
func Normalize(g *store.Graph) *store.Graph {
	return mapLiterals(g, normalizeLiteral)
}

// Denormalize returns a copy of g with every sentinel literal replaced by an
// empty plain literal.
//
// The sentinels are detected by value, so a genuine 0 or a genuine epoch
// date supplied by the client is blanked as well. Anything starting with
// 1970-01-01 counts, including dateTimes with a non-midnight time.
func Denormalize(g *store.Graph) *store.Graph {
	return mapLiterals(g, denormalizeLiteral)
}

func normalizeLiteral(term store.Term) store.Term {
	if !term.IsLiteral() || term.Value != "" {
		return term
	}
	switch {
	case store.IsIntegerDatatype(term.Datatype):
		return store.TypedLiteral(ZeroInteger, term.Datatype)
	case term.Datatype == store.XSDDateTime:
		return store.TypedLiteral(EpochDateTime, term.Datatype)
	case term.Datatype == store.XSDDate:
		return store.TypedLiteral(EpochDate, term.Datatype)
	}
	return term
}

func denormalizeLiteral(term store.Term) store.Term {
	if !term.IsLiteral() {
		return term
	}
	switch {
	case store.IsIntegerDatatype(term.Datatype) && term.Value == ZeroInteger:
		return store.Literal("")
	case store.IsTemporalDatatype(term.Datatype) && strings.HasPrefix(term.Value, EpochDate):
		return store.Literal("")
	}
	return term
}

// mapLiterals rebuilds g with fn applied to every object.
func mapLiterals(g *store.Graph, fn func(store.Term) store.Term) *store.Graph {
	out := store.NewGraph()
	for _, mapping := range g.Prefixes() {
		out.Bind(mapping.Prefix, mapping.Namespace)
	}

	triples := g.All()
	for i := range triples {
		triples[i].Object = fn(triples[i].Object)
	}
	// Every source triple is valid and fn only swaps literals for literals.
	_ = out.BulkAdd(triples)
	return out
}
