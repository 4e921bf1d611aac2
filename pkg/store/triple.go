package store

import "fmt"

// Triple represents an RDF Subject-Predicate-Object statement.
//   - Subject: an IRI or blank node (e.g., resource:BookingRequest)
//   - Predicate: an IRI (e.g., cot:numberOfPlaces)
//   - Object: an IRI, blank node, or typed literal
type Triple struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// NewTriple creates a new triple with the given components.
func NewTriple(subject, predicate, object Term) Triple {
	return Triple{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
	}
}

// Equals checks if two triples have identical components.
func (t Triple) Equals(other Triple) bool {
	return t.Subject.Equals(other.Subject) &&
		t.Predicate.Equals(other.Predicate) &&
		t.Object.Equals(other.Object)
}

// String returns a human-readable representation of the triple.
func (t Triple) String() string {
	return fmt.Sprintf("%s %s %s", t.Subject.Key(), t.Predicate.Key(), t.Object.Key())
}

// NTriples returns the triple in N-Triples format.
func (t Triple) NTriples() string {
	return t.String() + " ."
}

// IsValid returns true if the components are usable in a graph: a resource
// subject, an IRI predicate, and a non-wildcard object.
func (t Triple) IsValid() bool {
	return t.Subject.IsResource() && t.Predicate.IsIRI() && !t.Object.IsZero()
}

// TriplePattern represents a pattern for matching triples.
// Zero terms act as wildcards that match any value.
type TriplePattern struct {
	Subject   Term
	Predicate Term
	Object    Term
}

// NewTriplePattern creates a new pattern for querying.
// Use Any for wildcards.
func NewTriplePattern(subject, predicate, object Term) TriplePattern {
	return TriplePattern{
		Subject:   subject,
		Predicate: predicate,
		Object:    object,
	}
}

// Matches checks if a triple matches this pattern.
func (p TriplePattern) Matches(t Triple) bool {
	if !p.Subject.IsZero() && !p.Subject.Equals(t.Subject) {
		return false
	}
	if !p.Predicate.IsZero() && !p.Predicate.Equals(t.Predicate) {
		return false
	}
	if !p.Object.IsZero() && !p.Object.Equals(t.Object) {
		return false
	}
	return true
}

// WildcardCount returns the number of wildcard components.
func (p TriplePattern) WildcardCount() int {
	count := 0
	if p.Subject.IsZero() {
		count++
	}
	if p.Predicate.IsZero() {
		count++
	}
	if p.Object.IsZero() {
		count++
	}
	return count
}
