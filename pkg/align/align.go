// Package align proposes correspondences between the terms of two request
// vocabularies and persists the ones a user confirms.
//
// Terms are compared by string similarity only. The score of two strings is
// 1 - d/(len(a)+len(b)), where d is the insert/delete edit distance derived
// from their longest common subsequence. Identical strings score 1 and
// strings with no character in common score 0.
package align

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"

	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

// Similarity returns the LCS-based similarity of a and b in [0, 1].
func Similarity(a, b string) float64 {
	total := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if total == 0 {
		return 1
	}
	return 1 - float64(edlib.LCSEditDistance(a, b))/float64(total)
}

// Term is a vocabulary term: the local name used for comparison and the IRI
// it stands for. IRI is empty for bare names.
type Term struct {
	Name string
	IRI  string
}

// ID returns the IRI when known, otherwise the name.
func (t Term) ID() string {
	if t.IRI != "" {
		return t.IRI
	}
	return t.Name
}

// Match is one scored candidate for a reference term.
type Match struct {
	Candidate Term
	Score     float64
}

// Entry holds the ranked candidates for one reference term.
type Entry struct {
	Reference Term
	Matches   []Match
}

// Best returns the top ranked candidate, if any scored above zero.
func (e Entry) Best() (Match, bool) {
	if len(e.Matches) == 0 {
		return Match{}, false
	}
	return e.Matches[0], true
}

// Alignment is the ranked proposal for every reference term, ordered by
// reference name.
type Alignment struct {
	Entries []Entry
}

// Len returns the number of reference terms.
func (a Alignment) Len() int {
	return len(a.Entries)
}

// Entry finds the entry for a reference name.
func (a Alignment) Entry(reference string) (Entry, bool) {
	for _, entry := range a.Entries {
		if entry.Reference.Name == reference {
			return entry, true
		}
	}
	return Entry{}, false
}

// Best returns the top candidate for a reference name.
func (a Alignment) Best(reference string) (Match, bool) {
	entry, ok := a.Entry(reference)
	if !ok {
		return Match{}, false
	}
	return entry.Best()
}

// Selections returns the default choice, the best match, for every
// reference term that has one.
func (a Alignment) Selections() []Selection {
	selections := make([]Selection, 0, len(a.Entries))
	for _, entry := range a.Entries {
		if best, ok := entry.Best(); ok {
			selections = append(selections, Selection{
				Reference: entry.Reference.ID(),
				Candidate: best.Candidate.ID(),
			})
		}
	}
	return selections
}

// Align ranks every candidate name against every reference name.
func Align(reference, candidates []string) Alignment {
	return AlignTerms(namesToTerms(reference), namesToTerms(candidates))
}

// AlignTerms ranks candidate terms against reference terms by name. For each
// reference, candidates scoring above zero are kept, highest score first,
// ties broken by candidate name and then IRI. Duplicate reference names
// collapse into one entry; candidates are distinct per IRI, so two IRIs
// sharing a local name are both offered. An empty reference set gives an
// empty alignment.
func AlignTerms(reference, candidates []Term) Alignment {
	references := slices.CompactFunc(sortTerms(reference), func(a, b Term) bool {
		return a.Name == b.Name
	})
	pool := uniqueTerms(candidates)

	alignment := Alignment{Entries: make([]Entry, 0, len(references))}
	for _, ref := range references {
		matches := make([]Match, 0, len(pool))
		for _, candidate := range pool {
			if score := Similarity(ref.Name, candidate.Name); score > 0 {
				matches = append(matches, Match{Candidate: candidate, Score: score})
			}
		}
		slices.SortStableFunc(matches, func(x, y Match) int {
			if c := cmp.Compare(y.Score, x.Score); c != 0 {
				return c
			}
			return compareTerms(x.Candidate, y.Candidate)
		})
		alignment.Entries = append(alignment.Entries, Entry{Reference: ref, Matches: matches})
	}
	return alignment
}

// Vocabulary returns the request vocabulary of a template: the predicates
// used on every node reached through hasMapping, rdf:type excluded. Terms
// are named by their local name, sorted and distinct per IRI.
func Vocabulary(g *store.Graph, ns vocab.Namespaces) []Term {
	rdfType := store.IRI(store.RDFType)
	var terms []Term

	for _, mapping := range g.Find(store.Any, ns.HasMapping(), store.Any) {
		for _, triple := range g.Find(mapping.Object, store.Any, store.Any) {
			predicate := triple.Predicate
			if predicate.Equals(rdfType) || !predicate.IsIRI() {
				continue
			}
			terms = append(terms, Term{Name: predicate.LocalName(), IRI: predicate.Value})
		}
	}
	return uniqueTerms(terms)
}

func namesToTerms(names []string) []Term {
	terms := make([]Term, len(names))
	for i, name := range names {
		terms[i] = Term{Name: name}
	}
	return terms
}

func compareTerms(a, b Term) int {
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID(), b.ID())
}

func sortTerms(terms []Term) []Term {
	sorted := slices.Clone(terms)
	slices.SortStableFunc(sorted, compareTerms)
	return sorted
}

// uniqueTerms sorts terms and drops repeats of the same IRI, or of the same
// name for bare names.
func uniqueTerms(terms []Term) []Term {
	return slices.CompactFunc(sortTerms(terms), func(a, b Term) bool {
		return a.ID() == b.ID()
	})
}
