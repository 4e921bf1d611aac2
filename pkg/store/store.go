package store

import (
	"fmt"
	"sort"
	"sync"
)

// IndexStats contains statistics about the graph for query optimization.
// Counts are keyed by Term.Key().
type IndexStats struct {
	TotalTriples     int            `json:"total_triples"`
	UniqueSubjects   int            `json:"unique_subjects"`
	UniquePredicates int            `json:"unique_predicates"`
	UniqueObjects    int            `json:"unique_objects"`
	PredicateCounts  map[string]int `json:"predicate_counts"`
	SubjectCounts    map[string]int `json:"subject_counts"`
	ObjectCounts     map[string]int `json:"object_counts"`
}

// Cardinality describes how many matches a uniqueness lookup found.
type Cardinality int

const (
	None Cardinality = iota
	One
	Many
)

// String returns the name of the cardinality.
func (c Cardinality) String() string {
	switch c {
	case None:
		return "none"
	case One:
		return "one"
	default:
		return "many"
	}
}

// Graph is an in-memory RDF graph with multiple indexes.
// It provides efficient lookups via three indexes:
//   - SPO: Subject -> Predicate -> Object (find facts about a subject)
//   - POS: Predicate -> Object -> Subject (find subjects with property=value)
//   - OSP: Object -> Subject -> Predicate (find subjects pointing to object)
//
// Index keys are Term.Key() values; the SPO index holds the triples
// themselves so the other indexes only need presence markers.
type Graph struct {
	mu sync.RWMutex

	spo map[string]map[string]map[string]Triple
	pos map[string]map[string]map[string]struct{}
	osp map[string]map[string]map[string]struct{}

	count int

	predicateCounts map[string]int
	subjectCounts   map[string]int
	objectCounts    map[string]int

	// prefix -> namespace, serialization only
	prefixes map[string]string
}

// NewGraph creates an empty graph with all indexes initialized.
func NewGraph() *Graph {
	return &Graph{
		spo:             make(map[string]map[string]map[string]Triple),
		pos:             make(map[string]map[string]map[string]struct{}),
		osp:             make(map[string]map[string]map[string]struct{}),
		predicateCounts: make(map[string]int),
		subjectCounts:   make(map[string]int),
		objectCounts:    make(map[string]int),
		prefixes:        make(map[string]string),
	}
}

// Bind associates a prefix with a namespace for serialization.
func (g *Graph) Bind(prefix, namespace string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prefixes[prefix] = namespace
}

// Prefixes returns the bound prefix mappings sorted by prefix.
func (g *Graph) Prefixes() []PrefixMapping {
	g.mu.RLock()
	defer g.mu.RUnlock()

	mappings := make([]PrefixMapping, 0, len(g.prefixes))
	for prefix, namespace := range g.prefixes {
		mappings = append(mappings, PrefixMapping{Prefix: prefix, Namespace: namespace})
	}
	sort.Slice(mappings, func(i, j int) bool {
		return mappings[i].Prefix < mappings[j].Prefix
	})
	return mappings
}

// Add inserts a triple into the graph. Returns nil if successful or if the
// triple already exists (idempotent operation).
func (g *Graph) Add(subject, predicate, object Term) error {
	return g.AddTriple(NewTriple(subject, predicate, object))
}

// AddTriple inserts a Triple struct into the graph.
func (g *Graph) AddTriple(triple Triple) error {
	if !triple.IsValid() {
		return fmt.Errorf("invalid triple %s", triple)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.addUnsafe(triple)
	return nil
}

// BulkAdd inserts multiple triples. Holds the write lock for the entire
// operation; invalid triples are skipped.
func (g *Graph) BulkAdd(triples []Triple) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	skipped := 0
	for _, triple := range triples {
		if !triple.IsValid() {
			skipped++
			continue
		}
		g.addUnsafe(triple)
	}

	if skipped > 0 {
		return fmt.Errorf("skipped %d invalid triples", skipped)
	}
	return nil
}

// MergeFrom copies all triples and prefix bindings from the source graph.
// Returns the number of new triples added.
func (g *Graph) MergeFrom(source *Graph) int {
	sourceTriples := source.All()
	sourcePrefixes := source.Prefixes()

	previousCount := g.Count()
	_ = g.BulkAdd(sourceTriples)
	for _, mapping := range sourcePrefixes {
		g.Bind(mapping.Prefix, mapping.Namespace)
	}
	return g.Count() - previousCount
}

// Clone returns an independent copy of the graph, including prefixes.
func (g *Graph) Clone() *Graph {
	clone := NewGraph()
	clone.MergeFrom(g)
	return clone
}

// Find queries triples matching the pattern. Use Any for wildcards.
// Results are ordered by subject, predicate, then object key.
func (g *Graph) Find(subject, predicate, object Term) []Triple {
	g.mu.RLock()
	defer g.mu.RUnlock()

	results := g.findUnsafe(subject.Key(), predicate.Key(), object.Key())
	sortTriples(results)
	return results
}

// FindPattern queries using a TriplePattern.
func (g *Graph) FindPattern(pattern TriplePattern) []Triple {
	return g.Find(pattern.Subject, pattern.Predicate, pattern.Object)
}

// Exists checks if a specific triple exists in the graph.
func (g *Graph) Exists(subject, predicate, object Term) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.existsUnsafe(subject.Key(), predicate.Key(), object.Key())
}

// Objects returns every object for a subject-predicate pair.
func (g *Graph) Objects(subject, predicate Term) []Term {
	triples := g.Find(subject, predicate, Any)
	objects := make([]Term, len(triples))
	for i, triple := range triples {
		objects[i] = triple.Object
	}
	return objects
}

// Subjects returns every subject carrying the predicate-object pair.
func (g *Graph) Subjects(predicate, object Term) []Term {
	triples := g.Find(Any, predicate, object)
	subjects := make([]Term, 0, len(triples))
	seen := make(map[string]bool, len(triples))
	for _, triple := range triples {
		key := triple.Subject.Key()
		if !seen[key] {
			seen[key] = true
			subjects = append(subjects, triple.Subject)
		}
	}
	return subjects
}

// SubjectsOfType returns all subjects with rdf:type class.
func (g *Graph) SubjectsOfType(class Term) []Term {
	return g.Subjects(IRI(RDFType), class)
}

// UniqueSubjectOfType finds the single subject typed as class. When zero or
// several exist the cardinality says so and the returned term is the first
// match in key order (or the zero term).
func (g *Graph) UniqueSubjectOfType(class Term) (Term, Cardinality) {
	subjects := g.SubjectsOfType(class)
	return firstTerm(subjects), cardinalityOf(len(subjects))
}

// UniqueTriple finds the single triple matching the pattern.
func (g *Graph) UniqueTriple(subject, predicate, object Term) (Triple, Cardinality) {
	triples := g.Find(subject, predicate, object)
	if len(triples) == 0 {
		return Triple{}, None
	}
	return triples[0], cardinalityOf(len(triples))
}

// UniqueObject finds the single object for a subject-predicate pair.
func (g *Graph) UniqueObject(subject, predicate Term) (Term, Cardinality) {
	objects := g.Objects(subject, predicate)
	return firstTerm(objects), cardinalityOf(len(objects))
}

// Set replaces every (subject, predicate, *) triple with a single
// (subject, predicate, object) triple.
func (g *Graph) Set(subject, predicate, object Term) error {
	triple := NewTriple(subject, predicate, object)
	if !triple.IsValid() {
		return fmt.Errorf("invalid triple %s", triple)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for _, existing := range g.findUnsafe(subject.Key(), predicate.Key(), "") {
		g.deleteTripleUnsafe(existing)
	}
	g.addUnsafe(triple)
	return nil
}

// Delete removes matching triples. Use Any for wildcards to delete multiple.
func (g *Graph) Delete(subject, predicate, object Term) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	matches := g.findUnsafe(subject.Key(), predicate.Key(), object.Key())
	for _, triple := range matches {
		g.deleteTripleUnsafe(triple)
	}

	return len(matches)
}

// DeleteTriple removes a specific triple.
func (g *Graph) DeleteTriple(triple Triple) bool {
	return g.Delete(triple.Subject, triple.Predicate, triple.Object) > 0
}

// Clear removes all triples from the graph. Prefix bindings are kept.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.spo = make(map[string]map[string]map[string]Triple)
	g.pos = make(map[string]map[string]map[string]struct{})
	g.osp = make(map[string]map[string]map[string]struct{})
	g.count = 0
	g.predicateCounts = make(map[string]int)
	g.subjectCounts = make(map[string]int)
	g.objectCounts = make(map[string]int)
}

// Count returns the total number of triples in the graph.
func (g *Graph) Count() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.count
}

// Predicates returns all unique predicates in the graph, in key order.
func (g *Graph) Predicates() []Term {
	g.mu.RLock()
	defer g.mu.RUnlock()

	predicates := make([]Term, 0, len(g.pos))
	for p, oMap := range g.pos {
	lookup:
		for o, sMap := range oMap {
			for s := range sMap {
				predicates = append(predicates, g.spo[s][p][o].Predicate)
				break lookup
			}
		}
	}
	sortTerms(predicates)
	return predicates
}

// Stats returns statistics about the graph for query optimization.
func (g *Graph) Stats() IndexStats {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return IndexStats{
		TotalTriples:     g.count,
		UniqueSubjects:   len(g.spo),
		UniquePredicates: len(g.pos),
		UniqueObjects:    len(g.osp),
		PredicateCounts:  copyCounts(g.predicateCounts),
		SubjectCounts:    copyCounts(g.subjectCounts),
		ObjectCounts:     copyCounts(g.objectCounts),
	}
}

// String returns a string representation of the graph statistics.
func (g *Graph) String() string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return fmt.Sprintf("Graph{triples: %d, subjects: %d, predicates: %d, objects: %d}",
		g.count, len(g.spo), len(g.pos), len(g.osp))
}

// All returns all triples in the graph.
func (g *Graph) All() []Triple {
	return g.Find(Any, Any, Any)
}

func (g *Graph) addUnsafe(triple Triple) {
	subject := triple.Subject.Key()
	predicate := triple.Predicate.Key()
	object := triple.Object.Key()

	if g.existsUnsafe(subject, predicate, object) {
		return
	}

	if g.spo[subject] == nil {
		g.spo[subject] = make(map[string]map[string]Triple)
	}
	if g.spo[subject][predicate] == nil {
		g.spo[subject][predicate] = make(map[string]Triple)
	}
	g.spo[subject][predicate][object] = triple

	if g.pos[predicate] == nil {
		g.pos[predicate] = make(map[string]map[string]struct{})
	}
	if g.pos[predicate][object] == nil {
		g.pos[predicate][object] = make(map[string]struct{})
	}
	g.pos[predicate][object][subject] = struct{}{}

	if g.osp[object] == nil {
		g.osp[object] = make(map[string]map[string]struct{})
	}
	if g.osp[object][subject] == nil {
		g.osp[object][subject] = make(map[string]struct{})
	}
	g.osp[object][subject][predicate] = struct{}{}

	g.predicateCounts[predicate]++
	g.subjectCounts[subject]++
	g.objectCounts[object]++
	g.count++
}

// existsUnsafe checks if a triple exists without locking.
func (g *Graph) existsUnsafe(subject, predicate, object string) bool {
	if pMap, ok := g.spo[subject]; ok {
		if oMap, ok := pMap[predicate]; ok {
			_, found := oMap[object]
			return found
		}
	}
	return false
}

// findUnsafe finds triples without locking. Empty keys are wildcards.
func (g *Graph) findUnsafe(subject, predicate, object string) []Triple {
	var results []Triple

	// All wildcards - return all triples
	if subject == "" && predicate == "" && object == "" {
		for _, pMap := range g.spo {
			for _, oMap := range pMap {
				for _, triple := range oMap {
					results = append(results, triple)
				}
			}
		}
		return results
	}

	// Use most specific index based on what's specified
	if subject != "" {
		pMap, ok := g.spo[subject]
		if !ok {
			return nil
		}
		if predicate != "" {
			oMap, ok := pMap[predicate]
			if !ok {
				return nil
			}
			if object != "" {
				if triple, ok := oMap[object]; ok {
					results = append(results, triple)
				}
				return results
			}
			for _, triple := range oMap {
				results = append(results, triple)
			}
			return results
		}
		for _, oMap := range pMap {
			if object != "" {
				if triple, ok := oMap[object]; ok {
					results = append(results, triple)
				}
				continue
			}
			for _, triple := range oMap {
				results = append(results, triple)
			}
		}
		return results
	}

	if predicate != "" {
		// Use POS index (no subject specified)
		oMap, ok := g.pos[predicate]
		if !ok {
			return nil
		}
		if object != "" {
			for s := range oMap[object] {
				results = append(results, g.spo[s][predicate][object])
			}
			return results
		}
		for o, sMap := range oMap {
			for s := range sMap {
				results = append(results, g.spo[s][predicate][o])
			}
		}
		return results
	}

	// Use OSP index (only O specified)
	for s, pMap := range g.osp[object] {
		for p := range pMap {
			results = append(results, g.spo[s][p][object])
		}
	}
	return results
}

// deleteTripleUnsafe deletes a specific triple without locking.
func (g *Graph) deleteTripleUnsafe(triple Triple) {
	subject := triple.Subject.Key()
	predicate := triple.Predicate.Key()
	object := triple.Object.Key()

	if !g.existsUnsafe(subject, predicate, object) {
		return
	}

	// Remove from SPO index
	if pMap, ok := g.spo[subject]; ok {
		if oMap, ok := pMap[predicate]; ok {
			delete(oMap, object)
			if len(oMap) == 0 {
				delete(pMap, predicate)
			}
		}
		if len(pMap) == 0 {
			delete(g.spo, subject)
		}
	}

	// Remove from POS index
	if oMap, ok := g.pos[predicate]; ok {
		if sMap, ok := oMap[object]; ok {
			delete(sMap, subject)
			if len(sMap) == 0 {
				delete(oMap, object)
			}
		}
		if len(oMap) == 0 {
			delete(g.pos, predicate)
		}
	}

	// Remove from OSP index
	if sMap, ok := g.osp[object]; ok {
		if pMap, ok := sMap[subject]; ok {
			delete(pMap, predicate)
			if len(pMap) == 0 {
				delete(sMap, subject)
			}
		}
		if len(sMap) == 0 {
			delete(g.osp, object)
		}
	}

	decrement(g.predicateCounts, predicate)
	decrement(g.subjectCounts, subject)
	decrement(g.objectCounts, object)
	g.count--
}

func decrement(counts map[string]int, key string) {
	counts[key]--
	if counts[key] <= 0 {
		delete(counts, key)
	}
}

func copyCounts(counts map[string]int) map[string]int {
	copied := make(map[string]int, len(counts))
	for k, v := range counts {
		copied[k] = v
	}
	return copied
}

func cardinalityOf(n int) Cardinality {
	switch {
	case n == 0:
		return None
	case n == 1:
		return One
	default:
		return Many
	}
}

func firstTerm(terms []Term) Term {
	if len(terms) == 0 {
		return Any
	}
	return terms[0]
}

func sortTriples(triples []Triple) {
	sort.Slice(triples, func(i, j int) bool {
		a, b := triples[i], triples[j]
		if ak, bk := a.Subject.Key(), b.Subject.Key(); ak != bk {
			return ak < bk
		}
		if ak, bk := a.Predicate.Key(), b.Predicate.Key(); ak != bk {
			return ak < bk
		}
		return a.Object.Key() < b.Object.Key()
	})
}

func sortTerms(terms []Term) {
	sort.Slice(terms, func(i, j int) bool {
		return terms[i].Key() < terms[j].Key()
	})
}
