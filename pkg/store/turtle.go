package store

import (
	"fmt"
	"sort"
	"strings"
)

// ContentTypeTurtle is the media type of the wire format.
const ContentTypeTurtle = "text/turtle"

// PrefixMapping associates a short prefix label with its full namespace URI.
type PrefixMapping struct {
	Prefix    string
	Namespace string
}

// TurtleSerializer converts a Graph into W3C-compliant Turtle (TTL) format.
// Numeric and temporal literals are always written with an explicit
// datatype so they round-trip.
type TurtleSerializer struct {
	prefixMappings []PrefixMapping
	prefixIndex    map[string]string // prefix -> namespace
	namespaceIndex map[string]string // namespace -> prefix
}

// TurtleOption is a functional option for configuring the TurtleSerializer.
type TurtleOption func(*TurtleSerializer)

// NewTurtleSerializer creates a TurtleSerializer with standard prefix declarations.
func NewTurtleSerializer(options ...TurtleOption) *TurtleSerializer {
	serializer := &TurtleSerializer{
		prefixMappings: defaultPrefixMappings(),
	}

	for _, option := range options {
		option(serializer)
	}

	serializer.rebuildIndexes()

	return serializer
}

// WithPrefix adds or overrides a prefix mapping.
func WithPrefix(prefix, namespace string) TurtleOption {
	return func(serializer *TurtleSerializer) {
		serializer.prefixMappings = append(serializer.prefixMappings, PrefixMapping{
			Prefix:    prefix,
			Namespace: namespace,
		})
	}
}

// WithoutDefaultPrefixes clears default prefixes so only custom ones are used.
func WithoutDefaultPrefixes() TurtleOption {
	return func(serializer *TurtleSerializer) {
		serializer.prefixMappings = nil
	}
}

func defaultPrefixMappings() []PrefixMapping {
	return []PrefixMapping{
		{Prefix: "rdf", Namespace: NamespaceRDF},
		{Prefix: "rdfs", Namespace: NamespaceRDFS},
		{Prefix: "xsd", Namespace: NamespaceXSD},
		{Prefix: "owl", Namespace: NamespaceOWL},
	}
}

func (serializer *TurtleSerializer) rebuildIndexes() {
	// Later mappings override earlier ones for the same prefix.
	deduped := make([]PrefixMapping, 0, len(serializer.prefixMappings))
	position := make(map[string]int, len(serializer.prefixMappings))
	for _, mapping := range serializer.prefixMappings {
		if idx, ok := position[mapping.Prefix]; ok {
			deduped[idx] = mapping
			continue
		}
		position[mapping.Prefix] = len(deduped)
		deduped = append(deduped, mapping)
	}
	serializer.prefixMappings = deduped

	serializer.prefixIndex = make(map[string]string, len(deduped))
	serializer.namespaceIndex = make(map[string]string, len(deduped))

	for _, mapping := range deduped {
		serializer.prefixIndex[mapping.Prefix] = mapping.Namespace
		serializer.namespaceIndex[mapping.Namespace] = mapping.Prefix
	}
}

// Serialize converts all triples in the graph to Turtle format. Prefixes
// bound on the graph are declared in addition to the serializer's own.
func (serializer *TurtleSerializer) Serialize(graph *Graph) string {
	effective := serializer
	if bound := graph.Prefixes(); len(bound) > 0 {
		effective = &TurtleSerializer{
			prefixMappings: append(append([]PrefixMapping(nil), serializer.prefixMappings...), bound...),
		}
		effective.rebuildIndexes()
	}

	var builder strings.Builder

	effective.writePrefixDeclarations(&builder)

	subjectGroups, subjectTerms := groupTriplesBySubject(graph)
	sortedSubjects := sortedKeys(subjectGroups)

	for subjectIndex, subject := range sortedSubjects {
		if subjectIndex > 0 {
			builder.WriteString("\n")
		}
		effective.writeSubjectGroup(&builder, subjectTerms[subject], subjectGroups[subject])
	}

	return builder.String()
}

func (serializer *TurtleSerializer) writePrefixDeclarations(builder *strings.Builder) {
	sortedPrefixes := make([]PrefixMapping, len(serializer.prefixMappings))
	copy(sortedPrefixes, serializer.prefixMappings)
	sort.Slice(sortedPrefixes, func(i, j int) bool {
		return sortedPrefixes[i].Prefix < sortedPrefixes[j].Prefix
	})

	for _, mapping := range sortedPrefixes {
		fmt.Fprintf(builder, "@prefix %s: <%s> .\n", mapping.Prefix, mapping.Namespace)
	}

	if len(serializer.prefixMappings) > 0 {
		builder.WriteString("\n")
	}
}

type predicateGroup struct {
	predicate Term
	objects   []Term
}

// groupTriplesBySubject organizes triples into subject key -> predicate key -> objects.
func groupTriplesBySubject(graph *Graph) (map[string]map[string]*predicateGroup, map[string]Term) {
	subjectGroups := make(map[string]map[string]*predicateGroup)
	subjectTerms := make(map[string]Term)

	for _, triple := range graph.All() {
		subjectKey := triple.Subject.Key()
		if _, exists := subjectGroups[subjectKey]; !exists {
			subjectGroups[subjectKey] = make(map[string]*predicateGroup)
			subjectTerms[subjectKey] = triple.Subject
		}
		predicateKey := triple.Predicate.Key()
		group, ok := subjectGroups[subjectKey][predicateKey]
		if !ok {
			group = &predicateGroup{predicate: triple.Predicate}
			subjectGroups[subjectKey][predicateKey] = group
		}
		group.objects = append(group.objects, triple.Object)
	}

	return subjectGroups, subjectTerms
}

func (serializer *TurtleSerializer) writeSubjectGroup(
	builder *strings.Builder,
	subject Term,
	predicateGroups map[string]*predicateGroup,
) {
	builder.WriteString(serializer.formatResource(subject))

	for predicateIndex, key := range sortPredicatesTypeFirst(predicateGroups) {
		group := predicateGroups[key]
		sortTerms(group.objects)

		if predicateIndex == 0 {
			builder.WriteString(" ")
		} else {
			builder.WriteString(" ;\n    ")
		}

		builder.WriteString(serializer.formatPredicate(group.predicate))

		for objectIndex, object := range group.objects {
			if objectIndex > 0 {
				builder.WriteString(" ,\n        ")
			} else {
				builder.WriteString(" ")
			}
			builder.WriteString(serializer.formatObject(object))
		}
	}

	builder.WriteString(" .\n")
}

// formatResource formats a subject or object reference.
func (serializer *TurtleSerializer) formatResource(term Term) string {
	if term.IsBlank() {
		return "_:" + term.Value
	}
	if compacted, ok := serializer.compactURI(term.Value); ok {
		return compacted
	}
	return "<" + escapeIRI(term.Value) + ">"
}

// formatPredicate formats a predicate, using "a" shorthand for rdf:type.
func (serializer *TurtleSerializer) formatPredicate(predicate Term) string {
	if predicate.Value == RDFType {
		return "a"
	}
	return serializer.formatResource(predicate)
}

// formatObject formats an object which may be a resource or a literal.
func (serializer *TurtleSerializer) formatObject(object Term) string {
	if object.IsResource() {
		return serializer.formatResource(object)
	}

	literal := formatLiteral(object.Value)
	switch {
	case object.Lang != "":
		return literal + "@" + object.Lang
	case object.Datatype != "":
		if compacted, ok := serializer.compactURI(object.Datatype); ok {
			return literal + "^^" + compacted
		}
		return literal + "^^<" + escapeIRI(object.Datatype) + ">"
	default:
		return literal
	}
}

// compactURI replaces a full namespace URI with its prefix form.
func (serializer *TurtleSerializer) compactURI(fullURI string) (string, bool) {
	// Try longest namespace match first for correctness
	bestPrefix := ""
	bestNamespace := ""
	for namespace, prefix := range serializer.namespaceIndex {
		if strings.HasPrefix(fullURI, namespace) && len(namespace) > len(bestNamespace) {
			localName := fullURI[len(namespace):]
			if isValidLocalName(localName) {
				bestPrefix = prefix
				bestNamespace = namespace
			}
		}
	}

	if bestNamespace != "" {
		return bestPrefix + ":" + fullURI[len(bestNamespace):], true
	}
	return "", false
}

// sortPredicatesTypeFirst sorts predicate keys with rdf:type first, then
// alphabetically.
func sortPredicatesTypeFirst(predicateGroups map[string]*predicateGroup) []string {
	typeKey := IRI(RDFType).Key()
	predicates := make([]string, 0, len(predicateGroups))
	hasRDFType := false

	for key := range predicateGroups {
		if key == typeKey {
			hasRDFType = true
			continue
		}
		predicates = append(predicates, key)
	}

	sort.Strings(predicates)

	if hasRDFType {
		predicates = append([]string{typeKey}, predicates...)
	}

	return predicates
}

// isValidLocalName checks if a string is safe to emit as a Turtle local
// name without escaping.
func isValidLocalName(localName string) bool {
	if localName == "" {
		return false
	}
	if strings.HasSuffix(localName, ".") || strings.HasPrefix(localName, "-") {
		return false
	}
	return !strings.ContainsAny(localName, " \t\n\r<>\"{}|^`\\/#?~!$&'()*+,;=%")
}

// formatLiteral wraps a string value in Turtle-compliant double quotes.
func formatLiteral(value string) string {
	return `"` + escapeLiteralString(value) + `"`
}

// escapeLiteralString escapes special characters per the W3C Turtle grammar.
func escapeLiteralString(value string) string {
	var builder strings.Builder
	builder.Grow(len(value) + len(value)/8)

	for _, char := range value {
		switch char {
		case '\\':
			builder.WriteString(`\\`)
		case '"':
			builder.WriteString(`\"`)
		case '\n':
			builder.WriteString(`\n`)
		case '\r':
			builder.WriteString(`\r`)
		case '\t':
			builder.WriteString(`\t`)
		default:
			builder.WriteRune(char)
		}
	}

	return builder.String()
}

// escapeIRI escapes characters not allowed in IRIs within angle brackets.
func escapeIRI(iri string) string {
	var builder strings.Builder
	builder.Grow(len(iri))

	for _, char := range iri {
		switch char {
		case '<':
			builder.WriteString(`\u003C`)
		case '>':
			builder.WriteString(`\u003E`)
		case '"':
			builder.WriteString(`\u0022`)
		case ' ':
			builder.WriteString(`\u0020`)
		case '{':
			builder.WriteString(`\u007B`)
		case '}':
			builder.WriteString(`\u007D`)
		default:
			builder.WriteRune(char)
		}
	}

	return builder.String()
}

// sortedKeys returns the keys of a map sorted alphabetically.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
