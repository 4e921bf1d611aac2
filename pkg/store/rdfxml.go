package store

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ContentTypeRDFXML is the RDF/XML media type.
const ContentTypeRDFXML = "application/rdf+xml"

// ErrUnserializable is returned when a predicate IRI cannot be written as an
// XML element name.
var ErrUnserializable = errors.New("predicate has no XML qualified name")

// RDFXMLSerializer converts a Graph into RDF/XML. Predicates outside every
// known namespace get generated ns0, ns1, ... prefixes.
type RDFXMLSerializer struct {
	prefixMappings []PrefixMapping
	namespaceIndex map[string]string // namespace -> prefix
}

// RDFXMLOption is a functional option for configuring the RDFXMLSerializer.
type RDFXMLOption func(*RDFXMLSerializer)

// NewRDFXMLSerializer creates an RDFXMLSerializer with standard namespace declarations.
func NewRDFXMLSerializer(options ...RDFXMLOption) *RDFXMLSerializer {
	serializer := &RDFXMLSerializer{
		prefixMappings: defaultPrefixMappings(),
	}

	for _, option := range options {
		option(serializer)
	}

	serializer.rebuildIndexes()

	return serializer
}

// WithRDFXMLPrefix adds or overrides a namespace prefix mapping.
func WithRDFXMLPrefix(prefix, namespace string) RDFXMLOption {
	return func(serializer *RDFXMLSerializer) {
		serializer.prefixMappings = append(serializer.prefixMappings, PrefixMapping{
			Prefix:    prefix,
			Namespace: namespace,
		})
	}
}

func (serializer *RDFXMLSerializer) rebuildIndexes() {
	turtle := &TurtleSerializer{prefixMappings: serializer.prefixMappings}
	turtle.rebuildIndexes()
	serializer.prefixMappings = turtle.prefixMappings
	serializer.namespaceIndex = turtle.namespaceIndex
}

// Serialize converts all triples in the graph to RDF/XML.
func (serializer *RDFXMLSerializer) Serialize(graph *Graph) (string, error) {
	effective := &RDFXMLSerializer{
		prefixMappings: append(append([]PrefixMapping(nil), serializer.prefixMappings...), graph.Prefixes()...),
	}
	effective.rebuildIndexes()
	if err := effective.declarePredicateNamespaces(graph); err != nil {
		return "", err
	}

	var builder strings.Builder
	effective.writeXMLHeader(&builder)

	subjectGroups, subjectTerms := groupTriplesBySubject(graph)
	for _, subject := range sortedKeys(subjectGroups) {
		effective.writeDescription(&builder, subjectTerms[subject], subjectGroups[subject])
	}

	builder.WriteString("</rdf:RDF>\n")
	return builder.String(), nil
}

// SerializeRDFXML serializes graph as RDF/XML.
func SerializeRDFXML(graph *Graph) (string, error) {
	return NewRDFXMLSerializer().Serialize(graph)
}

// declarePredicateNamespaces makes sure every predicate has a prefix.
func (serializer *RDFXMLSerializer) declarePredicateNamespaces(graph *Graph) error {
	next := 0
	for _, predicate := range graph.Predicates() {
		if _, _, ok := serializer.qualifiedName(predicate.Value); ok {
			continue
		}
		namespace, local := splitIRI(predicate.Value)
		if namespace == "" || !isNCName(local) {
			return fmt.Errorf("%w: %s", ErrUnserializable, predicate.Value)
		}
		prefix := fmt.Sprintf("ns%d", next)
		for serializer.hasPrefix(prefix) {
			next++
			prefix = fmt.Sprintf("ns%d", next)
		}
		next++
		serializer.prefixMappings = append(serializer.prefixMappings, PrefixMapping{Prefix: prefix, Namespace: namespace})
		serializer.rebuildIndexes()
	}
	return nil
}

func (serializer *RDFXMLSerializer) hasPrefix(prefix string) bool {
	for _, mapping := range serializer.prefixMappings {
		if mapping.Prefix == prefix {
			return true
		}
	}
	return false
}

// writeXMLHeader writes the XML declaration and opening rdf:RDF element with namespace attributes.
func (serializer *RDFXMLSerializer) writeXMLHeader(builder *strings.Builder) {
	builder.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	builder.WriteString("<rdf:RDF")

	sortedPrefixes := make([]PrefixMapping, len(serializer.prefixMappings))
	copy(sortedPrefixes, serializer.prefixMappings)
	sort.Slice(sortedPrefixes, func(i, j int) bool {
		return sortedPrefixes[i].Prefix < sortedPrefixes[j].Prefix
	})

	if _, ok := serializer.namespaceIndex[NamespaceRDF]; !ok {
		fmt.Fprintf(builder, "\n    xmlns:rdf=\"%s\"", NamespaceRDF)
	}
	for _, mapping := range sortedPrefixes {
		fmt.Fprintf(builder, "\n    xmlns:%s=\"%s\"", mapping.Prefix, escapeXMLAttribute(mapping.Namespace))
	}

	builder.WriteString(">\n")
}

// writeDescription writes an rdf:Description block for a single subject.
func (serializer *RDFXMLSerializer) writeDescription(
	builder *strings.Builder,
	subject Term,
	predicateGroups map[string]*predicateGroup,
) {
	builder.WriteString("\n")
	fmt.Fprintf(builder, "  <rdf:Description %s>\n", nodeAttribute("rdf:about", subject))

	for _, key := range sortPredicatesTypeFirst(predicateGroups) {
		group := predicateGroups[key]
		sortTerms(group.objects)
		for _, object := range group.objects {
			serializer.writeProperty(builder, group.predicate, object)
		}
	}

	builder.WriteString("  </rdf:Description>\n")
}

// writeProperty writes a single predicate-object pair as an XML element.
func (serializer *RDFXMLSerializer) writeProperty(builder *strings.Builder, predicate, object Term) {
	prefix, local, _ := serializer.qualifiedName(predicate.Value)
	element := prefix + ":" + local

	switch {
	case object.IsResource():
		fmt.Fprintf(builder, "    <%s %s/>\n", element, nodeAttribute("rdf:resource", object))
	case object.Lang != "":
		fmt.Fprintf(builder, "    <%s xml:lang=\"%s\">%s</%s>\n",
			element, escapeXMLAttribute(object.Lang), escapeXMLText(object.Value), element)
	case object.Datatype != "":
		fmt.Fprintf(builder, "    <%s rdf:datatype=\"%s\">%s</%s>\n",
			element, escapeXMLAttribute(object.Datatype), escapeXMLText(object.Value), element)
	default:
		fmt.Fprintf(builder, "    <%s>%s</%s>\n", element, escapeXMLText(object.Value), element)
	}
}

// nodeAttribute refers to an IRI through attr, or to a blank node through
// rdf:nodeID.
func nodeAttribute(attr string, term Term) string {
	if term.IsBlank() {
		return fmt.Sprintf("rdf:nodeID=\"%s\"", escapeXMLAttribute(term.Value))
	}
	return fmt.Sprintf("%s=\"%s\"", attr, escapeXMLAttribute(term.Value))
}

// qualifiedName splits a full IRI into a registered prefix and an NCName
// local part, preferring the longest namespace.
func (serializer *RDFXMLSerializer) qualifiedName(fullURI string) (string, string, bool) {
	bestNamespace := ""
	for namespace := range serializer.namespaceIndex {
		if strings.HasPrefix(fullURI, namespace) && len(namespace) > len(bestNamespace) && isNCName(fullURI[len(namespace):]) {
			bestNamespace = namespace
		}
	}
	if bestNamespace == "" {
		return "", "", false
	}
	return serializer.namespaceIndex[bestNamespace], fullURI[len(bestNamespace):], true
}

// splitIRI splits after the last '#' or '/'.
func splitIRI(iri string) (string, string) {
	idx := strings.LastIndexAny(iri, "#/")
	if idx < 0 {
		return "", iri
	}
	return iri[:idx+1], iri[idx+1:]
}

func isNCName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case unicode.IsLetter(r) || r == '_':
		case i > 0 && (unicode.IsDigit(r) || r == '-' || r == '.'):
		default:
			return false
		}
	}
	return true
}

// escapeXMLText escapes characters that are special in XML text content.
func escapeXMLText(text string) string {
	var builder strings.Builder
	builder.Grow(len(text) + len(text)/8)

	for _, char := range text {
		switch char {
		case '&':
			builder.WriteString("&amp;")
		case '<':
			builder.WriteString("&lt;")
		case '>':
			builder.WriteString("&gt;")
		default:
			builder.WriteRune(char)
		}
	}

	return builder.String()
}

// escapeXMLAttribute escapes characters that are special in XML attribute values.
func escapeXMLAttribute(text string) string {
	var builder strings.Builder
	builder.Grow(len(text) + len(text)/8)

	for _, char := range text {
		switch char {
		case '&':
			builder.WriteString("&amp;")
		case '<':
			builder.WriteString("&lt;")
		case '>':
			builder.WriteString("&gt;")
		case '"':
			builder.WriteString("&quot;")
		default:
			builder.WriteRune(char)
		}
	}

	return builder.String()
}
