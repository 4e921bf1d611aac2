package store

import (
	"encoding/json"
	"strings"
)

// ContentTypeJSONLD is the JSON-LD media type.
const ContentTypeJSONLD = "application/ld+json"

// JSONLDContext represents a JSON-LD @context document.
type JSONLDContext map[string]any

// JSONLDSerializer converts a Graph into JSON-LD. Compact output carries a
// @context of prefixes and uses prefixed names; expanded output uses full
// IRIs and no context.
type JSONLDSerializer struct {
	prefixMappings []PrefixMapping
	namespaceIndex map[string]string // namespace -> prefix
	compactForm    bool
}

// JSONLDOption is a functional option for configuring the JSONLDSerializer.
type JSONLDOption func(*JSONLDSerializer)

// NewJSONLDSerializer creates a compact JSONLDSerializer with the standard
// prefixes.
func NewJSONLDSerializer(options ...JSONLDOption) *JSONLDSerializer {
	serializer := &JSONLDSerializer{
		prefixMappings: defaultPrefixMappings(),
		compactForm:    true,
	}

	for _, option := range options {
		option(serializer)
	}

	serializer.rebuildIndexes()

	return serializer
}

// WithJSONLDPrefix adds or overrides a prefix mapping.
func WithJSONLDPrefix(prefix, namespace string) JSONLDOption {
	return func(serializer *JSONLDSerializer) {
		serializer.prefixMappings = append(serializer.prefixMappings, PrefixMapping{
			Prefix:    prefix,
			Namespace: namespace,
		})
	}
}

// WithExpandedForm switches to expanded output.
func WithExpandedForm() JSONLDOption {
	return func(serializer *JSONLDSerializer) {
		serializer.compactForm = false
	}
}

func (serializer *JSONLDSerializer) rebuildIndexes() {
	// the Turtle serializer owns the dedupe rules
	turtle := &TurtleSerializer{prefixMappings: serializer.prefixMappings}
	turtle.rebuildIndexes()
	serializer.prefixMappings = turtle.prefixMappings
	serializer.namespaceIndex = turtle.namespaceIndex
}

// BuildContext returns the @context: one entry per prefix.
func (serializer *JSONLDSerializer) BuildContext() JSONLDContext {
	context := make(JSONLDContext, len(serializer.prefixMappings))
	for _, mapping := range serializer.prefixMappings {
		context[mapping.Prefix] = mapping.Namespace
	}
	return context
}

// JSONLDDocument represents a complete compact JSON-LD document.
type JSONLDDocument struct {
	Context JSONLDContext    `json:"@context,omitempty"`
	Graph   []map[string]any `json:"@graph"`
}

// Serialize converts all triples in the graph to JSON-LD. Prefixes bound on
// the graph join the serializer's own. Nodes are ordered by subject and
// properties by predicate, so equal graphs give equal bytes.
func (serializer *JSONLDSerializer) Serialize(graph *Graph) ([]byte, error) {
	effective := serializer
	if bound := graph.Prefixes(); len(bound) > 0 && serializer.compactForm {
		effective = &JSONLDSerializer{
			prefixMappings: append(append([]PrefixMapping(nil), serializer.prefixMappings...), bound...),
			compactForm:    true,
		}
		effective.rebuildIndexes()
	}

	subjectGroups, subjectTerms := groupTriplesBySubject(graph)
	nodes := make([]map[string]any, 0, len(subjectGroups))
	for _, subject := range sortedKeys(subjectGroups) {
		nodes = append(nodes, effective.buildNode(subjectTerms[subject], subjectGroups[subject]))
	}

	if !effective.compactForm {
		return json.MarshalIndent(nodes, "", "  ")
	}
	return json.MarshalIndent(JSONLDDocument{
		Context: effective.BuildContext(),
		Graph:   nodes,
	}, "", "  ")
}

// SerializeJSONLD serializes graph as compact JSON-LD.
func SerializeJSONLD(graph *Graph) ([]byte, error) {
	return NewJSONLDSerializer().Serialize(graph)
}

func (serializer *JSONLDSerializer) buildNode(subject Term, predicateGroups map[string]*predicateGroup) map[string]any {
	node := map[string]any{"@id": serializer.nodeID(subject)}

	for _, key := range sortPredicatesTypeFirst(predicateGroups) {
		group := predicateGroups[key]
		sortTerms(group.objects)

		if group.predicate.Value == RDFType {
			types := make([]any, 0, len(group.objects))
			for _, object := range group.objects {
				types = append(types, serializer.nodeID(object))
			}
			node["@type"] = single(types)
			continue
		}

		values := make([]any, 0, len(group.objects))
		for _, object := range group.objects {
			values = append(values, serializer.formatObject(object))
		}
		node[serializer.compactURI(group.predicate.Value)] = single(values)
	}

	return node
}

func (serializer *JSONLDSerializer) formatObject(object Term) any {
	switch {
	case object.IsResource():
		return map[string]string{"@id": serializer.nodeID(object)}
	case object.Lang != "":
		return map[string]string{"@value": object.Value, "@language": object.Lang}
	case object.Datatype != "":
		return map[string]string{"@value": object.Value, "@type": serializer.compactURI(object.Datatype)}
	default:
		return object.Value
	}
}

func (serializer *JSONLDSerializer) nodeID(term Term) string {
	if term.IsBlank() {
		return "_:" + term.Value
	}
	return serializer.compactURI(term.Value)
}

// compactURI returns prefix:local for IRIs under a known namespace in compact
// form, the full IRI otherwise.
func (serializer *JSONLDSerializer) compactURI(fullURI string) string {
	if !serializer.compactForm {
		return fullURI
	}
	bestNamespace := ""
	for namespace := range serializer.namespaceIndex {
		if strings.HasPrefix(fullURI, namespace) && len(namespace) > len(bestNamespace) && len(fullURI) > len(namespace) {
			bestNamespace = namespace
		}
	}
	if bestNamespace == "" {
		return fullURI
	}
	return serializer.namespaceIndex[bestNamespace] + ":" + fullURI[len(bestNamespace):]
}

func single(values []any) any {
	if len(values) == 1 {
		return values[0]
	}
	return values
}
