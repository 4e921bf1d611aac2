package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/knakk/rdf"
)

// ErrMalformedGraph is returned when a document cannot be decoded as Turtle.
var ErrMalformedGraph = errors.New("malformed graph")

var prefixDeclarationPattern = regexp.MustCompile(`(?i)^\s*@?prefix\s+([A-Za-z][\w.-]*)?:\s*<([^>]*)>`)

// ParseTurtle decodes a Turtle document into a new Graph. Prefix
// declarations in the document are bound on the graph so a later
// serialization reuses them.
func ParseTurtle(r io.Reader) (*Graph, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read turtle: %w", err)
	}

	graph := NewGraph()
	decoder := rdf.NewTripleDecoder(bytes.NewReader(data), rdf.Turtle)
	for {
		decoded, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedGraph, err)
		}
		triple := NewTriple(fromRDFTerm(decoded.Subj), fromRDFTerm(decoded.Pred), fromRDFTerm(decoded.Obj))
		if err := graph.AddTriple(triple); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedGraph, err)
		}
	}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		if match := prefixDeclarationPattern.FindStringSubmatch(scanner.Text()); match != nil {
			graph.Bind(match[1], match[2])
		}
	}

	return graph, nil
}

// ParseTurtleString is a convenience wrapper around ParseTurtle.
func ParseTurtleString(document string) (*Graph, error) {
	return ParseTurtle(strings.NewReader(document))
}

// SerializeTurtle renders the graph with the default serializer.
func SerializeTurtle(graph *Graph) string {
	return NewTurtleSerializer().Serialize(graph)
}

func fromRDFTerm(term rdf.Term) Term {
	switch term.Type() {
	case rdf.TermIRI:
		return IRI(term.String())
	case rdf.TermBlank:
		return Blank(term.String())
	case rdf.TermLiteral:
		literal, ok := term.(rdf.Literal)
		if !ok {
			return Literal(term.String())
		}
		if lang := literal.Lang(); lang != "" {
			return LangLiteral(literal.String(), lang)
		}
		return TypedLiteral(literal.String(), literal.DataType.String())
	}
	return Term{}
}
