package store

import (
	"strings"
)

// TermKind distinguishes the three RDF term types. The zero value, KindAny,
// is only meaningful in patterns where it acts as a wildcard.
type TermKind uint8

const (
	KindAny TermKind = iota
	KindIRI
	KindBlank
	KindLiteral
)

// String returns the name of the term kind.
func (k TermKind) String() string {
	switch k {
	case KindIRI:
		return "iri"
	case KindBlank:
		return "blank"
	case KindLiteral:
		return "literal"
	default:
		return "any"
	}
}

// Term is an RDF term: an IRI, a blank node, or a literal. Literals carry a
// datatype IRI (empty for plain xsd:string literals) and an optional
// language tag.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string
	Lang     string
}

// Any is the wildcard term used in patterns.
var Any = Term{}

// IRI creates an IRI term.
func IRI(value string) Term {
	return Term{Kind: KindIRI, Value: value}
}

// Blank creates a blank node term. A leading "_:" is stripped.
func Blank(id string) Term {
	return Term{Kind: KindBlank, Value: strings.TrimPrefix(id, "_:")}
}

// Literal creates a plain string literal.
func Literal(value string) Term {
	return Term{Kind: KindLiteral, Value: value}
}

// TypedLiteral creates a literal with an explicit datatype. xsd:string is
// folded into the plain form so the two spellings compare equal.
func TypedLiteral(value, datatype string) Term {
	if datatype == XSDString {
		datatype = ""
	}
	return Term{Kind: KindLiteral, Value: value, Datatype: datatype}
}

// LangLiteral creates a language-tagged string literal.
func LangLiteral(value, lang string) Term {
	return Term{Kind: KindLiteral, Value: value, Lang: strings.ToLower(lang)}
}

// IsZero reports whether the term is the wildcard.
func (t Term) IsZero() bool {
	return t.Kind == KindAny
}

// IsIRI reports whether the term is an IRI.
func (t Term) IsIRI() bool {
	return t.Kind == KindIRI
}

// IsBlank reports whether the term is a blank node.
func (t Term) IsBlank() bool {
	return t.Kind == KindBlank
}

// IsLiteral reports whether the term is a literal.
func (t Term) IsLiteral() bool {
	return t.Kind == KindLiteral
}

// IsResource reports whether the term can be used as a subject.
func (t Term) IsResource() bool {
	return t.Kind == KindIRI || t.Kind == KindBlank
}

// Equals compares two terms component-wise.
func (t Term) Equals(other Term) bool {
	return t == other
}

// Key returns the N-Triples form of the term. Keys are unique per distinct
// term and are used for indexing and deterministic ordering.
func (t Term) Key() string {
	switch t.Kind {
	case KindIRI:
		return "<" + t.Value + ">"
	case KindBlank:
		return "_:" + t.Value
	case KindLiteral:
		quoted := `"` + escapeLiteralString(t.Value) + `"`
		if t.Lang != "" {
			return quoted + "@" + t.Lang
		}
		if t.Datatype != "" {
			return quoted + "^^<" + t.Datatype + ">"
		}
		return quoted
	default:
		return ""
	}
}

// String returns the lexical value of the term.
func (t Term) String() string {
	return t.Value
}

// LocalName returns the part of an IRI after the last '#' or '/'. For other
// term kinds it returns the value unchanged.
func (t Term) LocalName() string {
	if t.Kind != KindIRI {
		return t.Value
	}
	return LocalName(t.Value)
}

// LocalName returns the part of an IRI after the last '#' or '/'.
func LocalName(iri string) string {
	if idx := strings.LastIndexAny(iri, "#/"); idx >= 0 && idx < len(iri)-1 {
		return iri[idx+1:]
	}
	return iri
}
