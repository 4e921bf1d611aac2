// Package query provides a SPARQL SELECT subset with typed terms and
// parameter binding.
package query

import "strings"

// Query represents a parsed SPARQL query.
type Query struct {
	Type   QueryType
	Select *SelectQuery
}

// QueryType represents the type of SPARQL query.
type QueryType string

const (
	// SelectQueryType represents a SELECT query.
	SelectQueryType QueryType = "SELECT"
)

// SelectQuery represents a parsed SELECT query.
type SelectQuery struct {
	Variables []string          // Variables to select (e.g., ["?cottage", "?start"])
	Distinct  bool              // DISTINCT modifier
	Where     []TriplePattern   // WHERE clause triple patterns
	Optional  [][]TriplePattern // OPTIONAL clause patterns
	Filters   []Filter          // FILTER clauses, all of which must hold
	OrderBy   []OrderBy         // ORDER BY clauses
	Limit     int               // LIMIT (0 = no limit)
	Offset    int               // OFFSET (0 = no offset)
	Prefixes  map[string]string // Prefix declarations
}

// TriplePattern represents a triple pattern in a WHERE clause. Each
// position holds a token: a variable (?var), a parameter ($param), an IRI
// (<iri>), or a literal ("v", "v"^^<dt>, "v"@lang). Prefixed names are
// expanded to IRIs during parsing.
type TriplePattern struct {
	Subject   string
	Predicate string
	Object    string
}

// Filter represents a FILTER clause. Its expression is parsed into
// conditions joined by &&.
type Filter struct {
	Expression string
	Conditions []Condition
}

// Condition is a single comparison or function test inside a FILTER.
type Condition struct {
	// Function is set for BOUND, CONTAINS, STRSTARTS, STRENDS and REGEX.
	Function string
	Negated  bool
	Left     string
	Operator string // one of = != < <= > >= for comparisons
	Right    string
}

// OrderBy represents an ORDER BY clause.
type OrderBy struct {
	Variable   string
	Descending bool
}

// IsVariable checks if a string is a SPARQL variable.
func IsVariable(s string) bool {
	return len(s) > 1 && s[0] == '?'
}

// IsParameter checks if a string is a parameter placeholder ($name).
func IsParameter(s string) bool {
	return len(s) > 1 && s[0] == '$'
}

// IsURI checks if a string is a URI reference (enclosed in angle brackets).
// Empty URIs (<>) are not considered valid.
func IsURI(s string) bool {
	return len(s) > 2 && s[0] == '<' && s[len(s)-1] == '>'
}

// IsLiteral checks if a string is a quoted literal, optionally carrying a
// datatype or language tag.
func IsLiteral(s string) bool {
	if len(s) < 2 || s[0] != '"' {
		return false
	}
	return strings.LastIndexByte(s, '"') > 0
}

// IsPrefixed checks if a string is a prefixed name (e.g., cot:Cottage).
func IsPrefixed(s string) bool {
	if len(s) == 0 || s[0] == '?' || s[0] == '$' || s[0] == '<' || s[0] == '"' {
		return false
	}
	for i, c := range s {
		if c == ':' && i < len(s)-1 {
			return true
		}
	}
	return false
}

// StripVariable removes the ? prefix from a variable.
func StripVariable(s string) string {
	if IsVariable(s) {
		return s[1:]
	}
	return s
}

// StripParameter removes the $ prefix from a parameter.
func StripParameter(s string) string {
	if IsParameter(s) {
		return s[1:]
	}
	return s
}

// StripURI removes the < > brackets from a URI.
func StripURI(s string) string {
	if IsURI(s) {
		return s[1 : len(s)-1]
	}
	return s
}

// VariableName returns the variable name without the ? prefix, or empty if not a variable.
func VariableName(s string) string {
	if IsVariable(s) {
		return s[1:]
	}
	return ""
}

// Parameters returns the names of all parameters referenced by the query,
// in order of first appearance.
func (q *SelectQuery) Parameters() []string {
	var names []string
	seen := make(map[string]bool)
	add := func(token string) {
		if IsParameter(token) && !seen[token] {
			seen[token] = true
			names = append(names, StripParameter(token))
		}
	}

	for _, p := range q.allPatterns() {
		add(p.Subject)
		add(p.Predicate)
		add(p.Object)
	}
	for _, f := range q.Filters {
		for _, c := range f.Conditions {
			add(c.Left)
			add(c.Right)
		}
	}
	return names
}

func (q *SelectQuery) allPatterns() []TriplePattern {
	patterns := append([]TriplePattern(nil), q.Where...)
	for _, opt := range q.Optional {
		patterns = append(patterns, opt...)
	}
	return patterns
}
