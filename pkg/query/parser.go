package query

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/coolbeans/rdgmed/pkg/store"
)

// ErrParse is wrapped by every error ParseQuery returns.
var ErrParse = errors.New("query parse error")

var (
	prefixRegex   = regexp.MustCompile(`(?i)PREFIX\s+(\w*):\s*<([^>]+)>`)
	distinctRegex = regexp.MustCompile(`(?i)\bSELECT\s+DISTINCT\b`)
	selectRegex   = regexp.MustCompile(`(?i)SELECT\s+(?:DISTINCT\s+)?([\s\S]*?)\s*WHERE`)
	whereRegex    = regexp.MustCompile(`(?i)WHERE\s*\{([\s\S]*)\}`)
	optionalRegex = regexp.MustCompile(`(?i)OPTIONAL\s*\{([^}]+)\}`)
	varRegex      = regexp.MustCompile(`\?(\w+)`)
	orderByRegex  = regexp.MustCompile(`(?i)ORDER\s+BY\s+((?:(?:ASC|DESC)\s*\(\s*\?\w+\s*\)|\?\w+)(?:\s+(?:ASC|DESC)\s*\(\s*\?\w+\s*\)|\s+\?\w+)*)`)
	orderFnRegex  = regexp.MustCompile(`(?i)(ASC|DESC)\s*\(\s*\?(\w+)\s*\)`)
	limitRegex    = regexp.MustCompile(`(?i)LIMIT\s+(\d+)`)
	offsetRegex   = regexp.MustCompile(`(?i)OFFSET\s+(\d+)`)
	filterKeyword = regexp.MustCompile(`(?i)\bFILTER\s*\(`)
	functionRegex = regexp.MustCompile(`(?i)^(BOUND|CONTAINS|STRSTARTS|STRENDS|REGEX)\s*\(([\s\S]*)\)$`)
	numberRegex   = regexp.MustCompile(`^[+-]?(\d+)(\.\d+)?$`)
)

// defaultPrefixes are available in every query without a declaration.
var defaultPrefixes = map[string]string{
	"rdf":  store.NamespaceRDF,
	"rdfs": store.NamespaceRDFS,
	"xsd":  store.NamespaceXSD,
	"owl":  store.NamespaceOWL,
}

func parseErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParse, fmt.Sprintf(format, args...))
}

// ParseQuery parses a SPARQL query string and returns a Query object.
// Prefixed names, the "a" keyword and bare numbers are normalized to
// their full token form so the executor only sees variables, parameters,
// IRIs, and literals.
func ParseQuery(queryStr string) (*Query, error) {
	queryStr = strings.TrimSpace(queryStr)

	if queryStr == "" {
		return nil, parseErrorf("empty query")
	}

	upperQuery := strings.ToUpper(queryStr)
	if strings.Contains(upperQuery, "SELECT") {
		selectQuery, err := parseSelectQuery(queryStr)
		if err != nil {
			return nil, err
		}
		return &Query{
			Type:   SelectQueryType,
			Select: selectQuery,
		}, nil
	}

	return nil, parseErrorf("unsupported query type: only SELECT queries are supported")
}

// MustParse is like ParseQuery but panics on error. It is intended for
// package-level query constants.
func MustParse(queryStr string) *Query {
	q, err := ParseQuery(queryStr)
	if err != nil {
		panic(err)
	}
	return q
}

// parseSelectQuery parses a SELECT query.
func parseSelectQuery(queryStr string) (*SelectQuery, error) {
	query := &SelectQuery{
		Prefixes: make(map[string]string),
	}

	for _, match := range prefixRegex.FindAllStringSubmatch(queryStr, -1) {
		query.Prefixes[match[1]] = match[2]
	}
	queryStr = prefixRegex.ReplaceAllString(queryStr, "")

	if distinctRegex.MatchString(queryStr) {
		query.Distinct = true
	}

	selectMatch := selectRegex.FindStringSubmatch(queryStr)
	if selectMatch == nil {
		return nil, parseErrorf("invalid SELECT query: missing WHERE clause")
	}

	varsStr := strings.TrimSpace(selectMatch[1])
	if varsStr == "*" {
		query.Variables = []string{"*"}
	} else {
		varMatches := varRegex.FindAllString(varsStr, -1)
		if len(varMatches) == 0 {
			return nil, parseErrorf("no variables found in SELECT clause")
		}
		query.Variables = varMatches
	}

	whereMatch := whereRegex.FindStringSubmatchIndex(queryStr)
	if whereMatch == nil {
		return nil, parseErrorf("invalid WHERE clause: missing braces")
	}
	whereClause := queryStr[whereMatch[2]:whereMatch[3]]
	tail := queryStr[whereMatch[1]:]

	prefixes := query.resolvedPrefixes()

	for _, match := range optionalRegex.FindAllStringSubmatch(whereClause, -1) {
		optionalPatterns, err := parseTriplePatterns(match[1], prefixes)
		if err != nil {
			return nil, fmt.Errorf("error parsing OPTIONAL clause: %w", err)
		}
		query.Optional = append(query.Optional, optionalPatterns)
	}
	mainWhereClause := optionalRegex.ReplaceAllString(whereClause, "")

	expressions, mainWhereClause, err := extractFilters(mainWhereClause)
	if err != nil {
		return nil, err
	}
	for _, expression := range expressions {
		filter, err := parseFilter(expression, prefixes)
		if err != nil {
			return nil, err
		}
		query.Filters = append(query.Filters, filter)
	}

	patterns, err := parseTriplePatterns(mainWhereClause, prefixes)
	if err != nil {
		return nil, err
	}
	query.Where = patterns

	if orderByMatch := orderByRegex.FindStringSubmatch(tail); orderByMatch != nil {
		query.OrderBy = parseOrderBy(orderByMatch[1])
	}

	if limitMatch := limitRegex.FindStringSubmatch(tail); limitMatch != nil {
		query.Limit, _ = strconv.Atoi(limitMatch[1])
	}

	if offsetMatch := offsetRegex.FindStringSubmatch(tail); offsetMatch != nil {
		query.Offset, _ = strconv.Atoi(offsetMatch[1])
	}

	if errs := query.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrParse, errors.Join(errs...))
	}

	return query, nil
}

func (q *SelectQuery) resolvedPrefixes() map[string]string {
	prefixes := make(map[string]string, len(defaultPrefixes)+len(q.Prefixes))
	for prefix, namespace := range defaultPrefixes {
		prefixes[prefix] = namespace
	}
	for prefix, namespace := range q.Prefixes {
		prefixes[prefix] = namespace
	}
	return prefixes
}

// parseOrderBy parses ORDER BY clause variables.
func parseOrderBy(orderByStr string) []OrderBy {
	var orderBys []OrderBy

	for _, match := range orderFnRegex.FindAllStringSubmatch(orderByStr, -1) {
		orderBys = append(orderBys, OrderBy{
			Variable:   "?" + match[2],
			Descending: strings.ToUpper(match[1]) == "DESC",
		})
	}

	// If no function matches, try simple variable format
	if len(orderBys) == 0 {
		for _, match := range varRegex.FindAllStringSubmatch(orderByStr, -1) {
			orderBys = append(orderBys, OrderBy{Variable: "?" + match[1]})
		}
	}

	return orderBys
}

// extractFilters pulls FILTER(...) expressions with balanced parentheses
// out of a WHERE clause and returns the clause without them.
func extractFilters(whereClause string) ([]string, string, error) {
	var expressions []string
	var remaining strings.Builder
	last := 0

	for _, match := range filterKeyword.FindAllStringIndex(whereClause, -1) {
		if match[0] < last {
			continue
		}
		startIdx := match[1]

		depth := 1
		inLiteral := false
		endIdx := startIdx
		for endIdx < len(whereClause) && depth > 0 {
			switch ch := whereClause[endIdx]; {
			case ch == '\\' && inLiteral:
				endIdx++
			case ch == '"':
				inLiteral = !inLiteral
			case ch == '(' && !inLiteral:
				depth++
			case ch == ')' && !inLiteral:
				depth--
			}
			endIdx++
		}

		if depth != 0 {
			return nil, "", parseErrorf("unbalanced parentheses in FILTER")
		}

		expressions = append(expressions, strings.TrimSpace(whereClause[startIdx:endIdx-1]))
		remaining.WriteString(whereClause[last:match[0]])
		remaining.WriteString(" ")
		last = endIdx
	}
	remaining.WriteString(whereClause[last:])

	return expressions, remaining.String(), nil
}

// parseFilter splits a filter expression on top-level && and parses each
// condition. Expressions outside the supported subset are rejected rather
// than silently passing every row.
func parseFilter(expression string, prefixes map[string]string) (Filter, error) {
	filter := Filter{Expression: expression}

	for _, part := range splitOutside(expression, "&&") {
		condition, err := parseCondition(strings.TrimSpace(part), prefixes)
		if err != nil {
			return Filter{}, err
		}
		filter.Conditions = append(filter.Conditions, condition)
	}

	return filter, nil
}

var comparisonOperators = []string{"<=", ">=", "!=", "=", "<", ">"}

func parseCondition(part string, prefixes map[string]string) (Condition, error) {
	if part == "" {
		return Condition{}, parseErrorf("empty FILTER condition")
	}
	if strings.Contains(part, "||") {
		return Condition{}, parseErrorf("unsupported FILTER expression %q: || is not supported", part)
	}

	for strings.HasPrefix(part, "(") && strings.HasSuffix(part, ")") && balanced(part[1:len(part)-1]) {
		part = strings.TrimSpace(part[1 : len(part)-1])
	}

	negated := false
	if strings.HasPrefix(part, "!") && !strings.HasPrefix(part, "!=") {
		negated = true
		part = strings.TrimSpace(part[1:])
	}

	if match := functionRegex.FindStringSubmatch(part); match != nil {
		args := splitOutside(match[2], ",")
		function := strings.ToUpper(match[1])
		condition := Condition{Function: function, Negated: negated}

		switch {
		case function == "BOUND" && len(args) == 1:
			condition.Left = strings.TrimSpace(args[0])
			if !IsVariable(condition.Left) {
				return Condition{}, parseErrorf("BOUND expects a variable, got %q", condition.Left)
			}
			return condition, nil
		case function != "BOUND" && len(args) == 2:
			left, err := normalizeOperand(strings.TrimSpace(args[0]), prefixes)
			if err != nil {
				return Condition{}, err
			}
			right, err := normalizeOperand(strings.TrimSpace(args[1]), prefixes)
			if err != nil {
				return Condition{}, err
			}
			condition.Left, condition.Right = left, right
			return condition, nil
		default:
			return Condition{}, parseErrorf("wrong number of arguments to %s", function)
		}
	}

	if negated {
		return Condition{}, parseErrorf("negation is only supported on functions: %q", part)
	}

	tokens := tokenize(part)
	if len(tokens) != 3 {
		return Condition{}, parseErrorf("unsupported FILTER expression %q", part)
	}

	operator := tokens[1]
	supported := false
	for _, op := range comparisonOperators {
		if op == operator {
			supported = true
			break
		}
	}
	if !supported {
		return Condition{}, parseErrorf("unsupported FILTER operator %q", operator)
	}

	left, err := normalizeOperand(tokens[0], prefixes)
	if err != nil {
		return Condition{}, err
	}
	right, err := normalizeOperand(tokens[2], prefixes)
	if err != nil {
		return Condition{}, err
	}

	return Condition{Left: left, Operator: operator, Right: right}, nil
}

func normalizeOperand(token string, prefixes map[string]string) (string, error) {
	if IsVariable(token) {
		return token, nil
	}
	return normalizeTerm(token, prefixes)
}

func balanced(s string) bool {
	depth := 0
	for _, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

// splitOutside splits s on sep, ignoring separators inside quotes, IRIs or
// parentheses.
func splitOutside(s, sep string) []string {
	var parts []string
	depth := 0
	inLiteral := false
	inURI := false
	start := 0

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '\\' && inLiteral:
			i++
			continue
		case ch == '"' && !inURI:
			inLiteral = !inLiteral
		case inLiteral:
		case ch == '<' && i+1 < len(s) && s[i+1] != '=' && s[i+1] != ' ':
			inURI = true
		case ch == '>' && inURI:
			inURI = false
		case inURI:
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case depth == 0 && strings.HasPrefix(s[i:], sep):
			parts = append(parts, s[start:i])
			start = i + len(sep)
			i += len(sep) - 1
		}
	}

	return append(parts, s[start:])
}

// splitTriples splits a WHERE clause by periods, but not periods inside
// URIs, literals, or decimal numbers.
func splitTriples(whereClause string) []string {
	var triples []string
	var current strings.Builder
	inURI := false
	inLiteral := false

	for i := 0; i < len(whereClause); i++ {
		ch := whereClause[i]
		switch {
		case ch == '\\' && inLiteral && i+1 < len(whereClause):
			current.WriteByte(ch)
			i++
			current.WriteByte(whereClause[i])
		case ch == '<' && !inLiteral:
			inURI = true
			current.WriteByte(ch)
		case ch == '>' && inURI:
			inURI = false
			current.WriteByte(ch)
		case ch == '"' && !inURI:
			inLiteral = !inLiteral
			current.WriteByte(ch)
		case ch == '.' && !inURI && !inLiteral && !isDecimalPoint(whereClause, i):
			if strings.TrimSpace(current.String()) != "" {
				triples = append(triples, current.String())
			}
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if strings.TrimSpace(current.String()) != "" {
		triples = append(triples, current.String())
	}

	return triples
}

func isDecimalPoint(s string, i int) bool {
	return i > 0 && i+1 < len(s) && isDigit(s[i-1]) && isDigit(s[i+1])
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// parseTriplePatterns parses triple patterns from a WHERE clause.
func parseTriplePatterns(whereClause string, prefixes map[string]string) ([]TriplePattern, error) {
	var patterns []TriplePattern

	for _, line := range splitTriples(whereClause) {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var currentSubject string
		for _, part := range splitOutside(line, ";") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}

			tokens := tokenize(part)
			if len(tokens) == 2 && currentSubject != "" {
				tokens = append([]string{currentSubject}, tokens...)
			}
			if len(tokens) != 3 {
				return nil, parseErrorf("malformed triple pattern %q", part)
			}

			subject, err := normalizeTerm(tokens[0], prefixes)
			if err != nil {
				return nil, err
			}
			predicateToken := tokens[1]
			if predicateToken == "a" {
				predicateToken = "<" + store.RDFType + ">"
			}
			predicate, err := normalizeTerm(predicateToken, prefixes)
			if err != nil {
				return nil, err
			}
			object, err := normalizeTerm(tokens[2], prefixes)
			if err != nil {
				return nil, err
			}

			if IsLiteral(subject) {
				return nil, parseErrorf("literal %s cannot be a subject", subject)
			}
			if IsLiteral(predicate) {
				return nil, parseErrorf("literal %s cannot be a predicate", predicate)
			}

			patterns = append(patterns, TriplePattern{
				Subject:   subject,
				Predicate: predicate,
				Object:    object,
			})

			currentSubject = subject
		}
	}

	return patterns, nil
}

// tokenize splits a triple pattern into tokens, respecting URIs and
// literals. A literal's ^^datatype or @lang suffix stays in its token.
func tokenize(s string) []string {
	var tokens []string
	var current strings.Builder
	inURI := false
	inLiteral := false

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(s); i++ {
		ch := s[i]

		switch {
		case ch == '\\' && inLiteral && i+1 < len(s):
			current.WriteByte(ch)
			i++
			current.WriteByte(s[i])
		case ch == '"' && !inURI:
			inLiteral = !inLiteral
			current.WriteByte(ch)
		case inLiteral:
			current.WriteByte(ch)
		case ch == '<' && !inURI && current.Len() == 0 && i+1 < len(s) && s[i+1] != '=' && s[i+1] != ' ':
			inURI = true
			current.WriteByte(ch)
		case ch == '<' && !inURI && strings.HasSuffix(current.String(), "^^"):
			inURI = true
			current.WriteByte(ch)
		case ch == '>' && inURI:
			inURI = false
			current.WriteByte(ch)
		case (ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r') && !inURI:
			flush()
		default:
			current.WriteByte(ch)
		}
	}
	flush()

	return tokens
}

// normalizeTerm converts a pattern token into its canonical form:
// variables and parameters unchanged, IRIs in angle brackets, literals
// with an expanded datatype IRI.
func normalizeTerm(token string, prefixes map[string]string) (string, error) {
	switch {
	case IsVariable(token), IsParameter(token):
		return token, nil
	case IsURI(token):
		return token, nil
	case IsLiteral(token):
		closing := strings.LastIndexByte(token, '"')
		suffix := token[closing+1:]
		switch {
		case suffix == "", strings.HasPrefix(suffix, "@"):
			return token, nil
		case strings.HasPrefix(suffix, "^^"):
			datatype, err := normalizeTerm(suffix[2:], prefixes)
			if err != nil || !IsURI(datatype) {
				return "", parseErrorf("invalid datatype in %s", token)
			}
			return token[:closing+1] + "^^" + datatype, nil
		default:
			return "", parseErrorf("invalid literal %s", token)
		}
	case numberRegex.MatchString(token):
		datatype := store.XSDInteger
		if strings.Contains(token, ".") {
			datatype = store.XSDDecimal
		}
		return `"` + token + `"^^<` + datatype + `>`, nil
	case token == "true" || token == "false":
		return `"` + token + `"^^<` + store.XSDBoolean + `>`, nil
	case IsPrefixed(token):
		colonIdx := strings.Index(token, ":")
		namespace, ok := prefixes[token[:colonIdx]]
		if !ok {
			return "", parseErrorf("undeclared prefix %q", token[:colonIdx])
		}
		return "<" + namespace + token[colonIdx+1:] + ">", nil
	}
	return "", parseErrorf("invalid term %q", token)
}

// Validate checks if the query is well-formed and returns validation errors.
func (q *Query) Validate() []error {
	var errs []error

	if q.Type == "" {
		errs = append(errs, fmt.Errorf("query type is not set"))
	}

	if q.Select == nil && q.Type == SelectQueryType {
		errs = append(errs, fmt.Errorf("SELECT query missing select clause"))
		return errs
	}

	if q.Select != nil {
		errs = append(errs, q.Select.Validate()...)
	}

	return errs
}

// Validate checks if the SELECT query is well-formed.
func (q *SelectQuery) Validate() []error {
	var errs []error

	if len(q.Variables) == 0 {
		errs = append(errs, fmt.Errorf("SELECT clause has no variables"))
	}

	if len(q.Where) == 0 {
		errs = append(errs, fmt.Errorf("WHERE clause has no triple patterns"))
	}

	boundVars := make(map[string]bool)
	for _, p := range q.allPatterns() {
		for _, token := range []string{p.Subject, p.Predicate, p.Object} {
			if IsVariable(token) {
				boundVars[token] = true
			}
		}
	}

	if len(q.Variables) > 0 && q.Variables[0] != "*" {
		for _, v := range q.Variables {
			if !boundVars[v] {
				errs = append(errs, fmt.Errorf("variable %s in SELECT is not bound in WHERE clause", v))
			}
		}
	}

	for _, f := range q.Filters {
		for _, c := range f.Conditions {
			for _, operand := range []string{c.Left, c.Right} {
				if IsVariable(operand) && !boundVars[operand] {
					errs = append(errs, fmt.Errorf("variable %s in FILTER is not bound in WHERE clause", operand))
				}
			}
		}
	}

	for _, ob := range q.OrderBy {
		if !boundVars[ob.Variable] {
			errs = append(errs, fmt.Errorf("ORDER BY variable %s is not bound in WHERE clause", ob.Variable))
		}
	}

	if q.Limit < 0 {
		errs = append(errs, fmt.Errorf("LIMIT cannot be negative"))
	}

	if q.Offset < 0 {
		errs = append(errs, fmt.Errorf("OFFSET cannot be negative"))
	}

	return errs
}

// String returns a string representation of the query (for debugging).
func (q *Query) String() string {
	if q.Select != nil {
		return q.Select.String()
	}
	return "<unknown query type>"
}

// String returns a string representation of the SELECT query.
func (q *SelectQuery) String() string {
	var sb strings.Builder

	for _, prefix := range sortedPrefixKeys(q.Prefixes) {
		fmt.Fprintf(&sb, "PREFIX %s: <%s>\n", prefix, q.Prefixes[prefix])
	}

	sb.WriteString("SELECT ")
	if q.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(q.Variables, " "))

	sb.WriteString(" WHERE {\n")
	for _, p := range q.Where {
		fmt.Fprintf(&sb, "  %s %s %s .\n", p.Subject, p.Predicate, p.Object)
	}
	for _, f := range q.Filters {
		fmt.Fprintf(&sb, "  FILTER(%s)\n", f.Expression)
	}
	for _, opt := range q.Optional {
		sb.WriteString("  OPTIONAL {\n")
		for _, p := range opt {
			fmt.Fprintf(&sb, "    %s %s %s .\n", p.Subject, p.Predicate, p.Object)
		}
		sb.WriteString("  }\n")
	}
	sb.WriteString("}")

	if len(q.OrderBy) > 0 {
		sb.WriteString(" ORDER BY")
		for _, ob := range q.OrderBy {
			if ob.Descending {
				fmt.Fprintf(&sb, " DESC(%s)", ob.Variable)
			} else {
				fmt.Fprintf(&sb, " %s", ob.Variable)
			}
		}
	}

	if q.Limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
	}

	if q.Offset > 0 {
		fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
	}

	return sb.String()
}

func sortedPrefixKeys(prefixes map[string]string) []string {
	keys := make([]string, 0, len(prefixes))
	for k := range prefixes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
