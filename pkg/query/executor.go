package query

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/coolbeans/rdgmed/pkg/store"
)

// ErrUnboundParameter is returned when a query references a $parameter
// that was not supplied at execution time.
var ErrUnboundParameter = errors.New("unbound query parameter")

// Params binds $parameter names (without the $) to terms.
type Params map[string]store.Term

// Binding maps variable names (without ?) to the terms they matched.
type Binding map[string]store.Term

// Executor executes SPARQL queries against a graph.
type Executor struct {
	graph          *store.Graph
	planner        *QueryPlanner
	enablePlanning bool
	timeout        time.Duration
}

// ExecutorOption configures an executor.
type ExecutorOption func(*Executor)

// WithPlanning enables or disables query planning/optimization.
func WithPlanning(enabled bool) ExecutorOption {
	return func(e *Executor) {
		e.enablePlanning = enabled
	}
}

// WithTimeout sets the query execution timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// NewExecutor creates a new query executor.
func NewExecutor(graph *store.Graph, opts ...ExecutorOption) *Executor {
	e := &Executor{
		graph:          graph,
		planner:        NewQueryPlanner(graph.Stats()),
		enablePlanning: true,
		timeout:        30 * time.Second,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// RefreshStats updates the query planner with current graph statistics.
func (e *Executor) RefreshStats() {
	e.planner = NewQueryPlanner(e.graph.Stats())
}

// QueryResult represents the result of a query execution.
type QueryResult struct {
	Variables []string  // Variable names (without ?)
	Bindings  []Binding // Variable bindings for each result row
	Count     int       // Number of result rows
	Metrics   QueryMetrics
}

// QueryMetrics contains performance metrics for query execution.
type QueryMetrics struct {
	ParseTime     time.Duration `json:"parse_time"`
	PlanTime      time.Duration `json:"plan_time"`
	ExecuteTime   time.Duration `json:"execute_time"`
	TotalTime     time.Duration `json:"total_time"`
	PatternsCount int           `json:"patterns_count"`
	ResultCount   int           `json:"result_count"`
}

// Values returns the terms bound to variable across all rows, skipping
// rows where it is unbound.
func (r *QueryResult) Values(variable string) []store.Term {
	variable = StripVariable(variable)
	values := make([]store.Term, 0, len(r.Bindings))
	for _, binding := range r.Bindings {
		if term, ok := binding[variable]; ok {
			values = append(values, term)
		}
	}
	return values
}

// Execute executes a parsed query that takes no parameters.
func (e *Executor) Execute(query *Query) (*QueryResult, error) {
	return e.ExecuteWithContext(context.Background(), query, nil)
}

// ExecuteWithContext executes a parsed query with context for
// cancellation. Every $parameter the query mentions must be present in
// params.
func (e *Executor) ExecuteWithContext(ctx context.Context, query *Query, params Params) (*QueryResult, error) {
	startTime := time.Now()
	metrics := QueryMetrics{}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if query.Type == SelectQueryType {
		result, err := e.executeSelect(ctx, query.Select, params, &metrics)
		if err != nil {
			return nil, err
		}
		metrics.TotalTime = time.Since(startTime)
		result.Metrics = metrics
		return result, nil
	}

	return nil, fmt.Errorf("unsupported query type: %s", query.Type)
}

// ExecuteString parses and executes a SPARQL query string.
func (e *Executor) ExecuteString(queryStr string) (*QueryResult, error) {
	return e.ExecuteStringWithContext(context.Background(), queryStr, nil)
}

// ExecuteStringWithContext parses and executes a SPARQL query string with context.
func (e *Executor) ExecuteStringWithContext(ctx context.Context, queryStr string, params Params) (*QueryResult, error) {
	startTime := time.Now()

	query, err := ParseQuery(queryStr)
	if err != nil {
		return nil, err
	}
	parseTime := time.Since(startTime)

	result, err := e.ExecuteWithContext(ctx, query, params)
	if err != nil {
		return nil, err
	}

	result.Metrics.ParseTime = parseTime
	return result, nil
}

// node is a compiled pattern position: either a variable or a fixed term.
type node struct {
	variable string
	term     store.Term
}

type compiledPattern struct {
	subject   node
	predicate node
	object    node
}

type compiledCondition struct {
	Condition
	left  node
	right node
	regex *regexp.Regexp
}

func compileNode(token string, params Params) (node, error) {
	switch {
	case IsVariable(token):
		return node{variable: StripVariable(token)}, nil
	case IsParameter(token):
		name := StripParameter(token)
		term, ok := params[name]
		if !ok || term.IsZero() {
			return node{}, fmt.Errorf("%w: $%s", ErrUnboundParameter, name)
		}
		return node{term: term}, nil
	case IsURI(token):
		return node{term: store.IRI(StripURI(token))}, nil
	case IsLiteral(token):
		return node{term: literalTerm(token)}, nil
	case token == "":
		return node{}, nil
	}
	return node{}, fmt.Errorf("invalid term %q", token)
}

// literalTerm converts a normalized literal token into a store term.
func literalTerm(token string) store.Term {
	closing := strings.LastIndexByte(token, '"')
	value := unescapeLiteral(token[1:closing])
	suffix := token[closing+1:]

	switch {
	case strings.HasPrefix(suffix, "@"):
		return store.LangLiteral(value, suffix[1:])
	case strings.HasPrefix(suffix, "^^"):
		return store.TypedLiteral(value, StripURI(suffix[2:]))
	default:
		return store.Literal(value)
	}
}

func unescapeLiteral(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	replacer := strings.NewReplacer(`\"`, `"`, `\\`, `\`, `\n`, "\n", `\t`, "\t", `\r`, "\r")
	return replacer.Replace(s)
}

func compilePatterns(patterns []TriplePattern, params Params) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, p := range patterns {
		subject, err := compileNode(p.Subject, params)
		if err != nil {
			return nil, err
		}
		predicate, err := compileNode(p.Predicate, params)
		if err != nil {
			return nil, err
		}
		object, err := compileNode(p.Object, params)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, compiledPattern{subject, predicate, object})
	}
	return compiled, nil
}

func compileFilters(filters []Filter, params Params) ([]compiledCondition, error) {
	var compiled []compiledCondition
	for _, f := range filters {
		for _, c := range f.Conditions {
			cc := compiledCondition{Condition: c}
			var err error
			if cc.left, err = compileNode(c.Left, params); err != nil {
				return nil, err
			}
			if cc.right, err = compileNode(c.Right, params); err != nil {
				return nil, err
			}
			if c.Function == "REGEX" {
				if cc.right.variable != "" {
					return nil, fmt.Errorf("REGEX pattern must be a constant")
				}
				if cc.regex, err = regexp.Compile(cc.right.term.Value); err != nil {
					return nil, fmt.Errorf("invalid REGEX pattern: %w", err)
				}
			}
			compiled = append(compiled, cc)
		}
	}
	return compiled, nil
}

// executeSelect executes a SELECT query.
func (e *Executor) executeSelect(ctx context.Context, query *SelectQuery, params Params, metrics *QueryMetrics) (*QueryResult, error) {
	planStart := time.Now()

	where, err := compilePatterns(query.Where, params)
	if err != nil {
		return nil, err
	}
	optionals := make([][]compiledPattern, 0, len(query.Optional))
	for _, opt := range query.Optional {
		compiled, err := compilePatterns(opt, params)
		if err != nil {
			return nil, err
		}
		optionals = append(optionals, compiled)
	}
	conditions, err := compileFilters(query.Filters, params)
	if err != nil {
		return nil, err
	}

	if e.enablePlanning && len(where) > 1 {
		where = e.planner.order(where)
	}
	metrics.PlanTime = time.Since(planStart)
	metrics.PatternsCount = len(where)

	executeStart := time.Now()

	// Start with a single empty binding
	bindings := []Binding{{}}

	for _, pattern := range where {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bindings = e.matchPattern(pattern, bindings)
		if len(bindings) == 0 {
			break
		}
	}

	for _, optPatterns := range optionals {
		bindings, err = e.processOptional(ctx, optPatterns, bindings)
		if err != nil {
			return nil, err
		}
	}

	if len(conditions) > 0 {
		bindings = applyFilters(conditions, bindings)
	}

	if len(query.OrderBy) > 0 {
		applyOrderBy(query.OrderBy, bindings)
	}

	if query.Distinct {
		bindings = applyDistinct(bindings, query.Variables)
	}

	if query.Offset > 0 {
		if query.Offset < len(bindings) {
			bindings = bindings[query.Offset:]
		} else {
			bindings = []Binding{}
		}
	}

	if query.Limit > 0 && query.Limit < len(bindings) {
		bindings = bindings[:query.Limit]
	}

	metrics.ExecuteTime = time.Since(executeStart)
	metrics.ResultCount = len(bindings)

	result := &QueryResult{
		Bindings: bindings,
		Count:    len(bindings),
	}

	if len(query.Variables) == 1 && query.Variables[0] == "*" {
		varSet := make(map[string]bool)
		for _, binding := range bindings {
			for v := range binding {
				varSet[v] = true
			}
		}
		for v := range varSet {
			result.Variables = append(result.Variables, v)
		}
		sort.Strings(result.Variables)
	} else {
		for _, v := range query.Variables {
			result.Variables = append(result.Variables, StripVariable(v))
		}
	}

	return result, nil
}

func resolveNode(n node, binding Binding) store.Term {
	if n.variable == "" {
		return n.term
	}
	if bound, ok := binding[n.variable]; ok {
		return bound
	}
	return store.Any
}

// bindNode records the matched term for a variable position, rejecting
// rows where the variable already holds a different term.
func bindNode(n node, term store.Term, binding Binding) bool {
	if n.variable == "" {
		return true
	}
	if existing, ok := binding[n.variable]; ok {
		return existing.Equals(term)
	}
	binding[n.variable] = term
	return true
}

// matchPattern matches a triple pattern against the graph.
func (e *Executor) matchPattern(pattern compiledPattern, currentBindings []Binding) []Binding {
	var newBindings []Binding

	for _, binding := range currentBindings {
		subject := resolveNode(pattern.subject, binding)
		predicate := resolveNode(pattern.predicate, binding)
		object := resolveNode(pattern.object, binding)

		for _, triple := range e.graph.Find(subject, predicate, object) {
			newBinding := make(Binding, len(binding)+3)
			for k, v := range binding {
				newBinding[k] = v
			}

			if !bindNode(pattern.subject, triple.Subject, newBinding) ||
				!bindNode(pattern.predicate, triple.Predicate, newBinding) ||
				!bindNode(pattern.object, triple.Object, newBinding) {
				continue
			}

			newBindings = append(newBindings, newBinding)
		}
	}

	return newBindings
}

// processOptional processes OPTIONAL patterns (left outer join).
func (e *Executor) processOptional(ctx context.Context, patterns []compiledPattern, currentBindings []Binding) ([]Binding, error) {
	var result []Binding

	for _, binding := range currentBindings {
		optBindings := []Binding{binding}
		for _, pattern := range patterns {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			optBindings = e.matchPattern(pattern, optBindings)
		}

		if len(optBindings) > 0 {
			result = append(result, optBindings...)
		} else {
			result = append(result, binding)
		}
	}

	return result, nil
}

func applyFilters(conditions []compiledCondition, bindings []Binding) []Binding {
	filtered := bindings[:0:0]
	for _, binding := range bindings {
		keep := true
		for _, condition := range conditions {
			if !evaluateCondition(condition, binding) {
				keep = false
				break
			}
		}
		if keep {
			filtered = append(filtered, binding)
		}
	}
	return filtered
}

// evaluateCondition evaluates one filter condition. Comparisons involving
// an unbound variable are false.
func evaluateCondition(c compiledCondition, binding Binding) bool {
	if c.Function == "BOUND" {
		_, ok := binding[c.left.variable]
		return ok != c.Negated
	}

	left := resolveNode(c.left, binding)
	right := resolveNode(c.right, binding)
	if left.IsZero() || right.IsZero() {
		return false
	}

	var result bool
	switch c.Function {
	case "CONTAINS":
		result = strings.Contains(left.Value, right.Value)
	case "STRSTARTS":
		result = strings.HasPrefix(left.Value, right.Value)
	case "STRENDS":
		result = strings.HasSuffix(left.Value, right.Value)
	case "REGEX":
		result = c.regex.MatchString(left.Value)
	default:
		result = compare(left, c.Operator, right)
	}

	if c.Negated {
		return !result
	}
	return result
}

func compare(left store.Term, operator string, right store.Term) bool {
	if operator == "=" || operator == "!=" {
		equal := termsEqual(left, right)
		if operator == "=" {
			return equal
		}
		return !equal
	}

	cmp := compareTerms(left, right)
	switch operator {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	}
	return false
}

func termsEqual(left, right store.Term) bool {
	if left.IsLiteral() && right.IsLiteral() {
		if a, okA := numericValue(left); okA {
			if b, okB := numericValue(right); okB {
				return a == b
			}
		}
		return left.Value == right.Value && left.Lang == right.Lang
	}
	return left.Equals(right)
}

// compareTerms orders two terms: numerically when both parse as numbers,
// lexically otherwise. ISO dates compare correctly as strings.
func compareTerms(left, right store.Term) int {
	if a, okA := numericValue(left); okA {
		if b, okB := numericValue(right); okB {
			switch {
			case a < b:
				return -1
			case a > b:
				return 1
			default:
				return 0
			}
		}
	}
	return strings.Compare(left.Value, right.Value)
}

func numericValue(term store.Term) (float64, bool) {
	if !term.IsLiteral() {
		return 0, false
	}
	if term.Datatype != "" && !store.IsNumericDatatype(term.Datatype) {
		return 0, false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(term.Value), 64)
	return value, err == nil
}

// applyOrderBy sorts bindings by variables. Unbound values sort first.
func applyOrderBy(orderBys []OrderBy, bindings []Binding) {
	sort.SliceStable(bindings, func(i, j int) bool {
		for _, ob := range orderBys {
			varName := StripVariable(ob.Variable)
			valI, okI := bindings[i][varName]
			valJ, okJ := bindings[j][varName]

			var cmp int
			switch {
			case !okI && !okJ:
				cmp = 0
			case !okI:
				cmp = -1
			case !okJ:
				cmp = 1
			default:
				cmp = compareTerms(valI, valJ)
				if cmp == 0 {
					cmp = strings.Compare(valI.Key(), valJ.Key())
				}
			}

			if cmp == 0 {
				continue
			}
			if ob.Descending {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

// applyDistinct removes duplicate bindings based on selected variables.
func applyDistinct(bindings []Binding, variables []string) []Binding {
	seen := make(map[string]bool)
	var unique []Binding

	for _, binding := range bindings {
		var key string
		if len(variables) == 1 && variables[0] == "*" {
			keys := make([]string, 0, len(binding))
			for k, v := range binding {
				keys = append(keys, k+"="+v.Key())
			}
			sort.Strings(keys)
			key = strings.Join(keys, "|")
		} else {
			values := make([]string, 0, len(variables))
			for _, v := range variables {
				values = append(values, binding[StripVariable(v)].Key())
			}
			key = strings.Join(values, "|")
		}

		if !seen[key] {
			seen[key] = true
			unique = append(unique, binding)
		}
	}

	return unique
}

// OutputFormat selects how a result is rendered.
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatCSV   OutputFormat = "csv"
)

// Format formats the query result in the specified format.
func (r *QueryResult) Format(format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return r.FormatJSON()
	case FormatCSV:
		return r.FormatCSV()
	case FormatTable:
		return r.FormatTable(), nil
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

func (r *QueryResult) cell(binding Binding, variable string) string {
	if term, ok := binding[variable]; ok {
		return term.Value
	}
	return ""
}

// FormatTable formats the result as an ASCII table.
func (r *QueryResult) FormatTable() string {
	if len(r.Variables) == 0 || len(r.Bindings) == 0 {
		return fmt.Sprintf("No results (%d rows)\n", r.Count)
	}

	var sb strings.Builder

	widths := make([]int, len(r.Variables))
	for i, v := range r.Variables {
		widths[i] = len(v)
	}
	for _, binding := range r.Bindings {
		for i, v := range r.Variables {
			if n := len(r.cell(binding, v)); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sep strings.Builder
	sep.WriteString("+")
	for _, w := range widths {
		sep.WriteString(strings.Repeat("-", w+2))
		sep.WriteString("+")
	}
	sep.WriteString("\n")

	sb.WriteString(sep.String())

	sb.WriteString("|")
	for i, v := range r.Variables {
		fmt.Fprintf(&sb, " %-*s |", widths[i], v)
	}
	sb.WriteString("\n")
	sb.WriteString(sep.String())

	for _, binding := range r.Bindings {
		sb.WriteString("|")
		for i, v := range r.Variables {
			fmt.Fprintf(&sb, " %-*s |", widths[i], r.cell(binding, v))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(sep.String())

	fmt.Fprintf(&sb, "%d rows\n", r.Count)
	return sb.String()
}

// FormatJSON formats the result as JSON with plain string values.
func (r *QueryResult) FormatJSON() (string, error) {
	type jsonResult struct {
		Variables []string            `json:"variables"`
		Bindings  []map[string]string `json:"bindings"`
		Count     int                 `json:"count"`
	}

	rows := make([]map[string]string, len(r.Bindings))
	for i, binding := range r.Bindings {
		row := make(map[string]string, len(binding))
		for k, v := range binding {
			row[k] = v.Value
		}
		rows[i] = row
	}

	data, err := json.MarshalIndent(jsonResult{
		Variables: r.Variables,
		Bindings:  rows,
		Count:     r.Count,
	}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatCSV formats the result as CSV.
func (r *QueryResult) FormatCSV() (string, error) {
	var sb strings.Builder
	writer := csv.NewWriter(&sb)

	if err := writer.Write(r.Variables); err != nil {
		return "", err
	}

	for _, binding := range r.Bindings {
		row := make([]string, len(r.Variables))
		for i, v := range r.Variables {
			row[i] = r.cell(binding, v)
		}
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return sb.String(), nil
}

// QueryPlanner orders triple patterns using index statistics.
type QueryPlanner struct {
	stats store.IndexStats
}

// NewQueryPlanner creates a new query planner with index statistics.
func NewQueryPlanner(stats store.IndexStats) *QueryPlanner {
	return &QueryPlanner{
		stats: stats,
	}
}

// order sorts compiled patterns by estimated selectivity, most selective
// first.
func (qp *QueryPlanner) order(patterns []compiledPattern) []compiledPattern {
	type patternWithSelectivity struct {
		pattern     compiledPattern
		selectivity float64
	}

	selectivities := make([]patternWithSelectivity, len(patterns))
	for i, pattern := range patterns {
		selectivities[i] = patternWithSelectivity{
			pattern:     pattern,
			selectivity: qp.estimateSelectivity(pattern),
		}
	}

	sort.SliceStable(selectivities, func(i, j int) bool {
		return selectivities[i].selectivity < selectivities[j].selectivity
	})

	ordered := make([]compiledPattern, len(patterns))
	for i, sel := range selectivities {
		ordered[i] = sel.pattern
	}
	return ordered
}

// estimateSelectivity estimates the selectivity of a triple pattern.
// Lower values = more selective (fewer results expected).
func (qp *QueryPlanner) estimateSelectivity(pattern compiledPattern) float64 {
	if qp.stats.TotalTriples == 0 {
		return 1.0
	}

	selectivity := float64(qp.stats.TotalTriples)
	boundCount := 0

	narrow := func(n node, counts map[string]int) {
		if n.variable != "" {
			return
		}
		boundCount++
		count, ok := counts[n.term.Key()]
		switch {
		case !ok:
			selectivity *= 0.1
		case boundCount == 1:
			selectivity = float64(count)
		default:
			selectivity *= float64(count) / float64(qp.stats.TotalTriples)
		}
	}

	narrow(pattern.subject, qp.stats.SubjectCounts)
	narrow(pattern.predicate, qp.stats.PredicateCounts)
	narrow(pattern.object, qp.stats.ObjectCounts)

	if selectivity < 0.1 {
		selectivity = 0.1
	}

	return selectivity
}
