package query

import (
	"errors"
	"strings"
	"testing"

	"github.com/coolbeans/rdgmed/pkg/store"
)

const cotNS = "http://users.jyu.fi/~kumapmxw/cottage-ontology.owl#"

func TestParseQuery_SimpleSelect(t *testing.T) {
	query, err := ParseQuery(`SELECT ?cottage WHERE { ?cottage a <` + cotNS + `Cottage> }`)
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}

	if query.Type != SelectQueryType {
		t.Errorf("Expected SELECT, got %s", query.Type)
	}
	if len(query.Select.Variables) != 1 || query.Select.Variables[0] != "?cottage" {
		t.Errorf("Unexpected variables: %v", query.Select.Variables)
	}
	if len(query.Select.Where) != 1 {
		t.Fatalf("Expected 1 pattern, got %d", len(query.Select.Where))
	}

	pattern := query.Select.Where[0]
	if pattern.Predicate != "<"+store.RDFType+">" {
		t.Errorf("'a' should expand to rdf:type, got %s", pattern.Predicate)
	}
	if pattern.Object != "<"+cotNS+"Cottage>" {
		t.Errorf("Unexpected object %s", pattern.Object)
	}
}

func TestParseQuery_PrefixExpansion(t *testing.T) {
	query, err := ParseQuery(`
		PREFIX cot: <` + cotNS + `>
		SELECT ?c ?places WHERE {
			?c rdf:type cot:Cottage ;
			   cot:numberOfPlaces ?places .
		}`)
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}

	if query.Select.Prefixes["cot"] != cotNS {
		t.Errorf("Prefix not captured: %v", query.Select.Prefixes)
	}
	if len(query.Select.Where) != 2 {
		t.Fatalf("Expected 2 patterns from ; continuation, got %d", len(query.Select.Where))
	}
	second := query.Select.Where[1]
	if second.Subject != "?c" || second.Predicate != "<"+cotNS+"numberOfPlaces>" {
		t.Errorf("Continuation pattern wrong: %+v", second)
	}
}

func TestParseQuery_Literals(t *testing.T) {
	testCases := []struct {
		name     string
		object   string
		expected string
	}{
		{"plain", `"Tampere"`, `"Tampere"`},
		{"typed prefixed", `"4"^^xsd:int`, `"4"^^<` + store.XSDInt + `>`},
		{"typed full", `"2024-01-10"^^<` + store.XSDDate + `>`, `"2024-01-10"^^<` + store.XSDDate + `>`},
		{"lang", `"mökki"@fi`, `"mökki"@fi`},
		{"integer", `12`, `"12"^^<` + store.XSDInteger + `>`},
		{"decimal", `1.5`, `"1.5"^^<` + store.XSDDecimal + `>`},
		{"boolean", `true`, `"true"^^<` + store.XSDBoolean + `>`},
		{"literal with spaces and dot", `"Main St. 5"`, `"Main St. 5"`},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			query, err := ParseQuery(`SELECT ?s WHERE { ?s <http://x/p> ` + testCase.object + ` . }`)
			if err != nil {
				t.Fatalf("ParseQuery failed: %v", err)
			}
			if got := query.Select.Where[0].Object; got != testCase.expected {
				t.Errorf("Object = %s, want %s", got, testCase.expected)
			}
		})
	}
}

func TestParseQuery_Modifiers(t *testing.T) {
	query, err := ParseQuery(`SELECT DISTINCT ?c ?start WHERE {
		?c <http://x/start> ?start .
	} ORDER BY DESC(?start) ?c LIMIT 5 OFFSET 2`)
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}

	selectQuery := query.Select
	if !selectQuery.Distinct {
		t.Error("Expected DISTINCT")
	}
	if selectQuery.Limit != 5 || selectQuery.Offset != 2 {
		t.Errorf("Expected LIMIT 5 OFFSET 2, got %d %d", selectQuery.Limit, selectQuery.Offset)
	}
	if len(selectQuery.OrderBy) != 1 || !selectQuery.OrderBy[0].Descending {
		t.Errorf("Unexpected ORDER BY: %+v", selectQuery.OrderBy)
	}
}

func TestParseQuery_Filters(t *testing.T) {
	query, err := ParseQuery(`SELECT ?c WHERE {
		?c <http://x/places> ?places .
		?c <http://x/city> ?city .
		FILTER(?places >= $minPlaces && CONTAINS(?city, "pere"))
		FILTER(!BOUND(?c) || ?c = ?c)
	}`)
	if err == nil {
		t.Fatal("Expected || to be rejected")
	}

	query, err = ParseQuery(`SELECT ?c WHERE {
		?c <http://x/places> ?places .
		?c <http://x/city> ?city .
		FILTER(?places >= $minPlaces && CONTAINS(?city, "pere"))
		FILTER(?city != "Helsinki")
	}`)
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}

	if len(query.Select.Filters) != 2 {
		t.Fatalf("Expected 2 filters, got %d", len(query.Select.Filters))
	}
	first := query.Select.Filters[0]
	if len(first.Conditions) != 2 {
		t.Fatalf("Expected 2 conditions, got %d", len(first.Conditions))
	}
	if first.Conditions[0].Left != "?places" || first.Conditions[0].Operator != ">=" || first.Conditions[0].Right != "$minPlaces" {
		t.Errorf("Unexpected comparison: %+v", first.Conditions[0])
	}
	if first.Conditions[1].Function != "CONTAINS" {
		t.Errorf("Expected CONTAINS, got %+v", first.Conditions[1])
	}
	if len(query.Select.Where) != 2 {
		t.Errorf("FILTER text should not leak into patterns: %+v", query.Select.Where)
	}

	params := query.Select.Parameters()
	if len(params) != 1 || params[0] != "minPlaces" {
		t.Errorf("Expected [minPlaces], got %v", params)
	}
}

func TestParseQuery_Errors(t *testing.T) {
	testCases := []struct {
		name  string
		query string
	}{
		{"empty", ""},
		{"not select", "ASK { ?s ?p ?o }"},
		{"no where", "SELECT ?s"},
		{"no variables", "SELECT WHERE { ?s ?p ?o }"},
		{"empty where", "SELECT ?s WHERE { }"},
		{"unbound select var", "SELECT ?x WHERE { ?s ?p ?o }"},
		{"undeclared prefix", "SELECT ?s WHERE { ?s foo:bar ?o }"},
		{"short pattern", "SELECT ?s WHERE { ?s ?p }"},
		{"literal subject", `SELECT ?o WHERE { "x" ?p ?o }`},
		{"unknown function", "SELECT ?s WHERE { ?s ?p ?o FILTER(LANG(?o) = \"en\") }"},
		{"bad operator", "SELECT ?s WHERE { ?s ?p ?o FILTER(?o ~ 3) }"},
		{"unbalanced filter", "SELECT ?s WHERE { ?s ?p ?o FILTER(?o > 3 }"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := ParseQuery(testCase.query)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !errors.Is(err, ErrParse) {
				t.Errorf("Expected ErrParse, got %v", err)
			}
		})
	}
}

func TestParseQuery_Optional(t *testing.T) {
	query, err := ParseQuery(`SELECT ?c ?img WHERE {
		?c a <http://x/Cottage> .
		OPTIONAL { ?c <http://x/image> ?img }
	}`)
	if err != nil {
		t.Fatalf("ParseQuery failed: %v", err)
	}

	if len(query.Select.Optional) != 1 || len(query.Select.Optional[0]) != 1 {
		t.Fatalf("Expected one OPTIONAL pattern, got %+v", query.Select.Optional)
	}
	if len(query.Select.Where) != 1 {
		t.Errorf("OPTIONAL should not be part of main patterns, got %d", len(query.Select.Where))
	}
}

func TestTokenHelpers(t *testing.T) {
	if !IsVariable("?x") || IsVariable("?") || IsVariable("x") {
		t.Error("IsVariable mismatch")
	}
	if !IsParameter("$min") || IsParameter("$") {
		t.Error("IsParameter mismatch")
	}
	if !IsURI("<http://x>") || IsURI("<>") {
		t.Error("IsURI mismatch")
	}
	if !IsLiteral(`"a"^^<http://x>`) || !IsLiteral(`""`) || IsLiteral(`a`) {
		t.Error("IsLiteral mismatch")
	}
	if !IsPrefixed("cot:Cottage") || IsPrefixed("?x") || IsPrefixed("cot:") {
		t.Error("IsPrefixed mismatch")
	}
	if StripParameter("$min") != "min" || StripURI("<http://x>") != "http://x" {
		t.Error("Strip helpers mismatch")
	}
}

func TestQuery_String(t *testing.T) {
	query := MustParse(`PREFIX ex: <http://x/> SELECT ?s WHERE { ?s ex:p "v" } LIMIT 3`)

	s := query.String()
	for _, expected := range []string{"PREFIX ex: <http://x/>", "SELECT ?s", `?s <http://x/p> "v" .`, "LIMIT 3"} {
		if !strings.Contains(s, expected) {
			t.Errorf("String() missing %q:\n%s", expected, s)
		}
	}
}
