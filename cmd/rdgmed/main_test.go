package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coolbeans/rdgmed/pkg/config"
	"github.com/coolbeans/rdgmed/pkg/provider"
	"github.com/coolbeans/rdgmed/pkg/store"
	"github.com/coolbeans/rdgmed/pkg/vocab"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCandidatesCommand(t *testing.T) {
	out, err := run(t, "candidates",
		"--start", "2023-07-01", "--duration", "5", "--shift", "2",
		"--from", "2023-06-30", "--to", "2023-07-20")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, []string{
		"1. 2023-06-30 to 2023-07-04 (shifted)",
		"2. 2023-07-01 to 2023-07-05 (exact)",
		"3. 2023-07-02 to 2023-07-06 (shifted)",
		"4. 2023-07-03 to 2023-07-07 (shifted)",
	}, lines)
}

func TestCandidatesCommandWithoutAvailability(t *testing.T) {
	out, err := run(t, "candidates", "--start", "2023-07-01", "--duration", "3", "--shift", "1")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(out, "\n"))
}

func TestCandidatesCommandNothingFits(t *testing.T) {
	out, err := run(t, "candidates",
		"--start", "2023-07-01", "--duration", "5",
		"--from", "2023-07-01", "--to", "2023-07-03")
	require.NoError(t, err)
	assert.Contains(t, out, "No 5 day stay fits")
}

func TestCandidatesCommandErrors(t *testing.T) {
	for _, args := range [][]string{
		{"candidates", "--start", "July"},
		{"candidates", "--start", "2023-07-01", "--shift", "-1"},
		{"candidates", "--start", "2023-07-01", "--shift", "1001"},
		{"candidates", "--start", "2023-07-01", "--duration", "0"},
		{"candidates", "--start", "2023-07-01", "--from", "2023-07-05", "--to", "2023-07-01"},
		{"candidates"},
	} {
		_, err := run(t, args...)
		assert.Error(t, err, strings.Join(args, " "))
	}
}

func TestNormalizeCommand(t *testing.T) {
	path := writeFile(t, "rdg.ttl", `@prefix cot: <http://users.jyu.fi/~kumapmxw/cottage-ontology.owl#> .
@prefix xsd: <http://www.w3.org/2001/XMLSchema#> .
<http://example.org/request> a cot:BookingRequest ;
    cot:numberOfPlaces ""^^xsd:int ;
    cot:startDate ""^^xsd:date .
`)

	out, err := run(t, "normalize", path)
	require.NoError(t, err)

	g, err := store.ParseTurtleString(out)
	require.NoError(t, err)
	request := store.IRI("http://example.org/request")
	assert.Equal(t, "0", g.Objects(request, vocab.Default().Term("numberOfPlaces"))[0].Value)
	assert.Equal(t, "1970-01-01", g.Objects(request, vocab.Default().Term("startDate"))[0].Value)

	normalized := writeFile(t, "normalized.ttl", out)
	out, err = run(t, "normalize", "--reverse", normalized)
	require.NoError(t, err)
	g, err = store.ParseTurtleString(out)
	require.NoError(t, err)
	assert.Equal(t, "", g.Objects(request, vocab.Default().Term("numberOfPlaces"))[0].Value)
}

func TestNormalizeCommandFormats(t *testing.T) {
	path := writeFile(t, "rdg.ttl", `<http://example.org/request> <http://example.org/vocab#places> "2" .
`)

	out, err := run(t, "normalize", "--format", "jsonld", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"@graph"`)

	out, err = run(t, "normalize", "-f", "rdfxml", path)
	require.NoError(t, err)
	assert.Contains(t, out, `<ns0:places>2</ns0:places>`)

	_, err = run(t, "normalize", "--format", "n3", path)
	assert.ErrorContains(t, err, "unknown format")
}

func TestNormalizeCommandMissingFile(t *testing.T) {
	_, err := run(t, "normalize", filepath.Join(t.TempDir(), "missing.ttl"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCatalogGenerateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cottages.ttl")
	out, err := run(t, "catalog", "generate", "--count", "12", "--seed", "7", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 12 cottages")

	catalog, err := provider.LoadCatalogFile(path, vocab.Default())
	require.NoError(t, err)
	assert.Equal(t, 12, catalog.Len())

	again, err := run(t, "catalog", "generate", "--count", "12", "--seed", "7")
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(data), again, "same seed, same catalog")
}

func TestCatalogQueryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cottages.ttl")
	_, err := run(t, "catalog", "generate", "--count", "5", "--out", path)
	require.NoError(t, err)

	out, err := run(t, "catalog", "query", "--catalog", path, "--format", "csv",
		`PREFIX cot: <http://users.jyu.fi/~kumapmxw/cottage-ontology.owl#>
SELECT ?c WHERE { ?c a cot:Cottage } ORDER BY ?c`)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, "c", lines[0])
	assert.Len(t, lines, 6)

	_, err = run(t, "catalog", "query", "--catalog", path, "SELECT nonsense")
	assert.Error(t, err)
}

func TestConfigInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rdgmed.yaml")

	_, err := run(t, "config", "init", path)
	require.NoError(t, err)
	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)

	_, err = run(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "config", "init", "--force", path)
	assert.NoError(t, err)
}

func TestAlignCommandFile(t *testing.T) {
	candidate := writeFile(t, "hotel.ttl", `@prefix sswap: <http://sswapmeet.sswap.info/sswap/> .
@prefix ex: <http://example.org/hotel#> .
<http://example.org/hotel/resource> sswap:operatesOn <http://example.org/hotel/graph> .
<http://example.org/hotel/graph> sswap:hasMapping <http://example.org/hotel/request> .
<http://example.org/hotel/request> ex:address "" ;
    ex:placeCount "" ;
    ex:nearestCity "" .
`)
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "rdgmed.yaml")
	cfg := config.DefaultConfig()
	cfg.Mediator.AlignmentDir = filepath.Join(dir, "alignments")
	require.NoError(t, cfg.SaveToFile(cfgPath))

	out, err := run(t, "align", "--config", cfgPath, "--top", "1", "--save", candidate)
	require.NoError(t, err)
	assert.Contains(t, out, "cityName\n")
	assert.Contains(t, out, "http://example.org/hotel#nearestCity")
	assert.Contains(t, out, "Saved ")

	files, err := filepath.Glob(filepath.Join(cfg.Mediator.AlignmentDir, "alignment-*.ttl"))
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
