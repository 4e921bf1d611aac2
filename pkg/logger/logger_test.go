package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestLogRequest(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf, Service: "mediator"})

	log.LogRequest("POST", "/submit_request", 502, 15*time.Millisecond)
	log.LogRequest("GET", "/health", 200, time.Millisecond)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "error", entries[0]["level"])
	assert.Equal(t, "mediator", entries[0]["service"])
	assert.Equal(t, "/submit_request", entries[0]["path"])
	assert.EqualValues(t, 502, entries[0]["status"])
	assert.Equal(t, "info", entries[1]["level"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf})

	log.LogProviderCall("fetch_rdg", "http://provider/rdg", time.Millisecond, nil)
	assert.Empty(t, buf.String())

	log.LogProviderCall("fetch_rdg", "http://provider/rdg", time.Millisecond, errors.New("refused"))
	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "refused", entries[0]["error"])
	assert.Equal(t, "rdgmed", entries[0]["service"])
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Output: &buf}).Component("catalog")

	log.Info().Int("offerings", 3).Msg("catalog loaded")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "catalog", entries[0]["component"])
	assert.EqualValues(t, 3, entries[0]["offerings"])
}

func TestNop(t *testing.T) {
	assert.NotPanics(t, func() {
		Nop().LogServerStart("provider", ":8000")
	})
}
