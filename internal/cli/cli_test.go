package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

func runCLI(t *testing.T, dir string, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--dir", dir, "--log-level", "error"))
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestCLI_IngestSearchDelete(t *testing.T) {
	dir := t.TempDir()

	out := runCLI(t, dir, "ingest", "--text", "Patient started on metformin 500mg BID. HbA1c 7.2%.", "--id", "note-1", "--meta", "ward=icu", "--json")
	var inserted struct {
		DocumentID  string `json:"document_id"`
		ChunksAdded int    `json:"chunks_added"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &inserted))
	assert.Equal(t, "note-1", inserted.DocumentID)
	assert.Equal(t, 1, inserted.ChunksAdded)

	out = runCLI(t, dir, "search", "-q", "metformin dose", "--json")
	var hits []searchHit
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "note-1", hits[0].DocumentID)
	assert.Equal(t, "icu", hits[0].Metadata["ward"])

	out = runCLI(t, dir, "stats", "--json")
	var stats domain.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, []string{"note-1"}, stats.DocumentIDs)

	out = runCLI(t, dir, "ask", "-q", "What dose of metformin?", "--prompt-only")
	assert.Contains(t, out, "metformin 500mg")

	out = runCLI(t, dir, "delete", "note-1")
	assert.Contains(t, out, "Deleted note-1")

	out = runCLI(t, dir, "stats", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 0, stats.DocumentCount)
	assert.Equal(t, 1, stats.ChunkCount, "vectors stay until rebuild")
}

func TestCLI_EntitiesFromText(t *testing.T) {
	out := runCLI(t, t.TempDir(), "entities", "--text", "Taking lisinopril 10mg daily, BP 150/95, pulse 88 bpm", "--json")
	var entities []domain.Entity
	require.NoError(t, json.Unmarshal([]byte(out), &entities))
	require.NotEmpty(t, entities)

	labels := make(map[domain.Label]bool)
	for _, e := range entities {
		labels[e.Label] = true
	}
	assert.True(t, labels[domain.LabelMedication])
	assert.True(t, labels[domain.LabelLabValue])
	assert.True(t, labels[domain.LabelVitalSigns])
}
