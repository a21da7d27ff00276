package domain

import (
	"fmt"
	"time"
)

// Metadata is caller-supplied key/value data attached to documents and chunks.
type Metadata map[string]any

// System metadata keys written on every chunk.
const (
	MetaDocumentID = "document_id"
	MetaChunkIndex = "chunk_index"
	MetaChunkTotal = "chunk_total"
)

// System metadata keys written on every document.
const (
	MetaChunkCount = "chunk_count"
	MetaIndexedAt  = "indexed_at"
	MetaGeneration = "generation"
)

type Document struct {
	ID        string
	Text      string
	Metadata  Metadata
	IndexedAt time.Time
}

type Chunk struct {
	DocumentID string    `json:"document_id"`
	Index      int       `json:"chunk_index"`
	Total      int       `json:"chunk_total"`
	Text       string    `json:"text"`
	Vector     []float32 `json:"vector"`
	Metadata   Metadata  `json:"metadata,omitempty"`
	// Generation identifies the insert that produced the chunk. Chunks of
	// one document from different inserts never mix in Chunks.
	Generation int64 `json:"generation,omitempty"`
}

type SearchResult struct {
	Chunk      Chunk
	Similarity float64
}

// Filter is a conjunction of metadata equality constraints.
// Values are compared by their printed form so that numbers survive a JSON round trip.
type Filter map[string]any

// Matches reports whether m satisfies every pair in f. An empty filter matches all.
func (f Filter) Matches(m Metadata) bool {
	for k, want := range f {
		got, ok := m[k]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

type Stats struct {
	DocumentCount int      `json:"document_count"`
	ChunkCount    int      `json:"chunk_count"`
	DocumentIDs   []string `json:"document_ids"`
}

type Source struct {
	DocumentID string  `json:"document_id"`
	ChunkID    int     `json:"chunk_id"`
	Similarity float64 `json:"similarity"`
	Excerpt    string  `json:"excerpt"`
}

type AnswerContext struct {
	Answer     string   `json:"answer,omitempty"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	Context    string   `json:"context"`
}

type Answer struct {
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Sources    []Source `json:"sources"`
	Confidence float64  `json:"confidence"`
	NumSources int      `json:"num_sources"`
	Entities   []Entity `json:"entities"`
}

type Label string

const (
	LabelMedication Label = "MEDICATION"
	LabelLabValue   Label = "LAB_VALUE"
	LabelVitalSigns Label = "VITAL_SIGNS"
	LabelDiagnosis  Label = "DIAGNOSIS"
	LabelProcedure  Label = "PROCEDURE"
	LabelSymptom    Label = "SYMPTOM"
)

// Entity is a labelled span of source text. Start and End are character offsets, End exclusive.
type Entity struct {
	Text       string  `json:"text"`
	Label      Label   `json:"label"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Confidence float64 `json:"confidence"`
}

// Overlaps reports whether the [Start,End) intervals of e and o intersect.
func (e Entity) Overlaps(o Entity) bool {
	return e.Start < o.End && o.Start < e.End
}

type StructuredEntity struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

type SummaryMode string

const (
	SummaryComprehensive SummaryMode = "comprehensive"
	SummaryBrief         SummaryMode = "brief"
)

type Summary struct {
	DocumentID     string        `json:"document_id"`
	Mode           SummaryMode   `json:"mode"`
	Summary        string        `json:"summary"`
	KeyFindings    []string      `json:"key_findings"`
	Entities       []Entity      `json:"entities"`
	Confidence     float64       `json:"confidence_score"`
	ProcessingTime time.Duration `json:"processing_time"`
}

// ParsedDocument is the output of a document parser: cleaned text plus extracted metadata.
type ParsedDocument struct {
	Text     string
	Metadata Metadata
}
