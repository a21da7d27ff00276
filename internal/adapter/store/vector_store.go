package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
)

// VectorStore is the searchable index: every chunk in insertion order plus
// the document metadata map, guarded by one RWMutex. Mutations persist
// through the IndexStore before the in-memory state changes.
//
// Deleting a document only removes its metadata. Its vectors stay
// searchable until Replace swaps in a rebuilt set.
//
// Every Add stamps its chunks with a fresh generation, recorded on the
// document under domain.MetaGeneration.
type VectorStore struct {
	persist port.IndexStore
	logger  *zap.Logger

	mu             sync.RWMutex
	chunks         []domain.Chunk
	documents      map[string]domain.Metadata
	dimension      int
	nextGeneration int64
	epoch          uint64
}

// MarkedDocument is a live document as seen by Mark.
type MarkedDocument struct {
	ID         string
	Generation int64
	Metadata   domain.Metadata
}

// RebuildMark pins the vector set a rebuild started from. Chunks added
// after the mark survive the Replace that consumes it.
type RebuildMark struct {
	epoch     uint64
	length    int
	Documents []MarkedDocument
}

// NewVectorStore loads the persisted index. Unreadable vectors or metadata
// are logged and replaced by an empty set; loading never fails.
func NewVectorStore(persist port.IndexStore, logger *zap.Logger) *VectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &VectorStore{
		persist:   persist,
		logger:    logger,
		documents: make(map[string]domain.Metadata),
	}

	chunks, err := persist.LoadChunks()
	if err != nil {
		logger.Warn("vector store unreadable, starting with empty vectors; run rebuild to re-embed stored documents",
			zap.Error(err))
		if errors.Is(err, domain.ErrStoreCorrupt) {
			if resetErr := persist.ReplaceChunks(nil); resetErr != nil {
				logger.Error("failed to reset vector store", zap.Error(resetErr))
			}
		}
		chunks = nil
	}

	docs, err := persist.LoadDocuments()
	if err != nil {
		logger.Warn("document metadata unreadable, starting with empty metadata", zap.Error(err))
		if errors.Is(err, domain.ErrStoreCorrupt) {
			if resetErr := persist.ResetDocuments(); resetErr != nil {
				logger.Error("failed to reset document metadata", zap.Error(resetErr))
			}
		}
		docs = nil
	}

	s.chunks = chunks
	for id, meta := range docs {
		s.documents[id] = meta
	}
	if len(chunks) > 0 {
		s.dimension = len(chunks[0].Vector)
	}
	var maxGen int64
	for _, c := range chunks {
		if c.Generation > maxGen {
			maxGen = c.Generation
		}
	}
	for _, meta := range s.documents {
		if g := Generation(meta); g > maxGen {
			maxGen = g
		}
	}
	s.nextGeneration = maxGen + 1

	logger.Debug("vector store loaded",
		zap.Int("documents", len(s.documents)),
		zap.Int("chunks", len(s.chunks)))
	return s
}

// Add persists and appends a document's chunks. Every chunk must carry a
// vector of the index dimensionality. On error nothing is committed.
func (s *VectorStore) Add(doc domain.Document, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	for _, c := range chunks {
		if dim == 0 {
			dim = len(c.Vector)
		}
		if len(c.Vector) == 0 || len(c.Vector) != dim {
			return fmt.Errorf("%w: expected %d, got %d for %s/%d", domain.ErrDimensionMismatch, dim, len(c.Vector), c.DocumentID, c.Index)
		}
	}

	gen := s.nextGeneration
	stamped := make([]domain.Chunk, len(chunks))
	for i, c := range chunks {
		c.Generation = gen
		stamped[i] = c
	}
	meta := make(domain.Metadata, len(doc.Metadata)+1)
	for k, v := range doc.Metadata {
		meta[k] = v
	}
	meta[domain.MetaGeneration] = gen
	doc.Metadata = meta

	if err := s.persist.PutDocument(doc, stamped); err != nil {
		return fmt.Errorf("failed to persist document %s: %w", doc.ID, err)
	}

	s.chunks = append(s.chunks, stamped...)
	s.documents[doc.ID] = meta
	s.dimension = dim
	s.nextGeneration++
	return nil
}

// Search returns up to k chunks accepted by match, by descending similarity.
// Equal similarities keep insertion order. A nil match accepts every chunk.
func (s *VectorStore) Search(query []float32, k int, match func(domain.Chunk) bool) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 || k <= 0 {
		return []domain.SearchResult{}, nil
	}
	if len(query) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", domain.ErrDimensionMismatch, len(query), s.dimension)
	}

	q := normalize(query)
	results := make([]domain.SearchResult, 0, len(s.chunks))
	for _, c := range s.chunks {
		if match != nil && !match(c) {
			continue
		}
		results = append(results, domain.SearchResult{Chunk: c, Similarity: similarity(q, c.Vector)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Chunks returns the chunks of documentID's current generation ordered by
// chunk index. For a deleted document that is its newest generation.
func (s *VectorStore) Chunks(documentID string) []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []domain.Chunk
	var newest int64
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			all = append(all, c)
			if c.Generation > newest {
				newest = c.Generation
			}
		}
	}
	gen := newest
	if meta, ok := s.documents[documentID]; ok {
		gen = Generation(meta)
	}

	var out []domain.Chunk
	for _, c := range all {
		if c.Generation == gen {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out
}

// DeleteDocument removes the document's metadata. Its vectors are kept.
func (s *VectorStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	if err := s.persist.DeleteDocument(id); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to persist deletion of %s: %w", id, err)
	}
	delete(s.documents, id)
	return nil
}

// Chunks is the size of the vector set when the mark was taken.
func (m RebuildMark) Chunks() int {
	return m.length
}

// Mark snapshots the live documents and the current end of the vector set.
func (s *VectorStore) Mark() RebuildMark {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mark := RebuildMark{epoch: s.epoch, length: len(s.chunks)}
	for _, id := range s.documentIDs() {
		meta := s.documents[id]
		copied := make(domain.Metadata, len(meta))
		for k, v := range meta {
			copied[k] = v
		}
		mark.Documents = append(mark.Documents, MarkedDocument{ID: id, Generation: Generation(meta), Metadata: copied})
	}
	return mark
}

// Replace swaps the vector set for chunks plus every chunk added since
// mark was taken. It fails when another Replace ran after mark.
func (s *VectorStore) Replace(mark RebuildMark, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mark.epoch != s.epoch || mark.length > len(s.chunks) {
		return fmt.Errorf("vector set was replaced after the rebuild started")
	}
	merged := make([]domain.Chunk, 0, len(chunks)+len(s.chunks)-mark.length)
	merged = append(merged, chunks...)
	merged = append(merged, s.chunks[mark.length:]...)
	chunks = merged

	dim := 0
	for _, c := range chunks {
		if dim == 0 {
			dim = len(c.Vector)
		}
		if len(c.Vector) == 0 || len(c.Vector) != dim {
			return fmt.Errorf("%w: expected %d, got %d for %s/%d", domain.ErrDimensionMismatch, dim, len(c.Vector), c.DocumentID, c.Index)
		}
	}

	if err := s.persist.ReplaceChunks(chunks); err != nil {
		return fmt.Errorf("failed to persist rebuilt vectors: %w", err)
	}
	s.chunks = chunks
	s.dimension = dim
	s.epoch++
	return nil
}

// Document returns the metadata of a live document.
func (s *VectorStore) Document(id string) (domain.Metadata, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	meta, ok := s.documents[id]
	return meta, ok
}

// DocumentText returns the stored source text of a live document.
func (s *VectorStore) DocumentText(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.documents[id]; !ok {
		return "", fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return s.persist.DocumentText(id)
}

// DocumentIDs returns the live document ids, sorted.
func (s *VectorStore) DocumentIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.documentIDs()
}

func (s *VectorStore) documentIDs() []string {
	ids := make([]string, 0, len(s.documents))
	for id := range s.documents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stats counts live documents and every physically present chunk.
func (s *VectorStore) Stats() domain.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Stats{
		DocumentCount: len(s.documents),
		ChunkCount:    len(s.chunks),
		DocumentIDs:   s.documentIDs(),
	}
}

func (s *VectorStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}

// Generation reads domain.MetaGeneration from document metadata. Values
// decoded from JSON arrive as float64. Missing means 0.
func Generation(meta domain.Metadata) int64 {
	switch g := meta[domain.MetaGeneration].(type) {
	case int64:
		return g
	case int:
		return int64(g)
	case float64:
		return int64(g)
	case json.Number:
		n, _ := g.Int64()
		return n
	}
	return 0
}

func normalize(v []float32) []float64 {
	out := make([]float64, len(v))
	var n float64
	for i, x := range v {
		out[i] = float64(x)
		n += out[i] * out[i]
	}
	if n == 0 {
		return out
	}
	n = math.Sqrt(n)
	for i := range out {
		out[i] /= n
	}
	return out
}

// similarity is 1 - d²/2 for the squared euclidean distance d² of the two
// L2-normalised vectors, clamped to [0,1]. A zero vector scores 0.
func similarity(q []float64, v []float32) float64 {
	u := normalize(v)
	var d2 float64
	var qn, un float64
	for i := range q {
		diff := q[i] - u[i]
		d2 += diff * diff
		qn += q[i] * q[i]
		un += u[i] * u[i]
	}
	if qn == 0 || un == 0 {
		return 0
	}
	sim := 1 - d2/2
	switch {
	case sim < 0:
		return 0
	case sim > 1:
		return 1
	}
	return sim
}
