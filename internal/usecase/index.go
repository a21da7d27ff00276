package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cd8875/clinical-ai-assistant/internal/adapter/store"
	"github.com/cd8875/clinical-ai-assistant/internal/domain"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
)

// IndexUseCase handles document indexing and retrieval.
type IndexUseCase struct {
	store    *store.VectorStore
	chunker  port.Chunker
	embedder port.Embedder
	retry    RetryPolicy
	logger   *zap.Logger
	now      func() time.Time

	rebuildMu sync.Mutex
}

// NewIndexUseCase creates a new index use case.
func NewIndexUseCase(
	vs *store.VectorStore,
	chunker port.Chunker,
	embedder port.Embedder,
	retry RetryPolicy,
	logger *zap.Logger,
) *IndexUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexUseCase{
		store:    vs,
		chunker:  chunker,
		embedder: embedder,
		retry:    retry,
		logger:   logger,
		now:      time.Now,
	}
}

// InsertResult contains the results of an insert.
type InsertResult struct {
	DocumentID  string `json:"document_id"`
	ChunksAdded int    `json:"chunks_added"`
}

// Insert chunks and embeds text and adds every chunk to the index. Either
// all chunks are committed or none are.
func (u *IndexUseCase) Insert(ctx context.Context, documentID, text string, metadata domain.Metadata) (*InsertResult, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: empty document id", domain.ErrUnsupportedInput)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: document %s has no text", domain.ErrUnsupportedInput, documentID)
	}

	pieces := u.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%w: document %s produced no chunks", domain.ErrUnsupportedInput, documentID)
	}

	vectors, err := u.embed(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("failed to embed document %s: %w", documentID, err)
	}

	indexedAt := u.now().UTC()
	chunks := buildChunks(documentID, pieces, vectors, metadata)

	docMeta := copyMetadata(metadata)
	docMeta[domain.MetaChunkCount] = len(chunks)
	docMeta[domain.MetaIndexedAt] = indexedAt.Format(time.RFC3339)

	doc := domain.Document{
		ID:        documentID,
		Text:      text,
		Metadata:  docMeta,
		IndexedAt: indexedAt,
	}
	if err := u.store.Add(doc, chunks); err != nil {
		return nil, err
	}

	u.logger.Info("document indexed",
		zap.String("document_id", documentID),
		zap.Int("chunks", len(chunks)))

	return &InsertResult{DocumentID: documentID, ChunksAdded: len(chunks)}, nil
}

// Search returns up to k chunks whose metadata satisfies filter.
func (u *IndexUseCase) Search(ctx context.Context, query string, k int, filter domain.Filter) ([]domain.SearchResult, error) {
	var match func(domain.Chunk) bool
	if len(filter) > 0 {
		match = func(c domain.Chunk) bool { return filter.Matches(c.Metadata) }
	}
	return u.search(ctx, query, k, match)
}

// SearchByDocuments restricts the search to chunks of any of ids. An empty
// id list searches everything.
func (u *IndexUseCase) SearchByDocuments(ctx context.Context, query string, ids []string, k int) ([]domain.SearchResult, error) {
	if len(ids) == 0 {
		return u.search(ctx, query, k, nil)
	}
	allowed := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		allowed[id] = struct{}{}
	}
	return u.search(ctx, query, k, func(c domain.Chunk) bool {
		_, ok := allowed[c.DocumentID]
		return ok
	})
}

func (u *IndexUseCase) search(ctx context.Context, query string, k int, match func(domain.Chunk) bool) ([]domain.SearchResult, error) {
	if u.store.Stats().ChunkCount == 0 || k <= 0 {
		return []domain.SearchResult{}, nil
	}
	vectors, err := u.embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return u.store.Search(vectors[0], k, match)
}

// GetChunks returns the chunk texts of a document in chunk order. Unknown
// documents yield an empty slice.
func (u *IndexUseCase) GetChunks(documentID string) []string {
	chunks := u.store.Chunks(documentID)
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	return texts
}

// Delete removes the document's metadata. Its vectors remain searchable
// until Rebuild.
func (u *IndexUseCase) Delete(documentID string) error {
	if err := u.store.DeleteDocument(documentID); err != nil {
		return err
	}
	u.logger.Info("document deleted", zap.String("document_id", documentID))
	return nil
}

func (u *IndexUseCase) Stats() domain.Stats {
	return u.store.Stats()
}

// Document returns the stored text and metadata of a live document.
func (u *IndexUseCase) Document(documentID string) (domain.Document, error) {
	meta, ok := u.store.Document(documentID)
	if !ok {
		return domain.Document{}, fmt.Errorf("document %s: %w", documentID, domain.ErrNotFound)
	}
	text, err := u.store.DocumentText(documentID)
	if err != nil {
		return domain.Document{}, err
	}
	doc := domain.Document{ID: documentID, Text: text, Metadata: meta}
	if s, ok := meta[domain.MetaIndexedAt].(string); ok {
		doc.IndexedAt, _ = time.Parse(time.RFC3339, s)
	}
	return doc, nil
}

// RebuildResult contains the results of a rebuild.
type RebuildResult struct {
	Documents     int `json:"documents"`
	Chunks        int `json:"chunks"`
	DroppedChunks int `json:"dropped_chunks"`
}

// Rebuild re-chunks and re-embeds every live document from its stored text
// and swaps the vector set in one step, dropping vectors of deleted
// documents. Documents inserted while the rebuild runs keep their vectors.
// progress, when set, is called once per document.
func (u *IndexUseCase) Rebuild(ctx context.Context, progress func(documentID string)) (*RebuildResult, error) {
	u.rebuildMu.Lock()
	defer u.rebuildMu.Unlock()

	mark := u.store.Mark()

	var all []domain.Chunk
	for _, doc := range mark.Documents {
		text, err := u.store.DocumentText(doc.ID)
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted since the mark.
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load text of %s: %w", doc.ID, err)
		}

		pieces := u.chunker.Split(text)
		if len(pieces) > 0 {
			vectors, err := u.embed(ctx, pieces)
			if err != nil {
				return nil, fmt.Errorf("failed to embed document %s: %w", doc.ID, err)
			}
			for _, c := range buildChunks(doc.ID, pieces, vectors, callerMetadata(doc.Metadata)) {
				c.Generation = doc.Generation
				all = append(all, c)
			}
		}
		if progress != nil {
			progress(doc.ID)
		}
	}

	if err := u.store.Replace(mark, all); err != nil {
		return nil, err
	}

	result := &RebuildResult{
		Documents:     len(mark.Documents),
		Chunks:        len(all),
		DroppedChunks: max(mark.Chunks()-len(all), 0),
	}
	u.logger.Info("index rebuilt",
		zap.Int("documents", result.Documents),
		zap.Int("chunks", result.Chunks),
		zap.Int("previous_chunks", mark.Chunks()))
	return result, nil
}

func (u *IndexUseCase) embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := retryProvider(ctx, u.retry, u.logger, "embed", func(ctx context.Context) ([][]float32, error) {
		return u.embedder.Embed(ctx, texts)
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrProviderFailure, len(texts), len(vectors))
	}
	return vectors, nil
}

// buildChunks attaches caller metadata to every chunk. The system keys
// document_id, chunk_index and chunk_total always win over caller keys.
func buildChunks(documentID string, pieces []string, vectors [][]float32, metadata domain.Metadata) []domain.Chunk {
	chunks := make([]domain.Chunk, len(pieces))
	for i, text := range pieces {
		meta := copyMetadata(metadata)
		meta[domain.MetaDocumentID] = documentID
		meta[domain.MetaChunkIndex] = i
		meta[domain.MetaChunkTotal] = len(pieces)
		chunks[i] = domain.Chunk{
			DocumentID: documentID,
			Index:      i,
			Total:      len(pieces),
			Text:       text,
			Vector:     vectors[i],
			Metadata:   meta,
		}
	}
	return chunks
}

// callerMetadata strips the system fields stored on a document.
func callerMetadata(meta domain.Metadata) domain.Metadata {
	out := copyMetadata(meta)
	delete(out, domain.MetaChunkCount)
	delete(out, domain.MetaIndexedAt)
	delete(out, domain.MetaGeneration)
	return out
}

func copyMetadata(meta domain.Metadata) domain.Metadata {
	out := make(domain.Metadata, len(meta)+3)
	for k, v := range meta {
		out[k] = v
	}
	return out
}
