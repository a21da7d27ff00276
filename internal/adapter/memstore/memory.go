package memstore

import (
	"fmt"
	"sync"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
)

// MemoryStore is a non-durable IndexStore for tests and throwaway sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []domain.Chunk
	docs   map[string]domain.Metadata
	texts  map[string]string
}

var _ port.IndexStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:  make(map[string]domain.Metadata),
		texts: make(map[string]string),
	}
}

func (s *MemoryStore) LoadChunks() ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Chunk(nil), s.chunks...), nil
}

func (s *MemoryStore) LoadDocuments() (map[string]domain.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make(map[string]domain.Metadata, len(s.docs))
	for id, meta := range s.docs {
		docs[id] = meta
	}
	return docs, nil
}

func (s *MemoryStore) PutDocument(doc domain.Document, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc.Metadata
	s.texts[doc.ID] = doc.Text
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *MemoryStore) DeleteDocument(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	delete(s.docs, id)
	delete(s.texts, id)
	return nil
}

func (s *MemoryStore) DocumentText(id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.texts[id]
	if !ok {
		return "", fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
	}
	return text, nil
}

func (s *MemoryStore) ReplaceChunks(chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append([]domain.Chunk(nil), chunks...)
	return nil
}

func (s *MemoryStore) ResetDocuments() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs = make(map[string]domain.Metadata)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
