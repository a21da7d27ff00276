package store

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
)

var (
	bucketVectors   = []byte("vectors")
	bucketDocuments = []byte("documents")
	bucketTexts     = []byte("texts")
	bucketMeta      = []byte("meta")
)

// BoltStore persists the index in a single bbolt file. Vector records are
// keyed by a monotonically increasing sequence so iteration order is
// insertion order.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

var _ port.IndexStore = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketVectors, bucketDocuments, bucketTexts, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db, path: path}, nil
}

func (s *BoltStore) Path() string {
	return s.path
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func (s *BoltStore) PutDocument(doc domain.Document, chunks []domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta, err := json.Marshal(doc.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata for %s: %w", doc.ID, err)
		}
		if err := tx.Bucket(bucketDocuments).Put([]byte(doc.ID), meta); err != nil {
			return err
		}
		if err := tx.Bucket(bucketTexts).Put([]byte(doc.ID), []byte(doc.Text)); err != nil {
			return err
		}
		return putChunks(tx.Bucket(bucketVectors), chunks)
	})
}

func putChunks(b *bbolt.Bucket, chunks []domain.Chunk) error {
	for _, chunk := range chunks {
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		data, err := json.Marshal(chunk)
		if err != nil {
			return fmt.Errorf("failed to encode chunk %s/%d: %w", chunk.DocumentID, chunk.Index, err)
		}
		if err := b.Put(seqKey(seq), data); err != nil {
			return err
		}
	}
	return nil
}

// LoadChunks returns every persisted chunk in insertion order.
func (s *BoltStore) LoadChunks() ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketVectors)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var chunk domain.Chunk
			if err := json.Unmarshal(v, &chunk); err != nil {
				return fmt.Errorf("%w: vector record %x: %v", domain.ErrStoreCorrupt, k, err)
			}
			chunks = append(chunks, chunk)
			return nil
		})
	})
	return chunks, err
}

func (s *BoltStore) LoadDocuments() (map[string]domain.Metadata, error) {
	docs := make(map[string]domain.Metadata)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var meta domain.Metadata
			if err := json.Unmarshal(v, &meta); err != nil {
				return fmt.Errorf("%w: document %s: %v", domain.ErrStoreCorrupt, k, err)
			}
			if meta == nil {
				meta = domain.Metadata{}
			}
			docs[string(k)] = meta
			return nil
		})
	})
	return docs, err
}

func (s *BoltStore) DeleteDocument(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		docs := tx.Bucket(bucketDocuments)
		if docs.Get([]byte(id)) == nil {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		if err := docs.Delete([]byte(id)); err != nil {
			return err
		}
		return tx.Bucket(bucketTexts).Delete([]byte(id))
	})
}

func (s *BoltStore) DocumentText(id string) (string, error) {
	var text string
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTexts).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("document %s: %w", id, domain.ErrNotFound)
		}
		text = string(data)
		return nil
	})
	return text, err
}

// ReplaceChunks drops the vector bucket and writes chunks in one transaction.
func (s *BoltStore) ReplaceChunks(chunks []domain.Chunk) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketVectors); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return fmt.Errorf("failed to drop vectors: %w", err)
		}
		b, err := tx.CreateBucket(bucketVectors)
		if err != nil {
			return fmt.Errorf("failed to create vectors bucket: %w", err)
		}
		return putChunks(b, chunks)
	})
}

// ResetDocuments clears the metadata bucket. Used when it cannot be decoded.
func (s *BoltStore) ResetDocuments() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocuments); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(bucketDocuments)
		return err
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
