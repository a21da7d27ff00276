package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/cd8875/clinical-ai-assistant/config"
)

// CurrentSchemaVersion is bumped on breaking changes to the bucket layout
// or record encoding.
const CurrentSchemaVersion = 1

var keySchema = []byte("schema")

// SchemaInfo records which layout and which index settings produced the
// stored vectors.
type SchemaInfo struct {
	Version       int       `json:"version"`
	ChunkingHash  string    `json:"chunking_hash"`
	EmbeddingHash string    `json:"embedding_hash"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (s *BoltStore) readSchema() (SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}
		v := b.Get(keySchema)
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &info); err != nil {
			return fmt.Errorf("invalid schema record: %w", err)
		}
		return nil
	})
	return info, err
}

func (s *BoltStore) writeSchema(info SchemaInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		return b.Put(keySchema, data)
	})
}

func chunkingHash(cfg *config.Config) string {
	return shortHash(struct {
		Size    int `json:"size"`
		Overlap int `json:"overlap"`
	}{cfg.Index.ChunkSize, cfg.Index.ChunkOverlap})
}

func embeddingHash(cfg *config.Config) string {
	return shortHash(struct {
		Provider  string `json:"provider"`
		Model     string `json:"model"`
		Dimension int    `json:"dimension"`
	}{cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimension})
}

func shortHash(v any) string {
	data, _ := json.Marshal(v)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// MigrationResult describes what the stored index needs before use.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration compares the stored schema record with the running
// configuration.
func (s *BoltStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	info, err := s.readSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to read schema info: %w", err)
	}

	result := &MigrationResult{OldVersion: info.Version, NewVersion: CurrentSchemaVersion}
	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
		return result, nil
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("index written by a newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	}

	switch {
	case info.EmbeddingHash != embeddingHash(cfg):
		result.NeedsRebuild = true
		result.Reason = "embedding configuration changed"
	case info.ChunkingHash != chunkingHash(cfg):
		result.NeedsRebuild = true
		result.Reason = "chunking configuration changed"
	}
	return result, nil
}

// Migrate records the current schema version and index settings.
func (s *BoltStore) Migrate(cfg *config.Config) error {
	return s.writeSchema(SchemaInfo{
		Version:       CurrentSchemaVersion,
		ChunkingHash:  chunkingHash(cfg),
		EmbeddingHash: embeddingHash(cfg),
		UpdatedAt:     time.Now().UTC(),
	})
}

// NeedsRebuild reports whether stored vectors were produced with other
// settings than cfg.
func (s *BoltStore) NeedsRebuild(cfg *config.Config) (bool, string, error) {
	result, err := s.CheckMigration(cfg)
	if err != nil {
		return false, "", err
	}
	return result.NeedsRebuild, result.Reason, nil
}
