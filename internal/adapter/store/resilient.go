package store

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"
)

// OpenResilient opens the bbolt file at path. A file that bbolt cannot open
// is moved aside to <path>.corrupt-<unix> and a fresh store is created in
// its place. A lock timeout is returned as is.
func OpenResilient(path string, logger *zap.Logger) (*BoltStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := NewBoltStore(path)
	if err == nil {
		return st, nil
	}
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, fmt.Errorf("index is locked by another process: %w", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return nil, err
	}

	quarantine := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
	logger.Warn("index store unreadable, starting with an empty index",
		zap.String("path", path),
		zap.String("quarantine", quarantine),
		zap.Error(err))

	if renameErr := os.Rename(path, quarantine); renameErr != nil {
		logger.Error("failed to quarantine index store", zap.Error(renameErr))
		return nil, err
	}

	st, err = NewBoltStore(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fresh store after quarantine: %w", err)
	}
	return st, nil
}
