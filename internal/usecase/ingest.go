package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
)

// IngestUseCase parses report files from disk and inserts them.
type IngestUseCase struct {
	index  *IndexUseCase
	walker port.FileWalker
	parser port.DocumentParser
	logger *zap.Logger
	newID  func() string
}

func NewIngestUseCase(index *IndexUseCase, walker port.FileWalker, parser port.DocumentParser, logger *zap.Logger) *IngestUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		index:  index,
		walker: walker,
		parser: parser,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// IngestFailure records a file that could not be ingested.
type IngestFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// IngestResult contains the results of a bulk ingest.
type IngestResult struct {
	Inserted []InsertResult  `json:"inserted"`
	Failed   []IngestFailure `json:"failed"`
}

// Collect expands files and directories into the report files to ingest,
// de-duplicated and sorted by path.
func (u *IngestUseCase) Collect(paths []string) ([]port.FileInfo, error) {
	seen := make(map[string]struct{})
	var files []port.FileInfo
	for _, p := range paths {
		found, err := u.walker.Walk(p)
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
		for _, f := range found {
			if _, ok := seen[f.Path]; ok {
				continue
			}
			seen[f.Path] = struct{}{}
			files = append(files, f)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// IngestFile parses and inserts one file. An empty id gets a random UUID.
// extra is merged over the parsed metadata.
func (u *IngestUseCase) IngestFile(ctx context.Context, file port.FileInfo, id string, extra domain.Metadata) (*InsertResult, error) {
	parsed, err := u.parser.Parse(file.Path)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = u.newID()
	}
	meta := copyMetadata(parsed.Metadata)
	meta["source_path"] = file.Path
	for k, v := range extra {
		meta[k] = v
	}
	return u.index.Insert(ctx, id, parsed.Text, meta)
}

// IngestAll ingests every file. Per-file failures are collected; only
// context cancellation stops the run. progress, when set, is called after
// each file.
func (u *IngestUseCase) IngestAll(ctx context.Context, files []port.FileInfo, extra domain.Metadata, progress func(file port.FileInfo)) (*IngestResult, error) {
	result := &IngestResult{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		inserted, err := u.IngestFile(ctx, f, "", extra)
		if err != nil {
			u.logger.Warn("failed to ingest file", zap.String("path", f.Path), zap.Error(err))
			result.Failed = append(result.Failed, IngestFailure{Path: f.Path, Error: err.Error()})
		} else {
			result.Inserted = append(result.Inserted, *inserted)
		}
		if progress != nil {
			progress(f)
		}
	}
	return result, nil
}
