package port

import "github.com/cd8875/clinical-ai-assistant/internal/domain"

type FileWalker interface {
	Walk(root string) ([]FileInfo, error)
}

type FileInfo struct {
	Path    string
	ModTime int64
	Size    int64
}

// DocumentParser turns a file on disk into plain text plus extracted metadata.
type DocumentParser interface {
	Parse(path string) (domain.ParsedDocument, error)
}
