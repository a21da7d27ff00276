package port

// Chunker splits document text into ordered, non-empty segments.
type Chunker interface {
	Split(text string) []string
}
