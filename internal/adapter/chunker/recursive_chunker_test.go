package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

// numberedWords returns n unique words of the form w0000.
func numberedWords(n int) []string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%04d", i)
	}
	return words
}

func TestRecursiveChunkerLongDocument(t *testing.T) {
	c := NewRecursiveChunker(1000, 200)

	text := strings.Repeat("abcd ", 500)
	if len(text) != 2500 {
		t.Fatalf("expected 2500 characters, got %d", len(text))
	}

	chunks := c.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > 1000 {
			t.Errorf("chunk %d has %d characters, limit 1000", i, utf8.RuneCountInString(chunk))
		}
	}
}

func TestRecursiveChunkerShortText(t *testing.T) {
	c := NewRecursiveChunker(1000, 200)

	content := "Patient presents with mild chest pain.\n\nNo prior history."
	chunks := c.Split(content)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for short text, got %d", len(chunks))
	}
	if chunks[0] != content {
		t.Errorf("expected chunk text to match content, got %q", chunks[0])
	}
}

func TestRecursiveChunkerEmptyContent(t *testing.T) {
	c := NewRecursiveChunker(1000, 200)

	if chunks := c.Split(""); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for empty content, got %d", len(chunks))
	}
	if chunks := c.Split(" \n\n \t"); len(chunks) != 0 {
		t.Errorf("expected 0 chunks for whitespace content, got %d", len(chunks))
	}
}

func TestRecursiveChunkerCoverageAndOrder(t *testing.T) {
	c := NewRecursiveChunker(120, 30)

	words := numberedWords(300)
	text := strings.Join(words, " ")
	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}

	seen := make(map[string]bool)
	var merged []string
	for i, chunk := range chunks {
		if chunk == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if n := utf8.RuneCountInString(chunk); n > 120 {
			t.Errorf("chunk %d has %d characters, limit 120", i, n)
		}
		for _, w := range strings.Fields(chunk) {
			if !seen[w] {
				seen[w] = true
				merged = append(merged, w)
			}
		}
	}

	if len(merged) != len(words) {
		t.Fatalf("expected %d words after merge, got %d", len(words), len(merged))
	}
	for i := range words {
		if merged[i] != words[i] {
			t.Fatalf("word %d out of order: expected %s, got %s", i, words[i], merged[i])
		}
	}
}

func TestRecursiveChunkerOverlap(t *testing.T) {
	c := NewRecursiveChunker(120, 30)

	chunks := c.Split(strings.Join(numberedWords(100), " "))
	if len(chunks) < 2 {
		t.Fatalf("expected at least 2 chunks, got %d", len(chunks))
	}

	for i := 0; i < len(chunks)-1; i++ {
		first := strings.Fields(chunks[i+1])[0]
		if !strings.Contains(chunks[i], first) {
			t.Errorf("no overlap between chunk %d and chunk %d (next starts with %s)", i, i+1, first)
		}
	}
}

func TestRecursiveChunkerPrefersParagraphs(t *testing.T) {
	c := NewRecursiveChunker(60, 0)

	para1 := "History: type 2 diabetes diagnosed in 2015."
	para2 := "Plan: continue metformin and review in 3 months."
	chunks := c.Split(para1 + "\n\n" + para2)

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != para1 || chunks[1] != para2 {
		t.Errorf("expected paragraph-aligned chunks, got %q", chunks)
	}
}

func TestRecursiveChunkerNoSeparators(t *testing.T) {
	c := NewRecursiveChunker(100, 20)

	chunks := c.Split(strings.Repeat("x", 250))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk %d has %d characters, limit 100", i, len(chunk))
		}
	}
}

func TestRecursiveChunkerMultibyte(t *testing.T) {
	c := NewRecursiveChunker(10, 0)

	chunks := c.Split(strings.Repeat("é", 25))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if n := utf8.RuneCountInString(chunks[0]); n != 10 {
		t.Errorf("expected 10 characters in first chunk, got %d", n)
	}
}

func TestRecursiveChunkerDeterministic(t *testing.T) {
	c := NewRecursiveChunker(80, 20)
	text := strings.Join(numberedWords(60), " ") + ".\n" + strings.Join(numberedWords(40), " ")

	a := c.Split(text)
	b := c.Split(text)
	if len(a) != len(b) {
		t.Fatalf("expected identical chunk counts, got %d and %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk %d differs between runs", i)
		}
	}
}

func TestNewRecursiveChunkerClampsOverlap(t *testing.T) {
	c := NewRecursiveChunker(100, 150)
	if c.Overlap() != 25 {
		t.Errorf("expected overlap clamped to 25, got %d", c.Overlap())
	}

	c = NewRecursiveChunker(0, -1)
	if c.ChunkSize() != DefaultChunkSize {
		t.Errorf("expected default chunk size %d, got %d", DefaultChunkSize, c.ChunkSize())
	}
	if c.Overlap() != 0 {
		t.Errorf("expected overlap 0, got %d", c.Overlap())
	}
}
