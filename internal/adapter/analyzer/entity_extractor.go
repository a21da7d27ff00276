package analyzer

import (
	"fmt"
	"regexp"
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

type rule struct {
	label      domain.Label
	re         *regexp.Regexp
	confidence float64
	wholeWord  bool
}

// EntityExtractor runs a compiled catalogue over text. It is immutable after
// construction and safe for concurrent use.
type EntityExtractor struct {
	rules []rule
	keys  []string
	keyOf map[domain.Label]string
}

// NewEntityExtractor compiles the catalogue. Patterns are made case-insensitive.
func NewEntityExtractor(catalogue []Category) (*EntityExtractor, error) {
	x := &EntityExtractor{keyOf: make(map[domain.Label]string, len(catalogue))}

	for _, cat := range catalogue {
		if cat.Label == "" || cat.Key == "" {
			return nil, fmt.Errorf("%w: category needs a label and a key", domain.ErrUnsupportedInput)
		}
		if _, dup := x.keyOf[cat.Label]; dup {
			return nil, fmt.Errorf("%w: duplicate category %s", domain.ErrUnsupportedInput, cat.Label)
		}
		confidence := cat.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = DefaultConfidence
		}
		for _, p := range cat.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				return nil, fmt.Errorf("failed to compile %s pattern %q: %w", cat.Label, p, err)
			}
			x.rules = append(x.rules, rule{label: cat.Label, re: re, confidence: confidence, wholeWord: cat.WholeWord})
		}
		x.keyOf[cat.Label] = cat.Key
		x.keys = append(x.keys, cat.Key)
	}

	return x, nil
}

// NewDefaultEntityExtractor compiles DefaultCatalogue. It panics if a built-in pattern is invalid.
func NewDefaultEntityExtractor() *EntityExtractor {
	x, err := NewEntityExtractor(DefaultCatalogue())
	if err != nil {
		panic(err)
	}
	return x
}

// Extract returns the non-overlapping entities found in text, ordered by start offset.
func (x *EntityExtractor) Extract(text string) []domain.Entity {
	if text == "" {
		return []domain.Entity{}
	}
	offsets := runeOffsets(text)

	var candidates []domain.Entity
	for _, r := range x.rules {
		for _, loc := range r.re.FindAllStringIndex(text, -1) {
			if loc[0] == loc[1] {
				continue
			}
			if r.wholeWord && !wordBounded(text, loc[0], loc[1]) {
				continue
			}
			candidates = append(candidates, domain.Entity{
				Text:       text[loc[0]:loc[1]],
				Label:      r.label,
				Start:      offsets(loc[0]),
				End:        offsets(loc[1]),
				Confidence: r.confidence,
			})
		}
	}

	return ResolveOverlaps(candidates)
}

// ExtractStructured groups the entities of text by category key. Every
// catalogue key is present, even when empty.
func (x *EntityExtractor) ExtractStructured(text string) map[string][]domain.StructuredEntity {
	structured := make(map[string][]domain.StructuredEntity, len(x.keys))
	for _, k := range x.keys {
		structured[k] = []domain.StructuredEntity{}
	}
	for _, e := range x.Extract(text) {
		k := x.keyOf[e.Label]
		structured[k] = append(structured[k], domain.StructuredEntity{
			Text:       e.Text,
			Confidence: e.Confidence,
		})
	}
	return structured
}

// Keys returns the structured output keys in catalogue order.
func (x *EntityExtractor) Keys() []string {
	return append([]string(nil), x.keys...)
}

// ResolveOverlaps orders candidates by ascending start, then descending
// confidence, and keeps each one that does not intersect an already kept
// interval. Ties beyond that keep input order.
func ResolveOverlaps(candidates []domain.Entity) []domain.Entity {
	sorted := append([]domain.Entity(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Start != sorted[j].Start {
			return sorted[i].Start < sorted[j].Start
		}
		return sorted[i].Confidence > sorted[j].Confidence
	})

	// Kept intervals are disjoint and visited in start order, so the last
	// kept end is the furthest reach.
	accepted := make([]domain.Entity, 0, len(sorted))
	reach := -1
	for _, e := range sorted {
		if e.Start < reach {
			continue
		}
		accepted = append(accepted, e)
		reach = e.End
	}
	return accepted
}

// wordBounded reports whether text[start:end] is not glued to a word
// character on either side.
func wordBounded(text string, start, end int) bool {
	if before, _ := utf8.DecodeLastRuneInString(text[:start]); start > 0 && isWordRune(before) {
		return false
	}
	if after, _ := utf8.DecodeRuneInString(text[end:]); end < len(text) && isWordRune(after) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// runeOffsets maps byte offsets of text to character offsets.
func runeOffsets(text string) func(int) int {
	if utf8.RuneCountInString(text) == len(text) {
		return func(b int) int { return b }
	}
	index := make([]int, len(text)+1)
	n := 0
	for b := range text {
		index[b] = n
		n++
	}
	index[len(text)] = n
	return func(b int) int { return index[b] }
}
