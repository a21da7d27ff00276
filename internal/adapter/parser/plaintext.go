package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
)

// MethodPlainText is recorded under the "method" metadata key.
const MethodPlainText = "plain_text"

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}_\s.,\-:;()%/+<>=]`)
)

type metadataRule struct {
	key string
	re  *regexp.Regexp
}

// Header fields commonly printed on clinical reports. The first match wins.
var metadataRules = []metadataRule{
	{"patient_name", regexp.MustCompile(`(?i)Patient Name[:\s]+([A-Za-z\s]+)`)},
	{"patient_id", regexp.MustCompile(`(?i)(?:Patient ID|MRN|Medical Record)[:\s]+([A-Z0-9\-]+)`)},
	{"date", regexp.MustCompile(`(?i)Date[:\s]+(\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4})`)},
	{"doctor", regexp.MustCompile(`(?i)(?:Dr\.|Doctor|Physician)[:\s]+([A-Za-z\s.]+)`)},
}

var supportedExt = map[string]bool{
	".txt": true,
	".md":  true,
}

// PlainTextParser reads UTF-8 text reports.
type PlainTextParser struct{}

var _ port.DocumentParser = PlainTextParser{}

func New() PlainTextParser {
	return PlainTextParser{}
}

// Supports reports whether path has an extension Parse accepts.
func (PlainTextParser) Supports(path string) bool {
	return supportedExt[strings.ToLower(filepath.Ext(path))]
}

func (p PlainTextParser) Parse(path string) (domain.ParsedDocument, error) {
	if !p.Supports(path) {
		return domain.ParsedDocument{}, fmt.Errorf("%w: file type %q", domain.ErrUnsupportedInput, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ParsedDocument{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return domain.ParsedDocument{}, fmt.Errorf("%w: %s is not valid UTF-8", domain.ErrUnsupportedInput, path)
	}

	doc := ParseText(string(data))
	doc.Metadata["filename"] = filepath.Base(path)
	return doc, nil
}

// ParseText cleans raw report text and extracts header metadata from it.
func ParseText(raw string) domain.ParsedDocument {
	text := CleanText(raw)
	meta := ExtractMetadata(text)
	meta["method"] = MethodPlainText
	return domain.ParsedDocument{Text: text, Metadata: meta}
}

// CleanText collapses whitespace runs to one space and drops characters
// outside letters, digits and common clinical punctuation.
func CleanText(text string) string {
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = disallowedRe.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

func ExtractMetadata(text string) domain.Metadata {
	meta := domain.Metadata{}
	for _, rule := range metadataRules {
		if m := rule.re.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				meta[rule.key] = v
			}
		}
	}
	return meta
}
