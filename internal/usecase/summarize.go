package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cd8875/clinical-ai-assistant/internal/adapter/analyzer"
	"github.com/cd8875/clinical-ai-assistant/internal/domain"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
	"github.com/cd8875/clinical-ai-assistant/internal/prompt"
)

const (
	maxKeyFindings     = 5
	maxSummaryEntities = 20
	maxConfidenceTerms = 20
	minFindingLength   = 10
)

var (
	capitalisedWordRe = regexp.MustCompile(`\b[A-Z][a-z]+\b`)
	sentenceSplitRe   = regexp.MustCompile(`[.!?]+`)

	findingPrefixes = []string{"•", "-", "*", "1.", "2.", "3.", "4.", "5."}
	bulletPrefixes  = []string{"•", "-", "*"}

	findingKeywords = []string{
		"diagnosis", "diagnosed", "abnormal", "elevated", "decreased",
		"positive", "negative", "findings", "showed", "revealed",
	}
)

// SummarizeUseCase produces LLM summaries of indexed reports.
type SummarizeUseCase struct {
	index     *IndexUseCase
	llm       port.LLM
	extractor *analyzer.EntityExtractor
	retry     RetryPolicy
	logger    *zap.Logger
	now       func() time.Time
}

func NewSummarizeUseCase(index *IndexUseCase, llm port.LLM, extractor *analyzer.EntityExtractor, retry RetryPolicy, logger *zap.Logger) *SummarizeUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummarizeUseCase{
		index:     index,
		llm:       llm,
		extractor: extractor,
		retry:     retry,
		logger:    logger,
		now:       time.Now,
	}
}

// ParseSummaryMode maps a flag value to a mode. Empty means comprehensive.
func ParseSummaryMode(s string) (domain.SummaryMode, error) {
	switch domain.SummaryMode(strings.ToLower(s)) {
	case "", domain.SummaryComprehensive:
		return domain.SummaryComprehensive, nil
	case domain.SummaryBrief:
		return domain.SummaryBrief, nil
	}
	return "", fmt.Errorf("%w: summary mode %q", domain.ErrUnsupportedInput, s)
}

// Prompt renders the summary prompt for a stored document. reportType
// falls back to the document's report_type metadata.
func (u *SummarizeUseCase) Prompt(documentID string, mode domain.SummaryMode, reportType string) (prompt.Prompt, domain.Document, error) {
	doc, err := u.index.Document(documentID)
	if err != nil {
		return prompt.Prompt{}, doc, err
	}
	if reportType == "" {
		reportType, _ = doc.Metadata["report_type"].(string)
	}

	var p prompt.Prompt
	switch mode {
	case domain.SummaryBrief:
		p, err = prompt.Brief(doc.Text)
	case domain.SummaryComprehensive, "":
		p, err = prompt.Comprehensive(reportType, doc.Text)
	default:
		err = fmt.Errorf("%w: summary mode %q", domain.ErrUnsupportedInput, mode)
	}
	return p, doc, err
}

// Summarize summarizes a stored document and scores the summary against
// the source text.
func (u *SummarizeUseCase) Summarize(ctx context.Context, documentID string, mode domain.SummaryMode, reportType string) (*domain.Summary, error) {
	if mode == "" {
		mode = domain.SummaryComprehensive
	}
	start := u.now()

	p, doc, err := u.Prompt(documentID, mode, reportType)
	if err != nil {
		return nil, err
	}
	if u.llm == nil {
		return nil, fmt.Errorf("%w: no LLM configured", domain.ErrProviderFailure)
	}
	text, err := retryProvider(ctx, u.retry, u.logger, "summarize", func(ctx context.Context) (string, error) {
		return u.llm.Generate(ctx, p.System, p.User)
	})
	if err != nil {
		return nil, err
	}

	var findings []string
	if mode == domain.SummaryBrief {
		findings = bulletPoints(text)
	} else {
		findings = keyFindings(text)
	}

	entities := u.extractor.Extract(doc.Text)
	if len(entities) > maxSummaryEntities {
		entities = entities[:maxSummaryEntities]
	}

	summary := &domain.Summary{
		DocumentID:     documentID,
		Mode:           mode,
		Summary:        text,
		KeyFindings:    findings,
		Entities:       entities,
		Confidence:     summaryConfidence(text, doc.Text),
		ProcessingTime: u.now().Sub(start),
	}
	u.logger.Info("report summarized",
		zap.String("document_id", documentID),
		zap.String("mode", string(mode)),
		zap.Duration("elapsed", summary.ProcessingTime))
	return summary, nil
}

// Insights asks the LLM for risk factors and care gaps given a summary.
func (u *SummarizeUseCase) Insights(ctx context.Context, summary *domain.Summary) (string, error) {
	if u.llm == nil {
		return "", fmt.Errorf("%w: no LLM configured", domain.ErrProviderFailure)
	}
	p, err := prompt.Insights(summary.Summary, summary.Entities)
	if err != nil {
		return "", err
	}
	return retryProvider(ctx, u.retry, u.logger, "insights", func(ctx context.Context) (string, error) {
		return u.llm.Generate(ctx, p.System, p.User)
	})
}

// keyFindings collects bulleted or numbered lines longer than
// minFindingLength. Without any, it falls back to sentences that mention a
// clinical keyword.
func keyFindings(summary string) []string {
	findings := []string{}
	for _, line := range strings.Split(summary, "\n") {
		line = strings.TrimSpace(line)
		if !hasAnyPrefix(line, findingPrefixes) {
			continue
		}
		finding := strings.TrimLeft(line, "•-*123456789. ")
		if utf8.RuneCountInString(finding) > minFindingLength {
			findings = append(findings, finding)
		}
	}

	if len(findings) == 0 {
		for _, sentence := range sentenceSplitRe.Split(summary, -1) {
			lower := strings.ToLower(sentence)
			for _, kw := range findingKeywords {
				if strings.Contains(lower, kw) {
					findings = append(findings, strings.TrimSpace(sentence))
					break
				}
			}
		}
	}

	if len(findings) > maxKeyFindings {
		findings = findings[:maxKeyFindings]
	}
	return findings
}

func bulletPoints(text string) []string {
	points := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if hasAnyPrefix(line, bulletPrefixes) {
			points = append(points, strings.TrimLeft(line, "•-* "))
		}
	}
	return points
}

// summaryConfidence is the share of the source's first capitalised words
// that reappear in the summary, ignoring case. It is 0.5 when the source
// has none.
func summaryConfidence(summary, original string) float64 {
	words := capitalisedWordRe.FindAllString(original, maxConfidenceTerms)
	terms := make(map[string]struct{}, len(words))
	for _, w := range words {
		terms[w] = struct{}{}
	}
	if len(terms) == 0 {
		return 0.5
	}

	lower := strings.ToLower(summary)
	matched := 0
	for term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			matched++
		}
	}
	return round2(float64(matched) / float64(len(terms)))
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
