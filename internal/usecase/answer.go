package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/cd8875/clinical-ai-assistant/internal/adapter/analyzer"
	"github.com/cd8875/clinical-ai-assistant/internal/domain"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
	"github.com/cd8875/clinical-ai-assistant/internal/prompt"
)

// NoRelevantInformation is the answer returned when retrieval finds nothing.
const NoRelevantInformation = "I couldn't find relevant information in the reports to answer this question."

const (
	excerptLength      = 200
	suggestSampleSize  = 2000
	suggestChunkCount  = 3
	defaultSuggestions = 5
	minQuestionLength  = 10
)

// AnswerUseCase turns retrieved chunks into grounded answers.
type AnswerUseCase struct {
	index     *IndexUseCase
	llm       port.LLM
	extractor *analyzer.EntityExtractor
	retry     RetryPolicy
	logger    *zap.Logger
}

// NewAnswerUseCase creates an answer use case. llm may be nil, in which case
// only retrieval context and prompts are available.
func NewAnswerUseCase(index *IndexUseCase, llm port.LLM, extractor *analyzer.EntityExtractor, retry RetryPolicy, logger *zap.Logger) *AnswerUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerUseCase{
		index:     index,
		llm:       llm,
		extractor: extractor,
		retry:     retry,
		logger:    logger,
	}
}

// AnswerContext retrieves the k best chunks, restricted to documentIDs when
// given, and formats them as sources and prompt context.
func (u *AnswerUseCase) AnswerContext(ctx context.Context, query string, documentIDs []string, k int) (domain.AnswerContext, error) {
	var (
		results []domain.SearchResult
		err     error
	)
	if len(documentIDs) > 0 {
		results, err = u.index.SearchByDocuments(ctx, query, documentIDs, k)
	} else {
		results, err = u.index.Search(ctx, query, k, nil)
	}
	if err != nil {
		return domain.AnswerContext{}, err
	}

	if len(results) == 0 {
		return domain.AnswerContext{
			Answer:     NoRelevantInformation,
			Sources:    []domain.Source{},
			Confidence: 0,
			Context:    "",
		}, nil
	}

	sources := make([]domain.Source, len(results))
	parts := make([]string, len(results))
	var total float64
	for i, r := range results {
		sources[i] = domain.Source{
			DocumentID: r.Chunk.DocumentID,
			ChunkID:    r.Chunk.Index,
			Similarity: r.Similarity,
			Excerpt:    excerpt(r.Chunk.Text, excerptLength),
		}
		parts[i] = fmt.Sprintf("[Source %d - Document ID: %s | Relevance: %.2f]\n%s\n",
			i+1, r.Chunk.DocumentID, r.Similarity, r.Chunk.Text)
		total += r.Similarity
	}

	return domain.AnswerContext{
		Sources:    sources,
		Confidence: round2(total / float64(len(results))),
		Context:    strings.Join(parts, "\n---\n"),
	}, nil
}

// Prompt returns the QA prompt for question together with its retrieval
// context. The prompt is empty when nothing relevant was found.
func (u *AnswerUseCase) Prompt(ctx context.Context, question string, documentIDs []string, k int) (prompt.Prompt, domain.AnswerContext, error) {
	ac, err := u.AnswerContext(ctx, question, documentIDs, k)
	if err != nil {
		return prompt.Prompt{}, ac, err
	}
	if len(ac.Sources) == 0 {
		return prompt.Prompt{}, ac, nil
	}
	p, err := prompt.QA(question, ac.Context)
	return p, ac, err
}

// Answer retrieves context for question and asks the LLM to answer from it.
func (u *AnswerUseCase) Answer(ctx context.Context, question string, documentIDs []string, k int) (*domain.Answer, error) {
	p, ac, err := u.Prompt(ctx, question, documentIDs, k)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Question:   question,
		Answer:     ac.Answer,
		Sources:    ac.Sources,
		Confidence: ac.Confidence,
		NumSources: len(ac.Sources),
		Entities:   u.extractor.Extract(question),
	}
	if len(ac.Sources) == 0 {
		return answer, nil
	}

	text, err := u.generate(ctx, "answer", p)
	if err != nil {
		return nil, err
	}
	answer.Answer = text

	u.logger.Info("question answered",
		zap.Int("sources", answer.NumSources),
		zap.Float64("confidence", answer.Confidence))
	return answer, nil
}

// SuggestQuestions asks the LLM for up to n questions about the opening
// chunks of a document. Unknown documents yield an empty list.
func (u *AnswerUseCase) SuggestQuestions(ctx context.Context, documentID string, n int) ([]string, error) {
	if n <= 0 {
		n = defaultSuggestions
	}
	chunks := u.index.GetChunks(documentID)
	if len(chunks) == 0 {
		return []string{}, nil
	}
	if len(chunks) > suggestChunkCount {
		chunks = chunks[:suggestChunkCount]
	}
	sample := truncateRunes(strings.Join(chunks, " "), suggestSampleSize)

	p, err := prompt.Suggest(n, sample)
	if err != nil {
		return nil, err
	}
	text, err := u.generate(ctx, "suggest", p)
	if err != nil {
		return nil, err
	}
	return parseQuestions(text, n), nil
}

func (u *AnswerUseCase) generate(ctx context.Context, op string, p prompt.Prompt) (string, error) {
	if u.llm == nil {
		return "", fmt.Errorf("%w: no LLM configured", domain.ErrProviderFailure)
	}
	return retryProvider(ctx, u.retry, u.logger, op, func(ctx context.Context) (string, error) {
		return u.llm.Generate(ctx, p.System, p.User)
	})
}

// parseQuestions keeps numbered or dashed lines, without their markers,
// that are longer than minQuestionLength characters.
func parseQuestions(text string, n int) []string {
	questions := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first, _ := utf8.DecodeRuneInString(line)
		if !unicode.IsDigit(first) && first != '-' {
			continue
		}
		q := strings.TrimLeft(line, "0123456789.-) ")
		if utf8.RuneCountInString(q) > minQuestionLength {
			questions = append(questions, q)
		}
		if len(questions) == n {
			break
		}
	}
	return questions
}

func excerpt(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return truncateRunes(text, n) + "..."
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
