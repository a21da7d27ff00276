package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cd8875/clinical-ai-assistant/internal/adapter/analyzer"
	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

func newTestAnswer(t *testing.T, llm *fakeLLM) (*AnswerUseCase, *IndexUseCase) {
	t.Helper()
	index, _ := newTestIndex(t, nil)
	var answer *AnswerUseCase
	if llm == nil {
		answer = NewAnswerUseCase(index, nil, analyzer.NewDefaultEntityExtractor(), testRetry, nil)
	} else {
		answer = NewAnswerUseCase(index, llm, analyzer.NewDefaultEntityExtractor(), testRetry, nil)
	}
	return answer, index
}

func TestAnswerContext_FormatsTwoSources(t *testing.T) {
	u, _ := newTestAnswer(t, nil)

	ac, err := u.AnswerContext(context.Background(), "What is the ejection fraction?", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformation, ac.Answer)
	assert.NotNil(t, ac.Sources)
	assert.Empty(t, ac.Sources)
	assert.Zero(t, ac.Confidence)
	assert.Empty(t, ac.Context)
}

func TestAnswer_EmptyIndexSkipsLLM(t *testing.T) {
	llm := &fakeLLM{replies: []string{"should not be used"}}
	u, _ := newTestAnswer(t, llm)

	answer, err := u.Answer(context.Background(), "Any metformin?", nil, 5)
	require.NoError(t, err)
	assert.Equal(t, NoRelevantInformation, answer.Answer)
	assert.Zero(t, answer.NumSources)
	assert.Zero(t, llm.Calls())
}

func TestAnswerContext_Format(t *testing.T) {
	u, index := newTestAnswer(t, nil)
	ctx := context.Background()
	text := "Echocardiogram shows ejection fraction of 55 percent"
	_, err := index.Insert(ctx, "echo-1", text, nil)
	require.NoError(t, err)

	ac, err := u.AnswerContext(ctx, text, nil, 5)
	require.NoError(t, err)
	require.Len(t, ac.Sources, 1)
	assert.Empty(t, ac.Answer)
	assert.Equal(t, "[Source 1 - Document ID: echo-1 | Relevance: 1.00]\n"+text+"\n", ac.Context)
	assert.Equal(t, 1.0, ac.Confidence)

	src := ac.Sources[0]
	assert.Equal(t, "echo-1", src.DocumentID)
	assert.Equal(t, 0, src.ChunkID)
	assert.Equal(t, text, src.Excerpt)
}

func TestAnswerContext_MultipleSources(t *testing.T) {
	u, index := newTestAnswer(t, nil)
	ctx := context.Background()
	_, err := index.Insert(ctx, "r1", "Potassium 4.1 mmol/L within range", nil)
	require.NoError(t, err)
	_, err = index.Insert(ctx, "r2", "Sodium 139 mmol/L within range", nil)
	require.NoError(t, err)

	ac, err := u.AnswerContext(ctx, "potassium mmol", nil, 2)
	require.NoError(t, err)
	require.Len(t, ac.Sources, 2)

	parts := strings.Split(ac.Context, "\n---\n")
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(parts[0], "[Source 1 - Document ID: "))
	assert.True(t, strings.HasPrefix(parts[1], "[Source 2 - Document ID: "))

	mean := (ac.Sources[0].Similarity + ac.Sources[1].Similarity) / 2
	assert.Equal(t, round2(mean), ac.Confidence)
}

func TestAnswerContext_RestrictsToDocuments(t *testing.T) {
	u, index := newTestAnswer(t, nil)
	ctx := context.Background()
	for _, id := range []string{"r1", "r2", "r3"} {
		_, err := index.Insert(ctx, id, "Glucose fasting 110 mg/dL sample "+id, nil)
		require.NoError(t, err)
	}

	ac, err := u.AnswerContext(ctx, "glucose", []string{"r3"}, 5)
	require.NoError(t, err)
	require.Len(t, ac.Sources, 1)
	assert.Equal(t, "r3", ac.Sources[0].DocumentID)
}

func TestAnswerContext_ExcerptTruncation(t *testing.T) {
	u, index := newTestAnswer(t, nil)
	ctx := context.Background()
	text := strings.TrimSpace(strings.Repeat("édema noted ", 30))
	_, err := index.Insert(ctx, "r1", text, nil)
	require.NoError(t, err)

	ac, err := u.AnswerContext(ctx, "edema", nil, 1)
	require.NoError(t, err)
	require.Len(t, ac.Sources, 1)
	ex := ac.Sources[0].Excerpt
	assert.True(t, strings.HasSuffix(ex, "..."))
	assert.Equal(t, 203, utf8.RuneCountInString(ex))
}

func TestAnswer_UsesLLM(t *testing.T) {
	llm := &fakeLLM{replies: []string{"The patient takes metformin 500mg twice daily."}}
	u, index := newTestAnswer(t, llm)
	ctx := context.Background()
	_, err := index.Insert(ctx, "r1", "Medications: metformin 500mg BID, lisinopril 10mg daily", nil)
	require.NoError(t, err)

	answer, err := u.Answer(ctx, "What dose of metformin?", nil, 3)
	require.NoError(t, err)
	assert.Equal(t, "The patient takes metformin 500mg twice daily.", answer.Answer)
	assert.Equal(t, "What dose of metformin?", answer.Question)
	assert.Equal(t, 1, answer.NumSources)
	require.Len(t, answer.Entities, 1)
	assert.Equal(t, domain.LabelMedication, answer.Entities[0].Label)

	user := llm.LastUser()
	assert.Contains(t, user, "QUESTION: What dose of metformin?")
	assert.Contains(t, user, "[Source 1 - Document ID: r1")
}

func TestAnswer_RetriesLLM(t *testing.T) {
	llm := &fakeLLM{
		errs:    []error{fmt.Errorf("%w: 503", domain.ErrProviderFailure)},
		replies: []string{"", "EF is 55%."},
	}
	u, index := newTestAnswer(t, llm)
	ctx := context.Background()
	_, err := index.Insert(ctx, "r1", "Ejection fraction 55%", nil)
	require.NoError(t, err)

	answer, err := u.Answer(ctx, "ejection fraction", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "EF is 55%.", answer.Answer)
	assert.Equal(t, 2, llm.Calls())
}

func TestAnswer_NoLLMConfigured(t *testing.T) {
	u, index := newTestAnswer(t, nil)
	ctx := context.Background()
	_, err := index.Insert(ctx, "r1", "Ejection fraction 55%", nil)
	require.NoError(t, err)

	_, err = u.Answer(ctx, "ejection fraction", nil, 1)
	assert.ErrorIs(t, err, domain.ErrProviderFailure)

	p, ac, err := u.Prompt(ctx, "ejection fraction", nil, 1)
	require.NoError(t, err)
	assert.Len(t, ac.Sources, 1)
	assert.Contains(t, p.User, "QUESTION: ejection fraction")
}

func TestSuggestQuestions(t *testing.T) {
	llm := &fakeLLM{replies: []string{strings.Join([]string{
		"Here are some questions:",
		"1. What is the patient's HbA1c trend?",
		"2) Short?",
		"- Is the metformin dose adequate?",
		"3. Has renal function been assessed recently?",
	}, "\n")}}
	u, index := newTestAnswer(t, llm)
	ctx := context.Background()
	_, err := index.Insert(ctx, "r1", "HbA1c 7.2%. Metformin 500mg.", nil)
	require.NoError(t, err)

	questions, err := u.SuggestQuestions(ctx, "r1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"What is the patient's HbA1c trend?",
		"Is the metformin dose adequate?",
	}, questions)
	assert.Contains(t, llm.LastUser(), "suggest 2 important questions")
	assert.Contains(t, llm.LastUser(), "HbA1c 7.2%. Metformin 500mg.")
}

func TestSuggestQuestions_UnknownDocument(t *testing.T) {
	llm := &fakeLLM{}
	u, _ := newTestAnswer(t, llm)

	questions, err := u.SuggestQuestions(context.Background(), "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, questions)
	assert.Zero(t, llm.Calls())
}

func TestSuggestQuestions_SampleBounded(t *testing.T) {
	llm := &fakeLLM{replies: []string{"1. Is this a long enough question?"}}
	u, index := newTestAnswer(t, llm)
	ctx := context.Background()
	_, err := index.Insert(ctx, "r1", strings.Repeat("creatinine stable ", 400), nil)
	require.NoError(t, err)
	require.Greater(t, len(index.GetChunks("r1")), 3)

	_, err = u.SuggestQuestions(ctx, "r1", 0)
	require.NoError(t, err)

	user := llm.LastUser()
	assert.Contains(t, user, "suggest 5 important questions")
	start := strings.Index(user, "Report excerpt:\n") + len("Report excerpt:\n")
	end := strings.Index(user, "\n\nGenerate specific")
	assert.Equal(t, suggestSampleSize, utf8.RuneCountInString(user[start:end]))
}

func TestParseQuestions(t *testing.T) {
	got := parseQuestions("1. First question here?\n\n- Second one is fine?\n* bullet ignored here\n10) Tenth question counts too?", 10)
	assert.Equal(t, []string{"First question here?", "Second one is fine?", "Tenth question counts too?"}, got)
	assert.Empty(t, parseQuestions("", 3))
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", excerpt("short", 200))
	assert.Equal(t, "abc...", excerpt("abcdef", 3))
	assert.Equal(t, "ééé...", excerpt("éééé", 3))
}
