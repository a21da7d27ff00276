package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cd8875/clinical-ai-assistant/internal/adapter/analyzer"
	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

const dischargeNote = "Patient Smith admitted with Diabetes. Metformin 500mg started. HbA1c: 8.1%. BP 150/95."

func newTestSummarizer(t *testing.T, llm *fakeLLM) (*SummarizeUseCase, *IndexUseCase) {
	t.Helper()
	index, _ := newTestIndex(t, nil)
	_, err := index.Insert(context.Background(), "r1", dischargeNote, domain.Metadata{"report_type": "discharge"})
	require.NoError(t, err)
	if llm == nil {
		return NewSummarizeUseCase(index, nil, analyzer.NewDefaultEntityExtractor(), testRetry, nil), index
	}
	return NewSummarizeUseCase(index, llm, analyzer.NewDefaultEntityExtractor(), testRetry, nil), index
}

func TestSummarize_Comprehensive(t *testing.T) {
	reply := strings.Join([]string{
		"Executive Summary: Smith was admitted for diabetes.",
		"- Metformin 500mg was started on admission",
		"- Short",
		"2. HbA1c elevated at 8.1 percent",
	}, "\n")
	llm := &fakeLLM{replies: []string{reply}}
	u, _ := newTestSummarizer(t, llm)

	summary, err := u.Summarize(context.Background(), "r1", "", "")
	require.NoError(t, err)
	assert.Equal(t, domain.SummaryComprehensive, summary.Mode)
	assert.Equal(t, reply, summary.Summary)
	assert.Equal(t, []string{
		"Metformin 500mg was started on admission",
		"HbA1c elevated at 8.1 percent",
	}, summary.KeyFindings)
	assert.NotEmpty(t, summary.Entities)
	assert.GreaterOrEqual(t, summary.ProcessingTime.Nanoseconds(), int64(0))

	require.Len(t, llm.system, 1)
	assert.Contains(t, llm.system[0], "expert medical AI assistant")
	assert.Contains(t, llm.LastUser(), "REPORT TYPE: discharge")
	assert.Contains(t, llm.LastUser(), dischargeNote)
}

func TestSummarize_ReportTypeOverride(t *testing.T) {
	llm := &fakeLLM{replies: []string{"ok"}}
	u, _ := newTestSummarizer(t, llm)

	_, err := u.Summarize(context.Background(), "r1", domain.SummaryComprehensive, "cardiology")
	require.NoError(t, err)
	assert.Contains(t, llm.LastUser(), "REPORT TYPE: cardiology")
}

func TestSummarize_Brief(t *testing.T) {
	llm := &fakeLLM{replies: []string{" New diabetes diagnosis\n- Metformin started\n* BP elevated"}}
	u, _ := newTestSummarizer(t, llm)

	summary, err := u.Summarize(context.Background(), "r1", domain.SummaryBrief, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"Metformin started", "BP elevated"}, summary.KeyFindings)
	assert.Empty(t, llm.system[0])
	assert.True(t, strings.HasSuffix(llm.LastUser(), "Critical Points:\n-"))
}

func TestSummarize_Errors(t *testing.T) {
	u, _ := newTestSummarizer(t, &fakeLLM{replies: []string{"ok"}})
	_, err := u.Summarize(context.Background(), "missing", "", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = u.Summarize(context.Background(), "r1", domain.SummaryMode("verbose"), "")
	assert.ErrorIs(t, err, domain.ErrUnsupportedInput)

	noLLM, _ := newTestSummarizer(t, nil)
	_, err = noLLM.Summarize(context.Background(), "r1", "", "")
	assert.ErrorIs(t, err, domain.ErrProviderFailure)

	p, _, err := noLLM.Prompt("r1", domain.SummaryBrief, "")
	require.NoError(t, err)
	assert.Contains(t, p.User, dischargeNote)
}

func TestSummarize_Insights(t *testing.T) {
	llm := &fakeLLM{replies: []string{"Risk Factors: uncontrolled glucose"}}
	u, _ := newTestSummarizer(t, llm)

	out, err := u.Insights(context.Background(), &domain.Summary{
		Summary:  "Diabetic patient on metformin.",
		Entities: []domain.Entity{{Text: "metformin", Label: domain.LabelMedication}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Risk Factors: uncontrolled glucose", out)
	assert.Contains(t, llm.LastUser(), "ENTITIES: metformin (MEDICATION)")
}

func TestParseSummaryMode(t *testing.T) {
	mode, err := ParseSummaryMode("")
	require.NoError(t, err)
	assert.Equal(t, domain.SummaryComprehensive, mode)

	mode, err = ParseSummaryMode("BRIEF")
	require.NoError(t, err)
	assert.Equal(t, domain.SummaryBrief, mode)

	_, err = ParseSummaryMode("long")
	assert.ErrorIs(t, err, domain.ErrUnsupportedInput)
}

func TestKeyFindings_KeywordFallback(t *testing.T) {
	got := keyFindings("The scan revealed a small nodule. Patient is comfortable! Labs showed elevated WBC")
	assert.Equal(t, []string{"The scan revealed a small nodule", "Labs showed elevated WBC"}, got)
}

func TestKeyFindings_AtMostFive(t *testing.T) {
	var lines []string
	for i := 0; i < 8; i++ {
		lines = append(lines, "- finding number with detail")
	}
	assert.Len(t, keyFindings(strings.Join(lines, "\n")), maxKeyFindings)
}

func TestSummaryConfidence(t *testing.T) {
	original := "Patient Smith has Diabetes. Metformin started."
	assert.Equal(t, 0.75, summaryConfidence("Smith: diabetes, metformin.", original))
	assert.Equal(t, 1.0, summaryConfidence("patient smith diabetes metformin", original))
	assert.Equal(t, 0.0, summaryConfidence("nothing relevant", original))
	assert.Equal(t, 0.5, summaryConfidence("anything", "no capitalised words here"))
}
