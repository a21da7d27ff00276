package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
	"github.com/cd8875/clinical-ai-assistant/internal/usecase"
)

var (
	summarizeMode     string
	summarizeType     string
	summarizeInsights bool
	summarizeJSON     bool
	suggestCount      int
	suggestJSON       bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <document-id>",
	Short: "Summarize a stored report with the LLM",
	Long: `Summarize a report in comprehensive or brief mode. The report type
defaults to the document's report_type metadata. --insights adds a second
LLM pass with clinical insights drawn from the summary and its entities.

Examples:
  clinrag summarize r1
  clinrag summarize r1 --mode brief
  clinrag summarize r1 --report-type radiology --insights`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <document-id>",
	Short: "Suggest questions to ask about a report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		questions, err := a.answer.SuggestQuestions(cmd.Context(), args[0], suggestCount)
		if err != nil {
			return fmt.Errorf("suggest failed: %w", err)
		}
		out := cmd.OutOrStdout()
		if suggestJSON {
			return printJSON(out, questions)
		}
		for i, q := range questions {
			fmt.Fprintf(out, "%d. %s\n", i+1, q)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(summarizeCmd, suggestCmd)
	summarizeCmd.Flags().StringVar(&summarizeMode, "mode", "comprehensive", "summary mode: comprehensive or brief")
	summarizeCmd.Flags().StringVar(&summarizeType, "report-type", "", "report type (default from document metadata)")
	summarizeCmd.Flags().BoolVar(&summarizeInsights, "insights", false, "also generate clinical insights")
	summarizeCmd.Flags().BoolVar(&summarizeJSON, "json", false, "output as JSON")
	suggestCmd.Flags().IntVarP(&suggestCount, "count", "n", 5, "number of questions")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "output as JSON")
}

func runSummarize(cmd *cobra.Command, args []string) error {
	mode, err := usecase.ParseSummaryMode(summarizeMode)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	summary, err := a.summarize.Summarize(ctx, args[0], mode, summarizeType)
	if err != nil {
		return fmt.Errorf("summarize failed: %w", err)
	}

	var insights string
	if summarizeInsights {
		insights, err = a.summarize.Insights(ctx, summary)
		if err != nil {
			return fmt.Errorf("insights failed: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if summarizeJSON {
		return printJSON(out, struct {
			*domain.Summary
			Insights string `json:"insights,omitempty"`
		}{summary, insights})
	}

	fmt.Fprintln(out, summary.Summary)
	if len(summary.KeyFindings) > 0 {
		fmt.Fprintln(out, "\nKey findings:")
		for _, f := range summary.KeyFindings {
			fmt.Fprintf(out, "  - %s\n", f)
		}
	}
	if len(summary.Entities) > 0 {
		fmt.Fprintln(out, "\nEntities:")
		for _, e := range summary.Entities {
			fmt.Fprintf(out, "  %s (%s)\n", e.Text, e.Label)
		}
	}
	fmt.Fprintf(out, "\nConfidence: %.2f  Time: %s\n", summary.Confidence, summary.ProcessingTime.Round(time.Millisecond))
	if insights != "" {
		fmt.Fprintf(out, "\nInsights:\n%s\n", insights)
	}
	return nil
}
