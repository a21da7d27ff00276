package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	askQuestion   string
	askDocs       []string
	askTopK       int
	askPromptOnly bool
	askJSON       bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from the indexed reports",
	Long: `Retrieve the chunks most similar to the question and answer from them.
Without an LLM provider, or with --prompt-only, the assembled prompt is
printed instead of an answer.

Examples:
  clinrag ask -q "What is the latest HbA1c?"
  clinrag ask -q "Any allergies?" --doc r1 --json
  clinrag ask -q "Current medications?" --prompt-only | pbcopy`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "query", "q", "", "question (required)")
	askCmd.Flags().StringArrayVar(&askDocs, "doc", nil, "restrict to document id (repeatable)")
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of chunks to retrieve (default from config)")
	askCmd.Flags().BoolVar(&askPromptOnly, "prompt-only", false, "print the prompt instead of calling the LLM")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	k := topK(askTopK)

	if askPromptOnly || GetConfig().LLM.Provider == "none" {
		p, answerCtx, err := a.answer.Prompt(ctx, askQuestion, askDocs, k)
		if err != nil {
			return fmt.Errorf("failed to build prompt: %w", err)
		}
		if askJSON {
			return printJSON(out, struct {
				System  string `json:"system"`
				User    string `json:"user"`
				Sources any    `json:"sources"`
			}{p.System, p.User, answerCtx.Sources})
		}
		fmt.Fprintln(out, p.String())
		return nil
	}

	answer, err := a.answer.Answer(ctx, askQuestion, askDocs, k)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}
	if askJSON {
		return printJSON(out, answer)
	}

	fmt.Fprintln(out, answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintf(out, "\nSources (confidence %.2f):\n", answer.Confidence)
		for i, s := range answer.Sources {
			fmt.Fprintf(out, "  [%d] %s chunk %d (%.2f): %s\n", i+1, s.DocumentID, s.ChunkID, s.Similarity, s.Excerpt)
		}
	}
	if len(answer.Entities) > 0 {
		fmt.Fprintln(out, "\nEntities in question:")
		for _, e := range answer.Entities {
			fmt.Fprintf(out, "  %s (%s)\n", e.Text, e.Label)
		}
	}
	return nil
}
