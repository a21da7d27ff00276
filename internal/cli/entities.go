package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/cd8875/clinical-ai-assistant/internal/adapter/analyzer"
)

var (
	entitiesText       string
	entitiesStructured bool
	entitiesJSON       bool
)

var entitiesCmd = &cobra.Command{
	Use:   "entities [document-id]",
	Short: "Extract medications, lab values and vital signs",
	Long: `Run the clinical entity catalogue over a stored document or over --text.
--structured groups the matches by category.

Examples:
  clinrag entities r1
  clinrag entities --text "metformin 500mg BID, HbA1c 7.2%" --structured`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEntities,
}

func init() {
	rootCmd.AddCommand(entitiesCmd)
	entitiesCmd.Flags().StringVar(&entitiesText, "text", "", "text to analyze instead of a stored document")
	entitiesCmd.Flags().BoolVar(&entitiesStructured, "structured", false, "group entities by category")
	entitiesCmd.Flags().BoolVar(&entitiesJSON, "json", false, "output as JSON")
}

func runEntities(cmd *cobra.Command, args []string) error {
	if (entitiesText == "") == (len(args) == 0) {
		return fmt.Errorf("pass either a document id or --text")
	}

	text := entitiesText
	var extractor *analyzer.EntityExtractor
	if len(args) == 1 {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		doc, err := a.index.Document(args[0])
		if err != nil {
			return err
		}
		text = doc.Text
		extractor = a.extractor
	} else {
		extractor = analyzer.NewDefaultEntityExtractor()
	}

	out := cmd.OutOrStdout()
	if entitiesStructured {
		grouped := extractor.ExtractStructured(text)
		if entitiesJSON {
			return printJSON(out, grouped)
		}
		keys := extractor.Keys()
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(out, "%s:\n", key)
			if len(grouped[key]) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for _, e := range grouped[key] {
				fmt.Fprintf(out, "  %s (%.2f)\n", e.Text, e.Confidence)
			}
		}
		return nil
	}

	entities := extractor.Extract(text)
	if entitiesJSON {
		return printJSON(out, entities)
	}
	if len(entities) == 0 {
		fmt.Fprintln(out, "No entities found.")
		return nil
	}
	for _, e := range entities {
		fmt.Fprintf(out, "%-12s %-30s [%d:%d] %.2f\n", e.Label, e.Text, e.Start, e.End, e.Confidence)
	}
	return nil
}
