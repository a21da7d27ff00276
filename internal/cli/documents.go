package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

var (
	chunksJSON bool
	statsJSON  bool
)

var chunksCmd = &cobra.Command{
	Use:   "chunks <document-id>",
	Short: "Print the chunks of a document in order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		chunks := a.index.GetChunks(args[0])
		out := cmd.OutOrStdout()
		if chunksJSON {
			return printJSON(out, chunks)
		}
		if len(chunks) == 0 {
			fmt.Fprintf(out, "No chunks for %s.\n", args[0])
			return nil
		}
		for i, text := range chunks {
			fmt.Fprintf(out, "--- chunk %d/%d ---\n%s\n\n", i+1, len(chunks), text)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Remove a document from the index",
	Long: `Remove a document's metadata. Its chunks stay searchable until the next
'clinrag rebuild' drops them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.index.Delete(args[0]); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("no document with id %s", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s. Run 'clinrag rebuild' to drop its vectors.\n", args[0])
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		stats := a.index.Stats()
		out := cmd.OutOrStdout()
		if statsJSON {
			return printJSON(out, stats)
		}
		fmt.Fprintf(out, "Documents: %d\n", stats.DocumentCount)
		fmt.Fprintf(out, "Chunks:    %d\n", stats.ChunkCount)
		fmt.Fprintf(out, "Dimension: %d\n", a.vectors.Dimension())
		fmt.Fprintf(out, "Index:     %s\n", a.store.Path())
		for _, id := range stats.DocumentIDs {
			fmt.Fprintf(out, "  - %s\n", id)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chunksCmd, deleteCmd, statsCmd)
	chunksCmd.Flags().BoolVar(&chunksJSON, "json", false, "output as JSON")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
}
