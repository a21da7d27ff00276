package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Re-embed every live document and drop orphaned vectors",
	Long: `Re-chunk and re-embed the stored text of every live document with the
current configuration, then replace the whole vector set. Vectors of deleted
documents are dropped.

Run this after changing the embedding provider, chunk size or overlap.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	stats := a.index.Stats()
	if stats.ChunkCount == 0 && stats.DocumentCount == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Index is empty, nothing to rebuild.")
		return a.store.Migrate(GetConfig())
	}

	bar := newProgressBar(stats.DocumentCount, "Rebuilding", false)
	start := time.Now()
	result, err := a.index.Rebuild(cmd.Context(), func(string) {
		_ = bar.Add(1)
	})
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}
	if err := a.store.Migrate(GetConfig()); err != nil {
		return fmt.Errorf("failed to record index configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "\nRebuild complete in %s:\n", formatDuration(time.Since(start)))
	fmt.Fprintf(out, "  Documents:      %d\n", result.Documents)
	fmt.Fprintf(out, "  Chunks:         %d\n", result.Chunks)
	fmt.Fprintf(out, "  Dropped chunks: %d\n", result.DroppedChunks)
	return nil
}
