package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

var (
	searchQuery  string
	searchTopK   int
	searchDocs   []string
	searchFilter []string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search indexed reports by similarity",
	Long: `Embed the query and return the most similar chunks, optionally restricted
to documents (--doc, any of) or to chunks whose metadata matches every
--filter pair.

Examples:
  clinrag search -q "ejection fraction"
  clinrag search -q "potassium" --doc r1 --doc r2 -k 3
  clinrag search -q "chest x-ray" --filter ward=icu --json`,
	RunE: runSearch,
}

type searchHit struct {
	Rank       int             `json:"rank"`
	DocumentID string          `json:"document_id"`
	ChunkIndex int             `json:"chunk_index"`
	ChunkTotal int             `json:"chunk_total"`
	Similarity float64         `json:"similarity"`
	Text       string          `json:"text"`
	Metadata   domain.Metadata `json:"metadata"`
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "search query (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "number of results (default from config)")
	searchCmd.Flags().StringArrayVar(&searchDocs, "doc", nil, "restrict to document id (repeatable)")
	searchCmd.Flags().StringArrayVar(&searchFilter, "filter", nil, "metadata filter key=value (repeatable)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output as JSON")
	searchCmd.MarkFlagRequired("query")
}

func runSearch(cmd *cobra.Command, args []string) error {
	if len(searchDocs) > 0 && len(searchFilter) > 0 {
		return fmt.Errorf("--doc and --filter cannot be combined")
	}
	filter, err := parseKeyValues(searchFilter)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var results []domain.SearchResult
	if len(searchDocs) > 0 {
		results, err = a.index.SearchByDocuments(cmd.Context(), searchQuery, searchDocs, topK(searchTopK))
	} else {
		results, err = a.index.Search(cmd.Context(), searchQuery, topK(searchTopK), domain.Filter(filter))
	}
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	hits := make([]searchHit, len(results))
	for i, r := range results {
		hits[i] = searchHit{
			Rank:       i + 1,
			DocumentID: r.Chunk.DocumentID,
			ChunkIndex: r.Chunk.Index,
			ChunkTotal: r.Chunk.Total,
			Similarity: r.Similarity,
			Text:       r.Chunk.Text,
			Metadata:   r.Chunk.Metadata,
		}
	}

	out := cmd.OutOrStdout()
	if searchJSON {
		return printJSON(out, hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No results found.")
		return nil
	}
	fmt.Fprintf(out, "Found %d results for: %s\n\n", len(hits), searchQuery)
	for _, h := range hits {
		fmt.Fprintf(out, "--- [%d] %s chunk %d/%d (similarity: %.2f) ---\n", h.Rank, h.DocumentID, h.ChunkIndex+1, h.ChunkTotal, h.Similarity)
		fmt.Fprintln(out, truncate(h.Text, 500))
		fmt.Fprintln(out)
	}
	return nil
}
