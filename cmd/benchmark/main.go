package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/cd8875/clinical-ai-assistant/config"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/embedding"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/store"
	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

func main() {
	indexPath := flag.String("index", ".", "Path to the data directory")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 5, "Number of results")
	runs := flag.Int("n", 20, "Number of timed search runs")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -index ./reports -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Index size and embedding model")
		fmt.Println("  2. Top-k matches with similarity ratings")
		fmt.Println("  3. Embedding and search latency")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*indexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(config.IndexDBPath(*indexPath))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedder init failed: %v\n", err)
		os.Exit(1)
	}

	vectors := store.NewVectorStore(st, nil)
	stats := vectors.Stats()
	if stats.ChunkCount == 0 {
		fmt.Fprintln(os.Stderr, "No vectors indexed - run 'clinrag ingest' first")
		os.Exit(1)
	}

	fmt.Println("SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("Documents: %d  Chunks: %d\n", stats.DocumentCount, stats.ChunkCount)
	fmt.Printf("Model: %s (%s), dimension %d\n", cfg.Embedding.Model, cfg.Embedding.Provider, embedder.Dimension())
	fmt.Println()

	ctx := context.Background()
	embedStart := time.Now()
	queryVec, err := embedder.Embed(ctx, []string{*query})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Embedding error: %v\n", err)
		os.Exit(1)
	}
	embedLatency := time.Since(embedStart)

	var results []domain.SearchResult
	latencies := make([]time.Duration, 0, *runs)
	for i := 0; i < *runs; i++ {
		start := time.Now()
		results, err = vectors.Search(queryVec[0], *topK, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
			os.Exit(1)
		}
		latencies = append(latencies, time.Since(start))
	}

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	total := 0.0
	for i, r := range results {
		preview := strings.ReplaceAll(r.Chunk.Text, "\n", " ")
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		total += r.Similarity
		fmt.Printf("%d. [%s %.3f] %s chunk %d/%d\n", i+1, rating(r.Similarity), r.Similarity, r.Chunk.DocumentID, r.Chunk.Index+1, r.Chunk.Total)
		fmt.Printf("   %s\n\n", preview)
	}

	fmt.Println(strings.Repeat("=", 70))
	fmt.Println("METRICS:")
	if len(results) > 0 {
		fmt.Printf("  Average similarity: %.3f\n", total/float64(len(results)))
		fmt.Printf("  Top-1 similarity:   %.3f\n", results[0].Similarity)
	}
	fmt.Printf("  Embed latency:      %s\n", embedLatency.Round(time.Microsecond))

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	if len(latencies) > 0 {
		fmt.Printf("  Search p50:         %s\n", latencies[len(latencies)/2].Round(time.Microsecond))
		fmt.Printf("  Search p95:         %s\n", latencies[len(latencies)*95/100].Round(time.Microsecond))
	}
}

func rating(similarity float64) string {
	switch {
	case similarity > 0.7:
		return "HIGH"
	case similarity > 0.5:
		return "GOOD"
	case similarity > 0.3:
		return "OK"
	}
	return "LOW"
}
