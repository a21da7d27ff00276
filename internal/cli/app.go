package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/cd8875/clinical-ai-assistant/config"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/analyzer"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/cache"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/chunker"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/embedding"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/fs"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/llm"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/parser"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/store"
	"github.com/cd8875/clinical-ai-assistant/internal/port"
	"github.com/cd8875/clinical-ai-assistant/internal/usecase"
)

// app wires the index and its use cases for one command invocation.
type app struct {
	store     *store.BoltStore
	vectors   *store.VectorStore
	index     *usecase.IndexUseCase
	ingest    *usecase.IngestUseCase
	answer    *usecase.AnswerUseCase
	summarize *usecase.SummarizeUseCase
	extractor *analyzer.EntityExtractor
}

func openApp() (*app, error) {
	cfg := GetConfig()
	dir := GetRootDir()

	if err := config.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.OpenResilient(config.IndexDBPath(dir), logger.Named("store"))
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	migration, err := st.CheckMigration(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to check migration: %w", err)
	}
	switch {
	case migration.NeedsRebuild:
		logger.Warn("index rebuild required, run 'clinrag rebuild'", zap.String("reason", migration.Reason))
	case migration.NeedsMigration:
		if err := st.Migrate(cfg); err != nil {
			st.Close()
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	chat, err := newLLM(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create llm: %w", err)
	}

	vectors := store.NewVectorStore(st, logger.Named("vectors"))
	if dim := vectors.Dimension(); dim > 0 && dim != embedder.Dimension() {
		logger.Warn("embedding dimension differs from the index, run 'clinrag rebuild'",
			zap.Int("index", dim), zap.Int("embedder", embedder.Dimension()))
	}

	embedRetry := usecase.NewRetryPolicy(cfg.Retry, cfg.Embedding.Timeout)
	llmRetry := usecase.NewRetryPolicy(cfg.Retry, cfg.LLM.Timeout)
	extractor := analyzer.NewDefaultEntityExtractor()

	chk := chunker.NewRecursiveChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	index := usecase.NewIndexUseCase(vectors, chk, embedder, embedRetry, logger.Named("index"))
	walker := fs.NewWalker(cfg.Ingest.Includes, cfg.Ingest.Excludes)

	return &app{
		store:     st,
		vectors:   vectors,
		index:     index,
		ingest:    usecase.NewIngestUseCase(index, walker, parser.New(), logger.Named("ingest")),
		answer:    usecase.NewAnswerUseCase(index, chat, extractor, llmRetry, logger.Named("answer")),
		summarize: usecase.NewSummarizeUseCase(index, chat, extractor, llmRetry, logger.Named("summarize")),
		extractor: extractor,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// newEmbedder builds the configured embedder, wrapped in the query cache
// when retrieve.cache_size is positive.
func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	embedder, err := embedding.New(cfg.Embedding)
	if err != nil {
		return nil, err
	}
	if cfg.Retrieve.CacheSize > 0 {
		embedder = cache.NewCachedEmbedder(embedder, cache.NewEmbeddingCache(cfg.Retrieve.CacheSize, cfg.Retrieve.CacheTTL.Duration()))
	}
	return embedder, nil
}

// newLLM returns nil when no provider is configured.
func newLLM(cfg *config.Config) (port.LLM, error) {
	opts := llm.Options{
		APIKeyEnv:   cfg.LLM.APIKeyEnv,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout.Duration(),
	}
	switch cfg.LLM.Provider {
	case "none", "":
		return nil, nil
	case "openai":
		return llm.NewOpenAIChat(opts)
	case "ollama":
		return llm.NewOllamaChat(opts), nil
	}
	return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
