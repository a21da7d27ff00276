package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cd8875/clinical-ai-assistant/internal/adapter/analyzer"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/chunker"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/embedding"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/memstore"
	"github.com/cd8875/clinical-ai-assistant/internal/adapter/store"
)

var testRetry = RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond}

// scriptedEmbedder delegates to a hash embedder unless errs has an entry
// for the current call. A nil entry delegates.
type scriptedEmbedder struct {
	inner *embedding.HashEmbedder

	mu    sync.Mutex
	calls int
	errs  []error
	block bool
	// before runs ahead of each call with the call number, outside mu.
	before func(call int)
}

func newScriptedEmbedder(errs ...error) *scriptedEmbedder {
	return &scriptedEmbedder{
		inner: embedding.NewHashEmbedder(64, analyzer.NewTokenizer()),
		errs:  errs,
	}
}

func (e *scriptedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	call := e.calls
	e.calls++
	block := e.block
	before := e.before
	e.mu.Unlock()

	if before != nil {
		before(call)
	}

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if call < len(e.errs) && e.errs[call] != nil {
		return nil, e.errs[call]
	}
	return e.inner.Embed(ctx, texts)
}

func (e *scriptedEmbedder) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

func (e *scriptedEmbedder) Dimension() int    { return e.inner.Dimension() }
func (e *scriptedEmbedder) ModelName() string { return "scripted" }

type fakeLLM struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	system  []string
	user    []string
}

func (l *fakeLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	call := len(l.user)
	l.system = append(l.system, systemPrompt)
	l.user = append(l.user, userPrompt)
	if call < len(l.errs) && l.errs[call] != nil {
		return "", l.errs[call]
	}
	if len(l.replies) == 0 {
		return "", nil
	}
	if call < len(l.replies) {
		return l.replies[call], nil
	}
	return l.replies[len(l.replies)-1], nil
}

func (l *fakeLLM) ModelName() string { return "fake" }

func (l *fakeLLM) Calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.user)
}

func (l *fakeLLM) LastUser() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.user) == 0 {
		return ""
	}
	return l.user[len(l.user)-1]
}

func newTestIndex(t *testing.T, emb *scriptedEmbedder) (*IndexUseCase, *store.VectorStore) {
	t.Helper()
	if emb == nil {
		emb = newScriptedEmbedder()
	}
	vs := store.NewVectorStore(memstore.NewMemoryStore(), nil)
	return NewIndexUseCase(vs, chunker.NewRecursiveChunker(1000, 200), emb, testRetry, nil), vs
}
