package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cd8875/clinical-ai-assistant/internal/domain"
)

func newTestChat(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *OpenAIChat {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("TEST_LLM_KEY", "secret")
	chat, err := NewOpenAIChat(Options{
		APIKeyEnv:   "TEST_LLM_KEY",
		Model:       "test-model",
		BaseURL:     srv.URL + "/",
		Temperature: 0.1,
		MaxTokens:   64,
		Timeout:     timeout,
	})
	require.NoError(t, err)
	return chat
}

func TestOpenAIChat_Generate(t *testing.T) {
	chat := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, 64, req.MaxTokens)
		if assert.Len(t, req.Messages, 2) {
			assert.Equal(t, "system", req.Messages[0].Role)
			assert.Equal(t, "user", req.Messages[1].Role)
			assert.Equal(t, "What is the HbA1c?", req.Messages[1].Content)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  HbA1c is 7.2%.  "}}]}`))
	}, time.Second)

	out, err := chat.Generate(context.Background(), "Answer from context.", "What is the HbA1c?")
	require.NoError(t, err)
	assert.Equal(t, "HbA1c is 7.2%.", out)
	assert.Equal(t, "test-model", chat.ModelName())
}

func TestOpenAIChat_OmitsEmptySystemPrompt(t *testing.T) {
	chat := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Messages, 1)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}, time.Second)

	_, err := chat.Generate(context.Background(), "", "hello")
	require.NoError(t, err)
}

func TestOpenAIChat_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"slow down"}}`, true},
		{"server error", http.StatusBadGateway, `bad gateway`, true},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad model"}}`, false},
		{"no choices", http.StatusOK, `{"choices":[]}`, true},
		{"api error body", http.StatusOK, `{"error":{"message":"quota"}}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, time.Second)

			_, err := chat.Generate(context.Background(), "", "q")
			require.Error(t, err)
			assert.Equal(t, tt.transient, errors.Is(err, domain.ErrProviderFailure))
		})
	}
}

func TestOpenAIChat_Timeout(t *testing.T) {
	chat := newTestChat(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	_, err := chat.Generate(context.Background(), "", "q")
	assert.ErrorIs(t, err, domain.ErrProviderFailure)
}

func TestNewOpenAIChat_MissingKey(t *testing.T) {
	t.Setenv("TEST_LLM_KEY_MISSING", "")
	_, err := NewOpenAIChat(Options{APIKeyEnv: "TEST_LLM_KEY_MISSING"})
	assert.Error(t, err)
}

func TestNewOllamaChat_Defaults(t *testing.T) {
	chat := NewOllamaChat(Options{Model: "llama3"})
	assert.Equal(t, "http://localhost:11434/v1", chat.baseURL)
	assert.Equal(t, "llama3", chat.ModelName())
}
