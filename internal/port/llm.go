package port

import "context"

// LLM represents a language model for text generation.
type LLM interface {
	// Generate generates text from a system prompt and a user prompt.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
