package triage

import "context"

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	// ForceJSON asks the provider for a JSON-only response. Providers without
	// a native JSON mode get a system-prompt nudge instead.
	ForceJSON bool
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// EmbeddingClient turns text into a dense vector for grounding retrieval.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
