package llm

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is an internal chat message representation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type Request struct {
	System      string
	Messages    []Message
	MaxTokens   int32
	Temperature float32
}

type Response struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

// Client completes chat requests against a language model.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Embedder produces sentence embeddings for semantic matching.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
