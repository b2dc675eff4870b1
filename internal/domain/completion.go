package domain

import "context"

// Message roles for completion requests.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is a single chat message sent to the completion provider.
type Message struct {
	Role    string
	Content string
}

// CompletionParams tunes a single completion call.
type CompletionParams struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// CompletionResult carries the generated text and token usage.
type CompletionResult struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Completer is the language-completion provider contract.
type Completer interface {
	Complete(ctx context.Context, messages []Message, params CompletionParams) (CompletionResult, error)
}
