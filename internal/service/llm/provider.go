package llm

import "context"

// Message is one turn of a chat history as sent to a provider
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams are clamped generation options. Nil fields are left to the provider default.
type GenerationParams struct {
	MaxOutputTokens  *int
	Temperature      *float64
	TopP             *float64
	FrequencyPenalty *float64
	PresencePenalty  *float64
}

// ChatRequest is a single streaming completion request
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	Params       GenerationParams
}

// Usage reports token counts for one generation
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// StreamChunk is one event of a provider stream.
// Exactly one chunk carries IsDone or Err, and it is the last before the channel closes.
type StreamChunk struct {
	Content string
	Usage   *Usage
	Err     error
	IsDone  bool
}

// CompletionProvider streams chat completions from one backend
type CompletionProvider interface {
	// Name returns the backend name (groq, openai, ...)
	Name() string
	// StreamChat starts a completion. Errors returned here happen before any delta;
	// later failures arrive as a chunk with Err set.
	StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error)
}

// withSystemPrompt prepends the system prompt to the history
func withSystemPrompt(req ChatRequest) []Message {
	if req.SystemPrompt == "" {
		return req.Messages
	}
	return append([]Message{{Role: "system", Content: req.SystemPrompt}}, req.Messages...)
}

// sender returns a send function that gives up once ctx is done
func sender(ctx context.Context, chunks chan<- StreamChunk) func(StreamChunk) bool {
	return func(c StreamChunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}
}
