package llm

import (
	"ai-chat/internal/logger"
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

// OpenAIProvider streams completions through the go-openai client
type OpenAIProvider struct {
	client *openai.Client
}

// NewOpenAIProvider creates an OpenAI client bound to baseURL
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{client: openai.NewClientWithConfig(cfg)}
}

// Name returns the backend name
func (p *OpenAIProvider) Name() string {
	return BackendOpenAI
}

func toOpenAIRequest(req ChatRequest) openai.ChatCompletionRequest {
	messages := withSystemPrompt(req)
	out := openai.ChatCompletionRequest{
		Model:         req.Model,
		Messages:      make([]openai.ChatCompletionMessage, 0, len(messages)),
		Stream:        true,
		StreamOptions: &openai.StreamOptions{IncludeUsage: true},
	}
	for _, m := range messages {
		out.Messages = append(out.Messages, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
	}

	p := req.Params
	if p.MaxOutputTokens != nil {
		out.MaxTokens = *p.MaxOutputTokens
	}
	if p.Temperature != nil {
		out.Temperature = float32(*p.Temperature)
	}
	if p.TopP != nil {
		out.TopP = float32(*p.TopP)
	}
	if p.FrequencyPenalty != nil {
		out.FrequencyPenalty = float32(*p.FrequencyPenalty)
	}
	if p.PresencePenalty != nil {
		out.PresencePenalty = float32(*p.PresencePenalty)
	}
	return out
}

// StreamChat starts a streaming chat completion
func (p *OpenAIProvider) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	logger.Log.WithFields(logrus.Fields{
		"provider":      BackendOpenAI,
		"model":         req.Model,
		"message_count": len(req.Messages),
	}).Info("Calling OpenAI API (streaming)")

	stream, err := p.client.CreateChatCompletionStream(ctx, toOpenAIRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to create stream: %w", err)
	}

	chunks := make(chan StreamChunk)
	send := sender(ctx, chunks)

	go func() {
		defer stream.Close()
		defer close(chunks)

		var usage *Usage
		for {
			response, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				send(StreamChunk{Usage: usage, IsDone: true})
				return
			}
			if err != nil {
				send(StreamChunk{Err: fmt.Errorf("stream receive error: %w", err)})
				return
			}

			if response.Usage != nil {
				usage = &Usage{
					PromptTokens:     response.Usage.PromptTokens,
					CompletionTokens: response.Usage.CompletionTokens,
					TotalTokens:      response.Usage.TotalTokens,
				}
			}
			if len(response.Choices) > 0 && response.Choices[0].Delta.Content != "" {
				if !send(StreamChunk{Content: response.Choices[0].Delta.Content}) {
					return
				}
			}
		}
	}()

	return chunks, nil
}
