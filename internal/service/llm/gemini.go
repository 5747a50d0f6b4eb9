package llm

import (
	"ai-chat/internal/logger"
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

// GeminiProvider streams completions through the official Gemini SDK
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a Gemini client. An empty baseURL uses the SDK default.
func NewGeminiProvider(ctx context.Context, apiKey, baseURL string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiProvider{client: c}, nil
}

// Name returns the backend name
func (p *GeminiProvider) Name() string {
	return BackendGemini
}

// toGeminiContents maps history to Gemini roles. System turns inside the
// history are sent as user turns; the request system prompt goes to SystemInstruction.
func toGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}

func toGeminiConfig(req ChatRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	p := req.Params
	if p.MaxOutputTokens != nil {
		cfg.MaxOutputTokens = int32(*p.MaxOutputTokens)
	}
	if p.Temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*p.Temperature))
	}
	if p.TopP != nil {
		cfg.TopP = genai.Ptr(float32(*p.TopP))
	}
	if p.FrequencyPenalty != nil {
		cfg.FrequencyPenalty = genai.Ptr(float32(*p.FrequencyPenalty))
	}
	if p.PresencePenalty != nil {
		cfg.PresencePenalty = genai.Ptr(float32(*p.PresencePenalty))
	}
	return cfg
}

// StreamChat streams generated content and relays text parts as deltas
func (p *GeminiProvider) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	logger.Log.WithFields(logrus.Fields{
		"provider":      BackendGemini,
		"model":         req.Model,
		"message_count": len(req.Messages),
	}).Info("Calling Gemini API (streaming)")

	contents := toGeminiContents(req.Messages)
	cfg := toGeminiConfig(req)

	chunks := make(chan StreamChunk)
	send := sender(ctx, chunks)

	go func() {
		defer close(chunks)

		var usage *Usage
		for resp, err := range p.client.Models.GenerateContentStream(ctx, req.Model, contents, cfg) {
			if err != nil {
				send(StreamChunk{Err: fmt.Errorf("gemini stream error: %w", err)})
				return
			}
			if resp.UsageMetadata != nil {
				usage = &Usage{
					PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
					CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
					TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
				}
			}
			if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
				continue
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				if part.Text == "" || part.Thought {
					continue
				}
				if !send(StreamChunk{Content: part.Text}) {
					return
				}
			}
		}
		send(StreamChunk{Usage: usage, IsDone: true})
	}()

	return chunks, nil
}
