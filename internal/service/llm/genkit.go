package llm

import (
	"ai-chat/internal/logger"
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai"
	"github.com/openai/openai-go"
	"github.com/sirupsen/logrus"
)

const genkitPluginName = "openrouter"

// GenkitProvider streams completions through Firebase Genkit with an
// OpenAI-compatible plugin (OpenRouter by default).
type GenkitProvider struct {
	genkit *genkit.Genkit
}

// NewGenkitProvider initializes Genkit against an OpenAI-compatible endpoint
func NewGenkitProvider(ctx context.Context, apiKey, baseURL string) (*GenkitProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY not configured")
	}

	g := genkit.Init(ctx,
		genkit.WithPlugins(&compat_oai.OpenAICompatible{
			Provider: genkitPluginName,
			APIKey:   apiKey,
			BaseURL:  baseURL,
		}),
	)

	logger.Log.WithField("base_url", baseURL).Info("Initialized Genkit with OpenAI-compatible provider")

	return &GenkitProvider{genkit: g}, nil
}

// Name returns the backend name
func (p *GenkitProvider) Name() string {
	return BackendGenkit
}

func toGenkitMessages(messages []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(messages))
	for _, msg := range messages {
		role := ai.RoleUser
		switch msg.Role {
		case "assistant":
			role = ai.RoleModel
		case "system":
			role = ai.RoleSystem
		case "tool":
			role = ai.RoleTool
		}
		out = append(out, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(msg.Content)},
		})
	}
	return out
}

func toGenkitConfig(params GenerationParams) *openai.ChatCompletionNewParams {
	config := &openai.ChatCompletionNewParams{}
	if params.Temperature != nil {
		config.Temperature = openai.Float(*params.Temperature)
	}
	if params.TopP != nil {
		config.TopP = openai.Float(*params.TopP)
	}
	if params.MaxOutputTokens != nil {
		config.MaxTokens = openai.Int(int64(*params.MaxOutputTokens))
	}
	if params.FrequencyPenalty != nil {
		config.FrequencyPenalty = openai.Float(*params.FrequencyPenalty)
	}
	if params.PresencePenalty != nil {
		config.PresencePenalty = openai.Float(*params.PresencePenalty)
	}
	return config
}

// StreamChat generates with streaming and relays text parts as deltas
func (p *GenkitProvider) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	model := genkitPluginName + "/" + req.Model
	messages := toGenkitMessages(withSystemPrompt(req))

	logger.Log.WithFields(logrus.Fields{
		"provider":      BackendGenkit,
		"model":         model,
		"message_count": len(messages),
	}).Info("Calling Genkit (streaming)")

	chunks := make(chan StreamChunk)
	send := sender(ctx, chunks)

	go func() {
		defer close(chunks)

		resp, err := genkit.Generate(ctx, p.genkit,
			ai.WithMessages(messages...),
			ai.WithModelName(model),
			ai.WithConfig(toGenkitConfig(req.Params)),
			ai.WithStreaming(func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
				for _, part := range chunk.Content {
					if part.IsText() && part.Text != "" {
						if !send(StreamChunk{Content: part.Text}) {
							return ctx.Err()
						}
					}
				}
				return nil
			}),
		)
		if err != nil {
			logger.Log.WithError(err).Error("Stream error")
			send(StreamChunk{Err: fmt.Errorf("genkit generation failed: %w", err)})
			return
		}

		var usage *Usage
		if resp.Usage != nil {
			usage = &Usage{
				PromptTokens:     int(resp.Usage.InputTokens),
				CompletionTokens: int(resp.Usage.OutputTokens),
				TotalTokens:      int(resp.Usage.TotalTokens),
			}
		}
		send(StreamChunk{Usage: usage, IsDone: true})
	}()

	return chunks, nil
}
