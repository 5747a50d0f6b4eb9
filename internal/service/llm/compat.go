package llm

import (
	"ai-chat/internal/logger"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// CompatProvider streams from any OpenAI-compatible /chat/completions endpoint
// (Groq, OpenRouter, LM Studio) over raw SSE.
type CompatProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewCompatProvider creates a provider for an OpenAI-compatible endpoint
func NewCompatProvider(name, apiKey, baseURL string, client *http.Client) *CompatProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &CompatProvider{
		name:    name,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

type compatRequest struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Stream           bool      `json:"stream"`
	MaxTokens        *int      `json:"max_tokens,omitempty"`
	Temperature      *float64  `json:"temperature,omitempty"`
	TopP             *float64  `json:"top_p,omitempty"`
	FrequencyPenalty *float64  `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64  `json:"presence_penalty,omitempty"`
}

type compatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type compatStreamResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *compatUsage `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Name returns the backend name
func (p *CompatProvider) Name() string {
	return p.name
}

// StreamChat sends a streaming chat request and relays deltas as they arrive
func (p *CompatProvider) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	if p.apiKey == "" && p.name != BackendLMStudio {
		return nil, fmt.Errorf("%s API key not configured", p.name)
	}

	messages := withSystemPrompt(req)
	logger.Log.WithFields(logrus.Fields{
		"provider":      p.name,
		"model":         req.Model,
		"message_count": len(messages),
	}).Info("Calling OpenAI-compatible API (streaming)")

	jsonData, err := json.Marshal(compatRequest{
		Model:            req.Model,
		Messages:         messages,
		Stream:           true,
		MaxTokens:        req.Params.MaxOutputTokens,
		Temperature:      req.Params.Temperature,
		TopP:             req.Params.TopP,
		FrequencyPenalty: req.Params.FrequencyPenalty,
		PresencePenalty:  req.Params.PresencePenalty,
	})
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	chunks := make(chan StreamChunk)
	send := sender(ctx, chunks)

	go func() {
		defer resp.Body.Close()
		defer close(chunks)

		var usage *Usage
		deltas := 0

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()

			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				break
			}

			var streamResp compatStreamResponse
			if err := json.Unmarshal([]byte(payload), &streamResp); err != nil {
				logger.Log.WithError(err).Warn("Error parsing stream chunk")
				continue
			}

			if streamResp.Error != nil {
				send(StreamChunk{Err: fmt.Errorf("provider error: %s", streamResp.Error.Message)})
				return
			}

			if streamResp.Usage != nil {
				usage = &Usage{
					PromptTokens:     streamResp.Usage.PromptTokens,
					CompletionTokens: streamResp.Usage.CompletionTokens,
					TotalTokens:      streamResp.Usage.TotalTokens,
				}
			}

			if len(streamResp.Choices) > 0 && streamResp.Choices[0].Delta.Content != "" {
				deltas++
				if !send(StreamChunk{Content: streamResp.Choices[0].Delta.Content}) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil {
			logger.Log.WithError(err).Error("Scanner error during streaming")
			send(StreamChunk{Err: fmt.Errorf("error reading stream: %w", err)})
			return
		}

		logger.Log.WithFields(logrus.Fields{"provider": p.name, "delta_count": deltas}).Debug("Stream completed")
		send(StreamChunk{Usage: usage, IsDone: true})
	}()

	return chunks, nil
}
