package chat

import (
	"ai-chat/internal/config"
	"ai-chat/internal/logger"
	"ai-chat/internal/metrics"
	"ai-chat/internal/service/llm"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Engine runs streaming completions for resolved models
type Engine struct {
	registry      *llm.Registry
	defaultPrompt string
	timeout       time.Duration
	newID         func() string
}

// NewEngine creates a completion engine
func NewEngine(registry *llm.Registry, llmConfig *config.LLMConfig) *Engine {
	timeout := llmConfig.GenerationTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Engine{
		registry:      registry,
		defaultPrompt: llmConfig.DefaultSystemPrompt,
		timeout:       timeout,
		newID:         func() string { return uuid.New().String() },
	}
}

// Registry returns the model registry used for resolution
func (e *Engine) Registry() *llm.Registry {
	return e.registry
}

// Generate starts one assistant turn over history and returns its live handle.
// Resolution failures are returned directly and nothing is streamed. Provider
// failures, before or during streaming, fail the handle with a *llm.GenerationError.
// The generation outlives ctx cancellation and is bounded by the engine timeout.
func (e *Engine) Generate(ctx context.Context, history []llm.Message, model llm.ModelConfig) (*LiveText, error) {
	handle, err := e.registry.Resolve(ctx, model)
	if err != nil {
		return nil, err
	}

	live := newLiveText(e.newID())

	prompt := model.Prompt
	if prompt == "" {
		prompt = e.defaultPrompt
	}
	req := llm.ChatRequest{
		Model:        handle.Model,
		Messages:     append([]llm.Message(nil), history...),
		SystemPrompt: prompt,
		Params:       handle.Profile.Clamp(model.Options),
	}

	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	live.cancel = cancel

	providerName := handle.Provider.Name()
	fields := logrus.Fields{
		"message_id":    live.ID(),
		"provider":      providerName,
		"model":         handle.Model,
		"message_count": len(history),
	}
	logger.Log.WithFields(fields).Debug("Starting generation")

	started := time.Now()
	metrics.StreamOpened()

	chunks, err := handle.Provider.StreamChat(genCtx, req)
	if err != nil {
		cancel()
		e.fail(live, handle, err, started, 0, fields)
		return live, nil
	}

	go func() {
		defer cancel()

		var usage *llm.Usage
		var streamErr error
		completed := false
		deltas := 0

		for chunk := range chunks {
			switch {
			case chunk.Err != nil:
				streamErr = chunk.Err
			case chunk.IsDone:
				completed = true
				usage = chunk.Usage
			case chunk.Content != "":
				deltas++
				live.append(chunk.Content)
			}
		}

		if streamErr == nil && !completed {
			streamErr = genCtx.Err()
			if streamErr == nil {
				streamErr = errors.New("stream closed before completion")
			}
		}
		if streamErr != nil {
			e.fail(live, handle, streamErr, started, deltas, fields)
			return
		}

		text := live.Value()
		if usage == nil {
			usage = llm.EstimateUsage(req.Messages, text)
		}
		live.finish(nil, usage)

		metrics.ObserveGeneration(providerName, handle.Model, metrics.OutcomeSuccess, time.Since(started), deltas)
		metrics.ObserveTokens(providerName, handle.Model, usage.PromptTokens, usage.CompletionTokens)

		logger.Log.WithFields(fields).WithFields(logrus.Fields{
			"delta_count":    deltas,
			"response_chars": len(text),
			"total_tokens":   usage.TotalTokens,
			"elapsed_ms":     time.Since(started).Milliseconds(),
		}).Info("Generation completed")
	}()

	return live, nil
}

func (e *Engine) fail(live *LiveText, handle *llm.Handle, cause error, started time.Time, deltas int, fields logrus.Fields) {
	outcome := metrics.OutcomeError
	if errors.Is(cause, context.DeadlineExceeded) {
		outcome = metrics.OutcomeTimeout
		cause = fmt.Errorf("generation timed out after %s: %w", e.timeout, cause)
	}
	genErr := &llm.GenerationError{Provider: handle.Provider.Name(), Model: handle.Model, Cause: cause}
	live.finish(genErr, nil)

	metrics.ObserveGeneration(handle.Provider.Name(), handle.Model, outcome, time.Since(started), deltas)
	logger.Log.WithFields(fields).WithError(cause).WithField("delta_count", deltas).Error("Generation failed")
}
