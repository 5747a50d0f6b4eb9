package llm

import (
	"ai-chat/internal/logger"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
)

func encoding() *tiktoken.Tiktoken {
	encOnce.Do(func() {
		var err error
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			logger.Log.WithError(err).Warn("tiktoken encoding unavailable, falling back to rough token estimate")
		}
	})
	return enc
}

// CountTokens estimates the token count of text with cl100k_base.
// Without the encoding it falls back to four characters per token.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if e := encoding(); e != nil {
		return len(e.Encode(text, nil, nil))
	}
	return (len([]rune(text)) + 3) / 4
}

// EstimateUsage approximates usage for providers that report none.
// Each message carries a small framing overhead.
func EstimateUsage(prompt []Message, completion string) *Usage {
	promptTokens := 0
	for _, m := range prompt {
		promptTokens += CountTokens(m.Content) + 4
	}
	completionTokens := CountTokens(completion)
	return &Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      promptTokens + completionTokens,
	}
}
