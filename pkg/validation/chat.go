package validation

import (
	"ai-chat/internal/service/llm"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds a single user message, in characters
const MaxMessageLength = 32000

var modelIDPattern = regexp.MustCompile(`^[^/\s]+/\S+$`)

// ChatRequestValidator validates chat-related requests
type ChatRequestValidator struct{}

// NewChatRequestValidator creates a new ChatRequestValidator
func NewChatRequestValidator() *ChatRequestValidator {
	return &ChatRequestValidator{}
}

// ValidateMessage validates a chat message
func (v *ChatRequestValidator) ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message cannot be empty")
	}
	if n := utf8.RuneCountInString(message); n > MaxMessageLength {
		return fmt.Errorf("message must be at most %d characters long, got %d", MaxMessageLength, n)
	}
	return nil
}

// ValidateModelID validates an owner/id model identifier
func (v *ChatRequestValidator) ValidateModelID(id string) error {
	if id == "" {
		return errors.New("model cannot be empty")
	}
	if !modelIDPattern.MatchString(id) {
		return fmt.Errorf("model must have the form owner/id, got %q", id)
	}
	return nil
}

// ValidateProvider validates a provider name. Empty selects the remote catalog.
func (v *ChatRequestValidator) ValidateProvider(provider string) error {
	if provider == "" || llm.KnownProvider(provider) {
		return nil
	}
	return fmt.Errorf("unknown provider %q", provider)
}

// ValidateOptions validates generation options. Values are clamped later, so only keys and finiteness are checked.
func (v *ChatRequestValidator) ValidateOptions(options map[string]float64) error {
	for key, value := range options {
		if !llm.IsKnownOption(key) {
			return fmt.Errorf("unknown option %q", key)
		}
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("option %s must be a finite number", key)
		}
	}
	return nil
}

// ValidateModelConfig validates a complete model selection
func (v *ChatRequestValidator) ValidateModelConfig(id, provider string, options map[string]float64) error {
	if err := v.ValidateModelID(id); err != nil {
		return err
	}

	if err := v.ValidateProvider(provider); err != nil {
		return err
	}

	if err := v.ValidateOptions(options); err != nil {
		return err
	}

	return nil
}
