package validation

import (
	"math"
	"strings"
	"testing"
)

func TestChatRequestValidator_ValidateMessage(t *testing.T) {
	validator := NewChatRequestValidator()

	tests := []struct {
		name    string
		message string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid message",
			message: "Hello, world!",
			wantErr: false,
		},
		{
			name:    "valid message at the limit",
			message: strings.Repeat("я", MaxMessageLength),
			wantErr: false,
		},
		{
			name:    "empty message",
			message: "",
			wantErr: true,
			errMsg:  "message cannot be empty",
		},
		{
			name:    "whitespace only",
			message: " \n\t ",
			wantErr: true,
			errMsg:  "message cannot be empty",
		},
		{
			name:    "too long",
			message: strings.Repeat("a", MaxMessageLength+1),
			wantErr: true,
			errMsg:  "message must be at most 32000 characters long, got 32001",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateMessage(tt.message)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && err != nil && tt.errMsg != "" {
				if err.Error() != tt.errMsg {
					t.Errorf("ValidateMessage() error message = %v, want %v", err.Error(), tt.errMsg)
				}
			}
		})
	}
}

func TestChatRequestValidator_ValidateModelID(t *testing.T) {
	validator := NewChatRequestValidator()

	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "catalog id", id: "Meta/llama3-8b-8192", wantErr: false},
		{name: "nested id keeps everything after the first slash", id: "openai/gpt-4o/mini", wantErr: false},
		{name: "empty", id: "", wantErr: true},
		{name: "no owner", id: "gpt-4o", wantErr: true},
		{name: "empty owner", id: "/gpt-4o", wantErr: true},
		{name: "empty name", id: "openai/", wantErr: true},
		{name: "whitespace", id: "open ai/gpt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateModelID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateModelID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestChatRequestValidator_ValidateProvider(t *testing.T) {
	validator := NewChatRequestValidator()

	for _, p := range []string{"", "openai", "groq", "openrouter", "lmstudio", "gemini", "genkit"} {
		if err := validator.ValidateProvider(p); err != nil {
			t.Errorf("ValidateProvider(%q) unexpected error: %v", p, err)
		}
	}
	if err := validator.ValidateProvider("anthropic-direct"); err == nil {
		t.Error("ValidateProvider() expected error for unknown provider")
	}
}

func TestChatRequestValidator_ValidateOptions(t *testing.T) {
	validator := NewChatRequestValidator()

	tests := []struct {
		name    string
		options map[string]float64
		wantErr bool
	}{
		{name: "nil", options: nil, wantErr: false},
		{name: "known keys out of range are clamped later", options: map[string]float64{"temperature": 9, "maxOutputTokens": 1}, wantErr: false},
		{name: "unknown key", options: map[string]float64{"seed": 1}, wantErr: true},
		{name: "nan", options: map[string]float64{"topP": math.NaN()}, wantErr: true},
		{name: "inf", options: map[string]float64{"presencePenalty": math.Inf(1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateOptions(tt.options)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOptions() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestChatRequestValidator_ValidateModelConfig(t *testing.T) {
	validator := NewChatRequestValidator()

	if err := validator.ValidateModelConfig("Meta/llama3-8b-8192", "", map[string]float64{"temperature": 0.5}); err != nil {
		t.Errorf("ValidateModelConfig() unexpected error: %v", err)
	}
	if err := validator.ValidateModelConfig("bad", "", nil); err == nil {
		t.Error("ValidateModelConfig() expected error for bad id")
	}
	if err := validator.ValidateModelConfig("a/b", "nope", nil); err == nil {
		t.Error("ValidateModelConfig() expected error for unknown provider")
	}
}
