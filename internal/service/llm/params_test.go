package llm

import (
	"math"
	"testing"
)

func TestParamProfile_Clamp(t *testing.T) {
	profile := ProfileFor(BackendOpenAI)

	params := profile.Clamp(map[string]float64{
		OptMaxOutputTokens:  10000,
		OptTemperature:      -1,
		OptTopP:             0.5,
		OptFrequencyPenalty: 3,
		"seed":              42,
	})

	if params.MaxOutputTokens == nil || *params.MaxOutputTokens != 4096 {
		t.Errorf("MaxOutputTokens = %v, want 4096", params.MaxOutputTokens)
	}
	if params.Temperature == nil || *params.Temperature != 0 {
		t.Errorf("Temperature = %v, want 0", params.Temperature)
	}
	if params.TopP == nil || *params.TopP != 0.5 {
		t.Errorf("TopP = %v, want 0.5", params.TopP)
	}
	if params.FrequencyPenalty == nil || *params.FrequencyPenalty != 2 {
		t.Errorf("FrequencyPenalty = %v, want 2", params.FrequencyPenalty)
	}
	if params.PresencePenalty != nil {
		t.Errorf("PresencePenalty = %v, want nil for missing key", *params.PresencePenalty)
	}
}

func TestParamProfile_ClampLowerBoundAndNonFinite(t *testing.T) {
	params := ProfileFor(BackendGroq).Clamp(map[string]float64{
		OptMaxOutputTokens: 1,
		OptTemperature:     math.NaN(),
		OptTopP:            math.Inf(1),
	})

	if params.MaxOutputTokens == nil || *params.MaxOutputTokens != 50 {
		t.Errorf("MaxOutputTokens = %v, want 50", params.MaxOutputTokens)
	}
	if params.Temperature != nil || params.TopP != nil {
		t.Error("non-finite values should be dropped")
	}
}

func TestParamProfile_GeminiDropsPenalties(t *testing.T) {
	params := ProfileFor(BackendGemini).Clamp(map[string]float64{
		OptFrequencyPenalty: 1,
		OptMaxOutputTokens:  8000,
	})
	if params.FrequencyPenalty != nil {
		t.Error("gemini profile should drop frequencyPenalty")
	}
	if params.MaxOutputTokens == nil || *params.MaxOutputTokens != 8000 {
		t.Errorf("MaxOutputTokens = %v, want 8000", params.MaxOutputTokens)
	}
}

func TestIsKnownOption(t *testing.T) {
	if !IsKnownOption(OptTemperature) {
		t.Error("temperature should be known")
	}
	if IsKnownOption("topK") {
		t.Error("topK should be unknown")
	}
}

func TestEstimateUsage(t *testing.T) {
	usage := EstimateUsage([]Message{{Role: "user", Content: "Hello there"}}, "Hi! How can I help?")
	if usage.PromptTokens <= 4 {
		t.Errorf("PromptTokens = %d, want > 4", usage.PromptTokens)
	}
	if usage.CompletionTokens == 0 {
		t.Error("CompletionTokens = 0, want > 0")
	}
	if usage.TotalTokens != usage.PromptTokens+usage.CompletionTokens {
		t.Errorf("TotalTokens = %d, want sum", usage.TotalTokens)
	}
	if CountTokens("") != 0 {
		t.Error("CountTokens(\"\") should be 0")
	}
}
