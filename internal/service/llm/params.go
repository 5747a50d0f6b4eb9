package llm

import "math"

// Option keys accepted in ModelConfig.Options
const (
	OptMaxOutputTokens  = "maxOutputTokens"
	OptTemperature      = "temperature"
	OptTopP             = "topP"
	OptFrequencyPenalty = "frequencyPenalty"
	OptPresencePenalty  = "presencePenalty"
)

// Range is the declared bounds of one generation option
type Range struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
}

// Clamp constrains v to [Min, Max]
func (r Range) Clamp(v float64) float64 {
	return math.Max(r.Min, math.Min(r.Max, v))
}

// ParamProfile is the set of options a provider accepts
type ParamProfile struct {
	Name   string           `json:"name"`
	Ranges map[string]Range `json:"ranges"`
}

var openAIProfile = ParamProfile{
	Name: "openai",
	Ranges: map[string]Range{
		OptMaxOutputTokens:  {Min: 50, Max: 4096, Default: 2048},
		OptTemperature:      {Min: 0, Max: 2, Default: 1},
		OptTopP:             {Min: 0, Max: 1, Default: 1},
		OptFrequencyPenalty: {Min: 0, Max: 2, Default: 0},
		OptPresencePenalty:  {Min: 0, Max: 2, Default: 0},
	},
}

// gemini has no penalty knobs on most models and caps temperature lower
var geminiProfile = ParamProfile{
	Name: "gemini",
	Ranges: map[string]Range{
		OptMaxOutputTokens: {Min: 50, Max: 8192, Default: 2048},
		OptTemperature:     {Min: 0, Max: 2, Default: 1},
		OptTopP:            {Min: 0, Max: 1, Default: 0.95},
	},
}

// ProfileFor returns the parameter profile of a backend. Unlisted backends use the openai profile.
func ProfileFor(backend string) ParamProfile {
	if backend == BackendGemini {
		return geminiProfile
	}
	return openAIProfile
}

// IsKnownOption reports whether key is a generation option of any profile
func IsKnownOption(key string) bool {
	_, ok := openAIProfile.Ranges[key]
	return ok
}

// Clamp converts raw options into GenerationParams, clamping every known key.
// Unknown keys and non-finite values are dropped; missing keys stay nil.
func (p ParamProfile) Clamp(options map[string]float64) GenerationParams {
	var params GenerationParams
	for key, raw := range options {
		r, ok := p.Ranges[key]
		if !ok || math.IsNaN(raw) || math.IsInf(raw, 0) {
			continue
		}
		v := r.Clamp(raw)
		switch key {
		case OptMaxOutputTokens:
			n := int(math.Round(v))
			params.MaxOutputTokens = &n
		case OptTemperature:
			params.Temperature = &v
		case OptTopP:
			params.TopP = &v
		case OptFrequencyPenalty:
			params.FrequencyPenalty = &v
		case OptPresencePenalty:
			params.PresencePenalty = &v
		}
	}
	return params
}
