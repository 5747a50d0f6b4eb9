package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Model is one entry of the remote model catalog
type Model struct {
	ID          string `json:"id" yaml:"id"`
	Owner       string `json:"owner" yaml:"owner"`
	Description string `json:"description" yaml:"description"`
	// Backend names the provider client that serves this entry (groq, openai, ...)
	Backend string `json:"backend" yaml:"backend"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// FullID returns the catalog key "owner/id"
func (m Model) FullID() string {
	return m.Owner + "/" + m.ID
}

// ModelsConfig holds the remote model catalog
type ModelsConfig struct {
	models []Model
}

// NewModelsConfig loads the catalog from a JSON or YAML file (chosen by extension)
func NewModelsConfig(configPath string) (*ModelsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	var models []Model
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &models)
	default:
		err = json.Unmarshal(data, &models)
	}
	if err != nil {
		return nil, err
	}

	return &ModelsConfig{models: models}, nil
}

// NewModelsConfigFromList builds a catalog from an in-memory list
func NewModelsConfigFromList(models []Model) *ModelsConfig {
	return &ModelsConfig{models: models}
}

// GetAvailableModels returns the list of available models
func (mc *ModelsConfig) GetAvailableModels() []Model {
	return mc.models
}

// Find looks up a catalog entry by exact "owner/id"
func (mc *ModelsConfig) Find(fullID string) (Model, bool) {
	for _, model := range mc.models {
		if model.FullID() == fullID {
			return model, true
		}
	}
	return Model{}, false
}

// IsValidModel checks if a model ID is in the catalog
func (mc *ModelsConfig) IsValidModel(fullID string) bool {
	_, ok := mc.Find(fullID)
	return ok
}

// GetDefaultModel returns the first model as the default
func (mc *ModelsConfig) GetDefaultModel() string {
	if len(mc.models) > 0 {
		return mc.models[0].FullID()
	}
	return "Meta/llama3-8b-8192"
}
