package llm

import (
	"ai-chat/internal/config"
	"ai-chat/internal/logger"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Backend names
const (
	BackendOpenAI     = "openai"
	BackendGroq       = "groq"
	BackendOpenRouter = "openrouter"
	BackendLMStudio   = "lmstudio"
	BackendGemini     = "gemini"
	BackendGenkit     = "genkit"
)

var defaultBaseURLs = map[string]string{
	BackendOpenAI:     "https://api.openai.com/v1",
	BackendGroq:       "https://api.groq.com/openai/v1",
	BackendOpenRouter: "https://openrouter.ai/api/v1",
	BackendLMStudio:   "http://localhost:1234/v1",
	BackendGenkit:     "https://openrouter.ai/api/v1",
	BackendGemini:     "",
}

// KnownProvider reports whether name is a supported backend
func KnownProvider(name string) bool {
	_, ok := defaultBaseURLs[name]
	return ok
}

// DefaultBaseURL returns the default endpoint of a backend ("" means SDK default)
func DefaultBaseURL(backend string) string {
	return defaultBaseURLs[backend]
}

// ModelConfig is the model selection of one conversation.
// An empty Provider selects a remote catalog entry by ID ("owner/id").
type ModelConfig struct {
	ID       string             `json:"id"`
	Provider string             `json:"provider"`
	APIKey   string             `json:"apiKey,omitempty"`
	APIURL   string             `json:"apiURL,omitempty"`
	Prompt   string             `json:"prompt"`
	Options  map[string]float64 `json:"options"`
}

// ModelName returns the id sent to the provider: the part after the first "/"
func (m ModelConfig) ModelName() string {
	if _, name, ok := strings.Cut(m.ID, "/"); ok {
		return name
	}
	return m.ID
}

// Handle is a resolved model: a provider bound to an endpoint plus its parameter profile
type Handle struct {
	Provider CompletionProvider
	Model    string
	Profile  ParamProfile
}

// Builder constructs a provider client for a backend
type Builder func(ctx context.Context, backend, apiKey, baseURL string) (CompletionProvider, error)

// Registry resolves model configurations to provider handles
type Registry struct {
	catalog *config.ModelsConfig
	llm     *config.LLMConfig
	build   Builder

	mu        sync.Mutex
	providers map[string]CompletionProvider
}

// NewRegistry creates a registry over the remote catalog and environment keys
func NewRegistry(catalog *config.ModelsConfig, llmConfig *config.LLMConfig) *Registry {
	return NewRegistryWithBuilder(catalog, llmConfig, NewProvider)
}

// NewRegistryWithBuilder is NewRegistry with a custom provider constructor
func NewRegistryWithBuilder(catalog *config.ModelsConfig, llmConfig *config.LLMConfig, build Builder) *Registry {
	return &Registry{
		catalog:   catalog,
		llm:       llmConfig,
		build:     build,
		providers: make(map[string]CompletionProvider),
	}
}

// NewProvider builds the client for backend. Construction does not touch the network.
func NewProvider(ctx context.Context, backend, apiKey, baseURL string) (CompletionProvider, error) {
	switch backend {
	case BackendOpenAI:
		return NewOpenAIProvider(apiKey, baseURL), nil
	case BackendGroq, BackendOpenRouter, BackendLMStudio:
		return NewCompatProvider(backend, apiKey, baseURL, nil), nil
	case BackendGemini:
		return NewGeminiProvider(ctx, apiKey, baseURL)
	case BackendGenkit:
		return NewGenkitProvider(ctx, apiKey, baseURL)
	}
	return nil, &UnknownProviderError{Provider: backend}
}

// Catalog returns the remote model catalog
func (r *Registry) Catalog() []config.Model {
	return r.catalog.GetAvailableModels()
}

// Resolve binds a model configuration to a provider handle
func (r *Registry) Resolve(ctx context.Context, model ModelConfig) (*Handle, error) {
	var backend, apiKey, baseURL string

	switch model.Provider {
	case "":
		entry, ok := r.catalog.Find(model.ID)
		if !ok {
			return nil, &ModelNotFoundError{ModelID: model.ID}
		}
		backend = entry.Backend
		if !KnownProvider(backend) {
			return nil, &UnknownProviderError{Provider: backend}
		}
		apiKey = r.llm.APIKeyFor(backend)
		baseURL = firstNonEmpty(entry.BaseURL, r.llm.BaseURLOverride, DefaultBaseURL(backend))
	default:
		if !KnownProvider(model.Provider) {
			return nil, &UnknownProviderError{Provider: model.Provider}
		}
		backend = model.Provider
		apiKey = model.APIKey
		baseURL = firstNonEmpty(model.APIURL, DefaultBaseURL(backend))
	}

	var provider CompletionProvider
	var err error
	if model.Provider == "" {
		provider, err = r.provider(ctx, backend, apiKey, baseURL)
	} else {
		// user-supplied keys are not retained past the request
		provider, err = r.build(ctx, backend, apiKey, baseURL)
	}
	if err != nil {
		return nil, &GenerationError{Provider: backend, Model: model.ID, Cause: fmt.Errorf("error creating %s provider: %w", backend, err)}
	}

	logger.Log.WithFields(logrus.Fields{
		"model":    model.ID,
		"provider": backend,
		"custom":   model.Provider != "",
	}).Debug("Resolved model")

	return &Handle{
		Provider: provider,
		Model:    model.ModelName(),
		Profile:  ProfileFor(backend),
	}, nil
}

// provider returns the cached client of a catalog backend, building it once.
// Catalog keys come from the environment, so the cache is bounded by the catalog.
func (r *Registry) provider(ctx context.Context, backend, apiKey, baseURL string) (CompletionProvider, error) {
	key := backend + "|" + baseURL

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.providers[key]; ok {
		return p, nil
	}
	p, err := r.build(ctx, backend, apiKey, baseURL)
	if err != nil {
		return nil, err
	}
	r.providers[key] = p
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
