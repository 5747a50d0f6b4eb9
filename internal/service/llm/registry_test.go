package llm

import (
	"ai-chat/internal/config"
	"context"
	"errors"
	"testing"
)

type builtProvider struct {
	backend, apiKey, baseURL string
}

func (b *builtProvider) Name() string { return b.backend }

func (b *builtProvider) StreamChat(ctx context.Context, req ChatRequest) (<-chan StreamChunk, error) {
	return nil, errors.New("not used")
}

func newTestRegistry(override string) (*Registry, *int) {
	catalog := config.NewModelsConfigFromList([]config.Model{
		{ID: "llama3-8b-8192", Owner: "Meta", Backend: BackendGroq},
		{ID: "gpt-4o-mini", Owner: "OpenAI", Backend: BackendOpenAI, BaseURL: "http://proxy.local/v1"},
		{ID: "gemini-2.0-flash", Owner: "Google", Backend: BackendGemini},
		{ID: "weird", Owner: "Nobody", Backend: "carrier-pigeon"},
	})
	llmConfig := &config.LLMConfig{
		GroqAPIKey:      "groq-env-key",
		OpenAIAPIKey:    "openai-env-key",
		GeminiAPIKey:    "gemini-env-key",
		BaseURLOverride: override,
	}
	builds := 0
	r := NewRegistryWithBuilder(catalog, llmConfig, func(ctx context.Context, backend, apiKey, baseURL string) (CompletionProvider, error) {
		builds++
		return &builtProvider{backend: backend, apiKey: apiKey, baseURL: baseURL}, nil
	})
	return r, &builds
}

func TestResolve_CatalogEntries(t *testing.T) {
	tests := []struct {
		name        string
		override    string
		model       ModelConfig
		wantBackend string
		wantKey     string
		wantURL     string
		wantModel   string
	}{
		{
			name:        "groq default base url",
			model:       ModelConfig{ID: "Meta/llama3-8b-8192"},
			wantBackend: BackendGroq,
			wantKey:     "groq-env-key",
			wantURL:     "https://api.groq.com/openai/v1",
			wantModel:   "llama3-8b-8192",
		},
		{
			name:        "entry base url wins over override",
			override:    "http://override/v1",
			model:       ModelConfig{ID: "OpenAI/gpt-4o-mini"},
			wantBackend: BackendOpenAI,
			wantKey:     "openai-env-key",
			wantURL:     "http://proxy.local/v1",
			wantModel:   "gpt-4o-mini",
		},
		{
			name:        "override applies when entry has none",
			override:    "http://override/v1",
			model:       ModelConfig{ID: "Meta/llama3-8b-8192"},
			wantBackend: BackendGroq,
			wantKey:     "groq-env-key",
			wantURL:     "http://override/v1",
			wantModel:   "llama3-8b-8192",
		},
		{
			name:        "gemini uses sdk default",
			model:       ModelConfig{ID: "Google/gemini-2.0-flash"},
			wantBackend: BackendGemini,
			wantKey:     "gemini-env-key",
			wantURL:     "",
			wantModel:   "gemini-2.0-flash",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRegistry(tt.override)
			h, err := r.Resolve(context.Background(), tt.model)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			p := h.Provider.(*builtProvider)
			if p.backend != tt.wantBackend || p.apiKey != tt.wantKey || p.baseURL != tt.wantURL {
				t.Errorf("provider = %+v, want backend=%s key=%s url=%s", p, tt.wantBackend, tt.wantKey, tt.wantURL)
			}
			if h.Model != tt.wantModel {
				t.Errorf("Model = %s, want %s", h.Model, tt.wantModel)
			}
		})
	}
}

func TestResolve_CustomProvider(t *testing.T) {
	r, _ := newTestRegistry("http://override/v1")

	h, err := r.Resolve(context.Background(), ModelConfig{ID: "Meta/llama3-70b", Provider: BackendGroq, APIKey: "user-key"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	p := h.Provider.(*builtProvider)
	if p.apiKey != "user-key" {
		t.Errorf("apiKey = %s, want user-key", p.apiKey)
	}
	if p.baseURL != "https://api.groq.com/openai/v1" {
		t.Errorf("baseURL = %s, want groq default (override is for catalog entries only)", p.baseURL)
	}

	h, err = r.Resolve(context.Background(), ModelConfig{ID: "me/local", Provider: BackendOpenAI, APIKey: "k", APIURL: "http://mine/v1"})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got := h.Provider.(*builtProvider).baseURL; got != "http://mine/v1" {
		t.Errorf("baseURL = %s, want http://mine/v1", got)
	}
	if h.Model != "local" {
		t.Errorf("Model = %s, want local", h.Model)
	}
}

func TestResolve_Errors(t *testing.T) {
	r, builds := newTestRegistry("")

	_, err := r.Resolve(context.Background(), ModelConfig{ID: "Meta/missing"})
	var notFound *ModelNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Resolve(missing) error = %v, want ModelNotFoundError", err)
	}
	if notFound.ModelID != "Meta/missing" {
		t.Errorf("ModelID = %s, want Meta/missing", notFound.ModelID)
	}

	// bare id without owner never matches
	if _, err := r.Resolve(context.Background(), ModelConfig{ID: "llama3-8b-8192"}); !errors.As(err, &notFound) {
		t.Errorf("Resolve(bare id) error = %v, want ModelNotFoundError", err)
	}

	var unknown *UnknownProviderError
	if _, err := r.Resolve(context.Background(), ModelConfig{ID: "a/b", Provider: "anthropic"}); !errors.As(err, &unknown) {
		t.Errorf("Resolve(unknown provider) error = %v, want UnknownProviderError", err)
	}
	if _, err := r.Resolve(context.Background(), ModelConfig{ID: "Nobody/weird"}); !errors.As(err, &unknown) {
		t.Errorf("Resolve(unknown backend) error = %v, want UnknownProviderError", err)
	}

	if *builds != 0 {
		t.Errorf("builder called %d times on failed resolutions, want 0", *builds)
	}
}

func TestResolve_CachesProviders(t *testing.T) {
	r, builds := newTestRegistry("")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(ctx, ModelConfig{ID: "Meta/llama3-8b-8192"}); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}
	if *builds != 1 {
		t.Errorf("builds = %d, want 1 for a catalog backend", *builds)
	}

	// custom providers carry user keys and are built per resolution
	for i := 0; i < 2; i++ {
		h, err := r.Resolve(ctx, ModelConfig{ID: "x/y", Provider: BackendGroq, APIKey: "user-key"})
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got := h.Provider.(*builtProvider).apiKey; got != "user-key" {
			t.Errorf("apiKey = %s, want user-key", got)
		}
	}
	if *builds != 3 {
		t.Errorf("builds = %d, want 3", *builds)
	}
	if n := len(r.providers); n != 1 {
		t.Errorf("cached providers = %d, want 1", n)
	}
}

func TestResolve_BuildFailureIsGenerationError(t *testing.T) {
	catalog := config.NewModelsConfigFromList([]config.Model{
		{ID: "llama3-8b-8192", Owner: "Meta", Backend: BackendGenkit},
	})
	buildErr := errors.New("OPENROUTER_API_KEY not configured")
	r := NewRegistryWithBuilder(catalog, &config.LLMConfig{}, func(ctx context.Context, backend, apiKey, baseURL string) (CompletionProvider, error) {
		return nil, buildErr
	})

	for _, model := range []ModelConfig{
		{ID: "Meta/llama3-8b-8192"},
		{ID: "a/b", Provider: BackendGemini},
	} {
		_, err := r.Resolve(context.Background(), model)
		var genErr *GenerationError
		if !errors.As(err, &genErr) {
			t.Fatalf("Resolve(%s) error = %v, want GenerationError", model.ID, err)
		}
		if genErr.Model != model.ID {
			t.Errorf("Model = %s, want %s", genErr.Model, model.ID)
		}
		if !errors.Is(err, buildErr) {
			t.Errorf("Resolve(%s) error does not wrap the build failure: %v", model.ID, err)
		}
	}
	if n := len(r.providers); n != 0 {
		t.Errorf("cached providers = %d, want 0 after failed builds", n)
	}
}

func TestNewProvider_Backends(t *testing.T) {
	ctx := context.Background()
	for _, backend := range []string{BackendOpenAI, BackendGroq, BackendOpenRouter, BackendLMStudio} {
		p, err := NewProvider(ctx, backend, "key", DefaultBaseURL(backend))
		if err != nil {
			t.Fatalf("NewProvider(%s) error = %v", backend, err)
		}
		if p.Name() != backend {
			t.Errorf("Name() = %s, want %s", p.Name(), backend)
		}
	}

	var unknown *UnknownProviderError
	if _, err := NewProvider(ctx, "nope", "", ""); !errors.As(err, &unknown) {
		t.Errorf("NewProvider(nope) error = %v, want UnknownProviderError", err)
	}
	if _, err := NewProvider(ctx, BackendGemini, "", ""); err == nil {
		t.Error("NewProvider(gemini) without key should fail")
	}
}

func TestModelName(t *testing.T) {
	tests := map[string]string{
		"Meta/llama3-8b-8192": "llama3-8b-8192",
		"org/team/model":      "team/model",
		"plain":               "plain",
	}
	for id, want := range tests {
		if got := (ModelConfig{ID: id}).ModelName(); got != want {
			t.Errorf("ModelName(%s) = %s, want %s", id, got, want)
		}
	}
}
