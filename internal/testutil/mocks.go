package testutil

import (
	"ai-chat/internal/config"
	"ai-chat/internal/repository/db"
	"ai-chat/internal/service/llm"
	"context"
	"errors"
	"sync"
	"time"
)

// MockStore is a mock implementation of db.Store for testing
type MockStore struct {
	UpsertConversationFunc     func(ctx context.Context, conv *db.Conversation) error
	GetConversationFunc        func(ctx context.Context, id, userID string) (*db.Conversation, error)
	ListConversationsFunc      func(ctx context.Context, userID string) ([]db.ConversationSummary, error)
	DeleteConversationFunc     func(ctx context.Context, id, userID string) error
	DeleteAllConversationsFunc func(ctx context.Context, userID string) error
	SetSharePathFunc           func(ctx context.Context, id, userID, path string) error
	GetBySharePathFunc         func(ctx context.Context, id string) (*db.Conversation, error)

	GetUserByUsernameFunc func(ctx context.Context, username string) (*db.User, error)
	CreateUserFunc        func(ctx context.Context, username, email, password string) (*db.User, error)
}

func (m *MockStore) UpsertConversation(ctx context.Context, conv *db.Conversation) error {
	if m.UpsertConversationFunc != nil {
		return m.UpsertConversationFunc(ctx, conv)
	}
	return errors.New("not implemented")
}

func (m *MockStore) GetConversation(ctx context.Context, id, userID string) (*db.Conversation, error) {
	if m.GetConversationFunc != nil {
		return m.GetConversationFunc(ctx, id, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) ListConversations(ctx context.Context, userID string) ([]db.ConversationSummary, error) {
	if m.ListConversationsFunc != nil {
		return m.ListConversationsFunc(ctx, userID)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) DeleteConversation(ctx context.Context, id, userID string) error {
	if m.DeleteConversationFunc != nil {
		return m.DeleteConversationFunc(ctx, id, userID)
	}
	return errors.New("not implemented")
}

func (m *MockStore) DeleteAllConversations(ctx context.Context, userID string) error {
	if m.DeleteAllConversationsFunc != nil {
		return m.DeleteAllConversationsFunc(ctx, userID)
	}
	return errors.New("not implemented")
}

func (m *MockStore) SetSharePath(ctx context.Context, id, userID, path string) error {
	if m.SetSharePathFunc != nil {
		return m.SetSharePathFunc(ctx, id, userID, path)
	}
	return errors.New("not implemented")
}

func (m *MockStore) GetBySharePath(ctx context.Context, id string) (*db.Conversation, error) {
	if m.GetBySharePathFunc != nil {
		return m.GetBySharePathFunc(ctx, id)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	if m.GetUserByUsernameFunc != nil {
		return m.GetUserByUsernameFunc(ctx, username)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) CreateUser(ctx context.Context, username, email, password string) (*db.User, error) {
	if m.CreateUserFunc != nil {
		return m.CreateUserFunc(ctx, username, email, password)
	}
	return nil, errors.New("not implemented")
}

func (m *MockStore) Close() error {
	return nil
}

// MockProvider is a mock implementation of llm.CompletionProvider
type MockProvider struct {
	NameValue      string
	StreamChatFunc func(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error)
}

func (m *MockProvider) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

func (m *MockProvider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	if m.StreamChatFunc != nil {
		return m.StreamChatFunc(ctx, req)
	}
	return nil, errors.New("not implemented")
}

// ScriptedProvider replays a fixed list of deltas, then finishes with Err or done.
// When Gate is set, every delta waits for a receive on it, so tests control pacing.
type ScriptedProvider struct {
	Deltas []string
	Err    error
	Usage  *llm.Usage
	Gate   chan struct{}
	Delay  time.Duration

	mu       sync.Mutex
	requests []llm.ChatRequest
}

func (s *ScriptedProvider) Name() string {
	return "scripted"
}

func (s *ScriptedProvider) StreamChat(ctx context.Context, req llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	chunks := make(chan llm.StreamChunk)
	go func() {
		defer close(chunks)
		send := func(c llm.StreamChunk) bool {
			select {
			case chunks <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, d := range s.Deltas {
			if s.Gate != nil {
				select {
				case <-s.Gate:
				case <-ctx.Done():
					send(llm.StreamChunk{Err: ctx.Err()})
					return
				}
			}
			if s.Delay > 0 {
				time.Sleep(s.Delay)
			}
			if !send(llm.StreamChunk{Content: d}) {
				return
			}
		}
		if s.Err != nil {
			send(llm.StreamChunk{Err: s.Err})
			return
		}
		send(llm.StreamChunk{Usage: s.Usage, IsDone: true})
	}()
	return chunks, nil
}

// Requests returns the requests received so far
func (s *ScriptedProvider) Requests() []llm.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.ChatRequest(nil), s.requests...)
}

// TestModelID is the catalog entry served by NewTestRegistry
const TestModelID = "Test/test-model"

// NewTestRegistry returns a registry whose every backend resolves to provider
func NewTestRegistry(provider llm.CompletionProvider) *llm.Registry {
	catalog := config.NewModelsConfigFromList([]config.Model{
		{ID: "test-model", Owner: "Test", Backend: "groq"},
	})
	return llm.NewRegistryWithBuilder(catalog, NewMockLLMConfig(), func(ctx context.Context, backend, apiKey, baseURL string) (llm.CompletionProvider, error) {
		return provider, nil
	})
}

// NewMockLLMConfig creates an LLM config for testing
func NewMockLLMConfig() *config.LLMConfig {
	return &config.LLMConfig{
		GroqAPIKey:          "test-groq-key",
		OpenAIAPIKey:        "test-openai-key",
		DefaultSystemPrompt: "You are a helpful assistant",
		GenerationTimeout:   5 * time.Second,
	}
}

// NewMockConfig creates a mock app config for testing
func NewMockConfig() *config.AppConfig {
	return &config.AppConfig{
		Server: config.ServerConfig{Port: "8080"},
		Auth: config.AuthConfig{
			JWTSecret:       []byte("test-secret-key-for-testing-only-0123456789"),
			TokenExpiration: time.Hour,
		},
		LLM: *NewMockLLMConfig(),
		Models: config.NewModelsConfigFromList([]config.Model{
			{ID: "test-model", Owner: "Test", Backend: "groq"},
		}),
	}
}
