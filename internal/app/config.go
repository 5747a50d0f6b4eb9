package app

import (
	"ai-chat/internal/auth"
	"ai-chat/internal/config"
	"ai-chat/internal/conversation"
	"ai-chat/internal/repository/db"
	"ai-chat/internal/service/chat"
	conversationService "ai-chat/internal/service/conversation"
	"ai-chat/internal/service/llm"
	"ai-chat/internal/transcript"
)

// Config holds all application dependencies and configuration
type Config struct {
	// Store for conversations and users
	Store db.Store
	// Centralized application configuration
	AppConfig *config.AppConfig

	Registry      *llm.Registry
	Engine        *chat.Engine
	Sessions      *conversation.Manager
	Conversations *conversationService.ConversationService
	Auth          *auth.Service
	Renderer      *transcript.Renderer
}

// NewConfig wires the application services. A nil guard keeps streams
// exclusive within this process only.
func NewConfig(store db.Store, appConfig *config.AppConfig, registry *llm.Registry, guard conversation.StreamGuard) *Config {
	if registry == nil {
		registry = llm.NewRegistry(appConfig.Models, &appConfig.LLM)
	}
	engine := chat.NewEngine(registry, &appConfig.LLM)
	sessions := conversation.NewManager(store, engine, guard)

	return &Config{
		Store:         store,
		AppConfig:     appConfig,
		Registry:      registry,
		Engine:        engine,
		Sessions:      sessions,
		Conversations: conversationService.NewConversationService(store, sessions),
		Auth:          auth.NewService(store, appConfig.Auth),
		Renderer:      transcript.NewRenderer(),
	}
}

// ModelsConfig returns the remote model catalog
func (c *Config) ModelsConfig() *config.ModelsConfig {
	return c.AppConfig.Models
}
