package handlers

import (
	"ai-chat/internal/app"
	"ai-chat/internal/auth"
	"ai-chat/internal/config"
	"ai-chat/internal/conversation"
	"ai-chat/internal/logger"
	"ai-chat/internal/repository/db"
	"ai-chat/internal/service/llm"
	"ai-chat/internal/transcript"
	"ai-chat/pkg/validation"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// Request/Response types

type ModelRequest struct {
	ID       string             `json:"id"`
	Provider string             `json:"provider,omitempty"`
	APIKey   string             `json:"api_key,omitempty"`
	APIURL   string             `json:"api_url,omitempty"`
	Prompt   string             `json:"prompt,omitempty"`
	Options  map[string]float64 `json:"options,omitempty"`
}

type CreateConversationRequest struct {
	Model *ModelRequest `json:"model,omitempty"`
}

type CreateConversationResponse struct {
	ID    string `json:"id"`
	Model string `json:"model"`
}

type SubmitRequest struct {
	Content   string `json:"content"`
	MessageID string `json:"message_id,omitempty"`
}

type EditMessageRequest struct {
	Content string `json:"content"`
}

type ConversationInfo struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	MessageCount int     `json:"message_count"`
	SharePath    *string `json:"share_path,omitempty"`
	UpdatedAt    string  `json:"updated_at"`
}

type ConversationsResponse struct {
	Conversations []ConversationInfo `json:"conversations"`
}

type TranscriptResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Model     string            `json:"model"`
	Streaming bool              `json:"streaming"`
	Entries   []transcript.View `json:"entries"`
}

type ShareResponse struct {
	SharePath string `json:"share_path"`
}

type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type ModelsResponse struct {
	Models   []config.Model              `json:"models"`
	Profiles map[string]llm.ParamProfile `json:"profiles"`
}

type MissingKeysResponse struct {
	Missing []string `json:"missing"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ChatHandlers serves the conversation API
type ChatHandlers struct {
	config    *app.Config
	validator *validation.ChatRequestValidator
}

// NewChatHandlers creates a new ChatHandlers
func NewChatHandlers(config *app.Config) *ChatHandlers {
	return &ChatHandlers{
		config:    config,
		validator: validation.NewChatRequestValidator(),
	}
}

// CreateConversationHandler opens a new conversation session
func (ch *ChatHandlers) CreateConversationHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)

	var req CreateConversationRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	model, err := ch.modelConfig(req.Model)
	if err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	s := ch.config.Sessions.NewSession(user.ID, model)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(CreateConversationResponse{ID: s.ID(), Model: model.ID})
}

// GetConversationsHandler returns all conversations for the authenticated user
func (ch *ChatHandlers) GetConversationsHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)
	logger.Log.WithField("user_id", user.ID).Debug("Get conversations request")

	conversations, err := ch.config.Conversations.GetUserConversations(r.Context(), user.ID)
	if err != nil {
		logger.Log.WithError(err).Error("Error from conversation service")
		ch.sendServiceError(w, err, "Error retrieving conversations")
		return
	}

	convInfos := make([]ConversationInfo, 0, len(conversations))
	for _, conv := range conversations {
		convInfos = append(convInfos, ConversationInfo{
			ID:           conv.ID,
			Title:        conv.Title,
			MessageCount: conv.MessageCount,
			SharePath:    conv.SharePath,
			UpdatedAt:    conv.UpdatedAt.Format(time.RFC3339),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ConversationsResponse{
		Conversations: convInfos,
	})
}

// GetConversationHandler returns the transcript of a conversation, including a streaming turn
func (ch *ChatHandlers) GetConversationHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)
	s, err := ch.config.Sessions.Load(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving conversation")
		return
	}

	entries := transcript.Project(s.Snapshot())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(TranscriptResponse{
		ID:        s.ID(),
		Title:     s.Title(),
		Model:     s.Model().ID,
		Streaming: s.StreamOpen(),
		Entries:   transcript.Views(entries),
	})
}

// DeleteConversationHandler deletes a specific conversation
func (ch *ChatHandlers) DeleteConversationHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)
	convID := chi.URLParam(r, "id")
	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "conversation_id": convID}).Info("Delete conversation request")

	if err := ch.config.Conversations.DeleteConversation(r.Context(), convID, user.ID); err != nil {
		logger.Log.WithError(err).Error("Error from conversation service")
		ch.sendServiceError(w, err, "Error deleting conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DeleteResponse{
		Success: true,
		Message: "Conversation deleted successfully",
	})
}

// ClearConversationsHandler deletes every conversation of the user
func (ch *ChatHandlers) ClearConversationsHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)

	if err := ch.config.Conversations.ClearConversations(r.Context(), user.ID); err != nil {
		logger.Log.WithError(err).Error("Error from conversation service")
		ch.sendServiceError(w, err, "Error clearing conversations")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(DeleteResponse{
		Success: true,
		Message: "Conversations cleared",
	})
}

// SetModelHandler changes the model used by the next turn
func (ch *ChatHandlers) SetModelHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)
	s, err := ch.config.Sessions.Load(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving conversation")
		return
	}

	var req ModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	model, err := ch.modelConfig(&req)
	if err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	if err := ch.config.Sessions.SetModel(s, model); err != nil {
		ch.sendServiceError(w, err, "Error updating model")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(CreateConversationResponse{ID: s.ID(), Model: model.ID})
}

// ShareConversationHandler publishes a read-only copy of a conversation
func (ch *ChatHandlers) ShareConversationHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)
	convID := chi.URLParam(r, "id")

	path, err := ch.config.Conversations.ShareConversation(r.Context(), convID, user.ID)
	if err != nil {
		logger.Log.WithError(err).Error("Error sharing conversation")
		ch.sendServiceError(w, err, "Error sharing conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ShareResponse{SharePath: path})
}

// GetModelsHandler returns the remote model catalog and the option ranges per backend
func (ch *ChatHandlers) GetModelsHandler(w http.ResponseWriter, r *http.Request) {
	profiles := map[string]llm.ParamProfile{
		llm.BackendOpenAI: llm.ProfileFor(llm.BackendOpenAI),
		llm.BackendGemini: llm.ProfileFor(llm.BackendGemini),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ModelsResponse{
		Models:   ch.config.Registry.Catalog(),
		Profiles: profiles,
	})
}

// MissingKeysHandler reports unset provider keys
func (ch *ChatHandlers) MissingKeysHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(MissingKeysResponse{Missing: config.MissingKeys()})
}

// Helper methods

// modelConfig validates a requested model, defaulting to the first catalog entry
func (ch *ChatHandlers) modelConfig(req *ModelRequest) (llm.ModelConfig, error) {
	if req == nil || req.ID == "" {
		id := ch.config.ModelsConfig().GetDefaultModel()
		if req == nil {
			return llm.ModelConfig{ID: id}, nil
		}
		req.ID = id
	}
	if err := ch.validator.ValidateModelConfig(req.ID, req.Provider, req.Options); err != nil {
		return llm.ModelConfig{}, err
	}
	return llm.ModelConfig{
		ID:       req.ID,
		Provider: req.Provider,
		APIKey:   req.APIKey,
		APIURL:   req.APIURL,
		Prompt:   req.Prompt,
		Options:  req.Options,
	}, nil
}

// sendError sends a standardized JSON error response
func (ch *ChatHandlers) sendError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := ErrorResponse{
		Code:    status,
		Message: message,
	}
	if err != nil {
		errResp.Error = err.Error()
	}
	json.NewEncoder(w).Encode(errResp)
}

// sendServiceError maps core errors to HTTP statuses
func (ch *ChatHandlers) sendServiceError(w http.ResponseWriter, err error, fallback string) {
	status, message := statusFor(err)
	if status == http.StatusInternalServerError {
		message = fallback
	}
	ch.sendError(w, status, message, err)
}

func statusFor(err error) (int, string) {
	var notFound *llm.ModelNotFoundError
	var unknown *llm.UnknownProviderError
	var genErr *llm.GenerationError
	switch {
	case errors.Is(err, db.ErrUnauthorized):
		return http.StatusForbidden, "Unauthorized"
	case errors.Is(err, conversation.ErrSessionNotFound), errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound, "Conversation not found"
	case errors.Is(err, conversation.ErrMessageNotFound):
		return http.StatusNotFound, "Message not found"
	case errors.Is(err, conversation.ErrStreamOpen):
		return http.StatusConflict, "A response is still streaming"
	case errors.Is(err, conversation.ErrNoUserMessage):
		return http.StatusBadRequest, "Nothing to regenerate"
	case errors.As(err, &notFound), errors.As(err, &unknown):
		return http.StatusBadRequest, "Invalid model"
	case errors.As(err, &genErr):
		return http.StatusBadGateway, "Model provider unavailable"
	case errors.Is(err, db.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Storage unavailable"
	}
	return http.StatusInternalServerError, "Internal error"
}

// sessionUser returns the user set by the auth middleware
func sessionUser(r *http.Request) auth.User {
	user, _ := auth.UserFromContext(r.Context())
	return user
}
