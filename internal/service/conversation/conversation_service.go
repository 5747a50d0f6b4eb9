package conversation

import (
	"ai-chat/internal/logger"
	"ai-chat/internal/repository/db"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ConversationInfo is one row of a user's conversation history
type ConversationInfo struct {
	ID           string
	Title        string
	MessageCount int
	SharePath    *string
	UpdatedAt    time.Time
}

// Sessions is the part of the session manager the history service drives
type Sessions interface {
	IsOpen(id, userID string) bool
	Close(id string)
	CloseUser(userID string)
}

// ConversationService handles the business logic for conversation history
type ConversationService struct {
	store    db.ConversationStore
	sessions Sessions
}

// NewConversationService creates a new ConversationService
func NewConversationService(store db.ConversationStore, sessions Sessions) *ConversationService {
	return &ConversationService{
		store:    store,
		sessions: sessions,
	}
}

// GetUserConversations retrieves the user's conversations, most recent first
func (s *ConversationService) GetUserConversations(ctx context.Context, userID string) ([]ConversationInfo, error) {
	summaries, err := s.store.ListConversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve conversations: %w", err)
	}

	result := make([]ConversationInfo, 0, len(summaries))
	for _, c := range summaries {
		result = append(result, ConversationInfo{
			ID:           c.ID,
			Title:        c.Title,
			MessageCount: c.MessageCount,
			SharePath:    c.SharePath,
			UpdatedAt:    c.UpdatedAt,
		})
	}
	return result, nil
}

// GetConversation retrieves a persisted conversation owned by userID
func (s *ConversationService) GetConversation(ctx context.Context, id, userID string) (*db.Conversation, error) {
	conv, err := s.store.GetConversation(ctx, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %s: %w", id, db.ErrNotFound)
	}
	return conv, nil
}

// DeleteConversation deletes a conversation and closes its open session.
// A conversation that was never persisted only has its session closed.
func (s *ConversationService) DeleteConversation(ctx context.Context, id, userID string) error {
	// close first so a finishing turn cannot write the row back
	open := s.sessions.IsOpen(id, userID)
	if open {
		s.sessions.Close(id)
	}

	err := s.store.DeleteConversation(ctx, id, userID)
	if err != nil && !(open && errors.Is(err, db.ErrUnauthorized)) {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": id,
		"user_id":         userID,
	}).Info("Conversation deleted")
	return nil
}

// ClearConversations deletes every conversation of userID
func (s *ConversationService) ClearConversations(ctx context.Context, userID string) error {
	s.sessions.CloseUser(userID)
	if err := s.store.DeleteAllConversations(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear conversations: %w", err)
	}

	logger.Log.WithField("user_id", userID).Info("Conversations cleared")
	return nil
}

// ShareConversation publishes a conversation read-only and returns its share path
func (s *ConversationService) ShareConversation(ctx context.Context, id, userID string) (string, error) {
	path := db.SharePathFor(id)
	if err := s.store.SetSharePath(ctx, id, userID, path); err != nil {
		return "", fmt.Errorf("failed to share conversation: %w", err)
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": id,
		"user_id":         userID,
		"share_path":      path,
	}).Info("Conversation shared")
	return path, nil
}

// GetSharedConversation is the public read of a shared conversation
func (s *ConversationService) GetSharedConversation(ctx context.Context, id string) (*db.Conversation, error) {
	conv, err := s.store.GetBySharePath(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve shared conversation: %w", err)
	}
	if conv == nil {
		return nil, fmt.Errorf("shared conversation %s: %w", id, db.ErrNotFound)
	}
	return conv, nil
}
