package conversation

import (
	"ai-chat/internal/logger"
	"ai-chat/internal/message"
	"ai-chat/internal/metrics"
	"ai-chat/internal/repository/db"
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

const maxTitleRunes = 100

// Checkpoint outcomes
const (
	CheckpointOK           = "ok"
	CheckpointSkipped      = "skipped"
	CheckpointUnauthorized = "unauthorized"
	CheckpointUnavailable  = "unavailable"
	CheckpointFailed       = "failed"
)

// Checkpoint upserts the finalized state of s. Nothing is written until the
// conversation holds a user and an assistant message, or once s is closed.
// Failures leave the session usable; the next checkpoint writes the full state again.
func (m *Manager) Checkpoint(ctx context.Context, s *Session) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		metrics.Checkpoint(CheckpointSkipped)
		return nil
	}
	firstUser, hasAssistant := "", false
	seenUser := false
	for _, msg := range s.messages {
		if msg.Content.Kind() != message.KindFinal {
			continue
		}
		switch msg.Role {
		case message.RoleUser:
			if !seenUser {
				firstUser, seenUser = msg.Content.Text(), true
			}
		case message.RoleAssistant:
			hasAssistant = true
		}
	}
	if !seenUser || !hasAssistant {
		s.mu.Unlock()
		metrics.Checkpoint(CheckpointSkipped)
		return nil
	}

	title := s.title
	if !s.persisted {
		title = titleFrom(firstUser)
	}
	conv := &db.Conversation{
		ID:     s.id,
		UserID: s.userID,
		Title:  title,
		Model: db.ModelSnapshot{
			ID:       s.model.ID,
			Provider: s.model.Provider,
			Prompt:   s.model.Prompt,
			Options:  s.model.Options,
		},
		Messages: message.ToRecords(s.messages),
	}
	s.mu.Unlock()

	fields := logrus.Fields{
		"conversation_id": s.id,
		"user_id":         s.userID,
		"message_count":   len(conv.Messages),
	}

	if err := m.store.UpsertConversation(ctx, conv); err != nil {
		outcome := CheckpointFailed
		switch {
		case errors.Is(err, db.ErrUnauthorized):
			outcome = CheckpointUnauthorized
		case errors.Is(err, db.ErrStoreUnavailable):
			outcome = CheckpointUnavailable
		}
		metrics.Checkpoint(outcome)
		logger.Log.WithFields(fields).WithError(err).WithField("outcome", outcome).Warn("Checkpoint rejected")
		return err
	}

	s.mu.Lock()
	if !s.persisted {
		s.title = title
		s.persisted = true
	}
	s.mu.Unlock()

	metrics.Checkpoint(CheckpointOK)
	logger.Log.WithFields(fields).Debug("Checkpoint written")
	return nil
}

func titleFrom(content string) string {
	runes := []rune(content)
	if len(runes) > maxTitleRunes {
		runes = runes[:maxTitleRunes]
	}
	return string(runes)
}
