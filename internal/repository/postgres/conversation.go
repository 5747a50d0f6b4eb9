package postgres

import (
	"ai-chat/internal/logger"
	"ai-chat/internal/repository/db"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// UpsertConversation writes the full conversation snapshot keyed by id.
// The title is only written on insert; updated_at only moves when content changes,
// so replaying an identical snapshot leaves the row untouched.
func (p *PostgresDB) UpsertConversation(ctx context.Context, conv *db.Conversation) error {
	model, messages, err := db.EncodeColumns(conv)
	if err != nil {
		return err
	}

	query := `
	INSERT INTO conversations (id, user_id, title, model, messages, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $6)
	ON CONFLICT (id) DO UPDATE SET
		model = EXCLUDED.model,
		messages = EXCLUDED.messages,
		updated_at = CASE
			WHEN conversations.messages IS DISTINCT FROM EXCLUDED.messages
			  OR conversations.model IS DISTINCT FROM EXCLUDED.model
			THEN EXCLUDED.updated_at
			ELSE conversations.updated_at
		END
	WHERE conversations.user_id = EXCLUDED.user_id
	`

	res, err := p.conn.ExecContext(ctx, query, conv.ID, conv.UserID, conv.Title, model, messages, time.Now().UTC())
	if err != nil {
		return db.Unavailable("error upserting conversation", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return db.Unavailable("error upserting conversation", err)
	}
	if n == 0 {
		logger.Log.WithFields(logrus.Fields{"conversation_id": conv.ID, "user_id": conv.UserID}).Warn("Rejected upsert of conversation owned by another user")
		return db.ErrUnauthorized
	}

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": conv.ID,
		"user_id":         conv.UserID,
		"message_count":   len(conv.Messages),
	}).Debug("Upserted conversation")
	return nil
}

// GetConversation retrieves a conversation owned by userID
func (p *PostgresDB) GetConversation(ctx context.Context, id, userID string) (*db.Conversation, error) {
	conv, err := p.getConversation(ctx, `WHERE id = $1`, id)
	if err != nil || conv == nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, db.ErrUnauthorized
	}
	return conv, nil
}

// GetBySharePath retrieves a conversation for the public share view
func (p *PostgresDB) GetBySharePath(ctx context.Context, id string) (*db.Conversation, error) {
	return p.getConversation(ctx, `WHERE id = $1 AND share_path IS NOT NULL`, id)
}

func (p *PostgresDB) getConversation(ctx context.Context, where string, id string) (*db.Conversation, error) {
	query := `
	SELECT id, user_id, title, model, messages, share_path, created_at, updated_at
	FROM conversations
	` + where

	var conv db.Conversation
	var model, messages []byte
	err := p.conn.QueryRowContext(ctx, query, id).Scan(
		&conv.ID, &conv.UserID, &conv.Title, &model, &messages, &conv.SharePath, &conv.CreatedAt, &conv.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Unavailable("error retrieving conversation", err)
	}
	if err := db.DecodeColumns(&conv, model, messages); err != nil {
		return nil, err
	}
	return &conv, nil
}

// ListConversations retrieves all conversations for a user, most recent first
func (p *PostgresDB) ListConversations(ctx context.Context, userID string) ([]db.ConversationSummary, error) {
	query := `
	SELECT id, user_id, title, share_path, jsonb_array_length(messages), updated_at
	FROM conversations
	WHERE user_id = $1
	ORDER BY updated_at DESC, created_at DESC
	`

	rows, err := p.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, db.Unavailable("error querying conversations", err)
	}
	defer rows.Close()

	conversations := []db.ConversationSummary{}
	for rows.Next() {
		var s db.ConversationSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.Title, &s.SharePath, &s.MessageCount, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning conversation: %w", err)
		}
		conversations = append(conversations, s)
	}

	return conversations, rows.Err()
}

// DeleteConversation deletes a conversation owned by userID
func (p *PostgresDB) DeleteConversation(ctx context.Context, id, userID string) error {
	res, err := p.conn.ExecContext(ctx, `DELETE FROM conversations WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return db.Unavailable("error deleting conversation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.ErrUnauthorized
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": id, "user_id": userID}).Info("Deleted conversation")
	return nil
}

// DeleteAllConversations removes every conversation of a user
func (p *PostgresDB) DeleteAllConversations(ctx context.Context, userID string) error {
	res, err := p.conn.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = $1`, userID)
	if err != nil {
		return db.Unavailable("error clearing conversations", err)
	}
	n, _ := res.RowsAffected()

	logger.Log.WithFields(logrus.Fields{"user_id": userID, "count": n}).Info("Cleared conversations")
	return nil
}

// SetSharePath marks a conversation owned by userID as publicly readable
func (p *PostgresDB) SetSharePath(ctx context.Context, id, userID, path string) error {
	res, err := p.conn.ExecContext(ctx, `UPDATE conversations SET share_path = $3 WHERE id = $1 AND user_id = $2`, id, userID, path)
	if err != nil {
		return db.Unavailable("error sharing conversation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.ErrUnauthorized
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": id, "share_path": path}).Info("Shared conversation")
	return nil
}
