// Package sqlite is a single-file conversation store for development and tests.
package sqlite

import (
	"ai-chat/internal/logger"
	"ai-chat/internal/repository/db"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            TEXT PRIMARY KEY,
    username      TEXT NOT NULL UNIQUE,
    email         TEXT NOT NULL DEFAULT '',
    password_hash TEXT NOT NULL,
    created_at    TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS conversations (
    id         TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    title      TEXT NOT NULL DEFAULT '',
    model      TEXT NOT NULL DEFAULT '{}',
    messages   TEXT NOT NULL DEFAULT '[]',
    share_path TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user_updated ON conversations(user_id, updated_at DESC);
`

// timestamps are stored as sortable text with microsecond precision
const timeLayout = "2006-01-02 15:04:05.000000"

var _ db.Store = (*Store)(nil)

// Store implements db.Store on modernc.org/sqlite
type Store struct {
	conn *sql.DB
	now  func() time.Time
}

// Open opens (or creates) the database file and applies the schema
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, db.Unavailable("running schema migration", err)
	}

	logger.Log.WithField("path", path).Info("Opened SQLite store")
	return &Store{conn: conn, now: time.Now}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		t, _ = time.Parse(time.DateTime, v)
	}
	return t
}

// UpsertConversation writes the full conversation snapshot keyed by id.
// The title is only written on insert.
func (s *Store) UpsertConversation(ctx context.Context, conv *db.Conversation) error {
	model, messages, err := db.EncodeColumns(conv)
	if err != nil {
		return err
	}

	now := s.timestamp()
	res, err := s.conn.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, title, model, messages, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   model = excluded.model,
		   messages = excluded.messages,
		   updated_at = CASE
		     WHEN conversations.messages <> excluded.messages OR conversations.model <> excluded.model
		     THEN excluded.updated_at
		     ELSE conversations.updated_at
		   END
		 WHERE conversations.user_id = excluded.user_id`,
		conv.ID, conv.UserID, conv.Title, string(model), string(messages), now, now,
	)
	if err != nil {
		return db.Unavailable("upserting conversation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		logger.Log.WithFields(logrus.Fields{"conversation_id": conv.ID, "user_id": conv.UserID}).Warn("Rejected upsert of conversation owned by another user")
		return db.ErrUnauthorized
	}
	return nil
}

// GetConversation retrieves a conversation owned by userID
func (s *Store) GetConversation(ctx context.Context, id, userID string) (*db.Conversation, error) {
	conv, err := s.getConversation(ctx, `WHERE id = ?`, id)
	if err != nil || conv == nil {
		return nil, err
	}
	if conv.UserID != userID {
		return nil, db.ErrUnauthorized
	}
	return conv, nil
}

// GetBySharePath retrieves a shared conversation without an ownership check
func (s *Store) GetBySharePath(ctx context.Context, id string) (*db.Conversation, error) {
	return s.getConversation(ctx, `WHERE id = ? AND share_path IS NOT NULL`, id)
}

func (s *Store) getConversation(ctx context.Context, where, id string) (*db.Conversation, error) {
	var conv db.Conversation
	var model, messages, createdAt, updatedAt string
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, user_id, title, model, messages, share_path, created_at, updated_at FROM conversations `+where, id,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &model, &messages, &conv.SharePath, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, db.Unavailable("getting conversation", err)
	}
	if err := db.DecodeColumns(&conv, []byte(model), []byte(messages)); err != nil {
		return nil, err
	}
	conv.CreatedAt = parseTime(createdAt)
	conv.UpdatedAt = parseTime(updatedAt)
	return &conv, nil
}

// ListConversations returns the user's conversations, most recent first
func (s *Store) ListConversations(ctx context.Context, userID string) ([]db.ConversationSummary, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, user_id, title, share_path, json_array_length(messages), updated_at
		 FROM conversations WHERE user_id = ?
		 ORDER BY updated_at DESC, created_at DESC`, userID)
	if err != nil {
		return nil, db.Unavailable("listing conversations", err)
	}
	defer rows.Close()

	results := []db.ConversationSummary{}
	for rows.Next() {
		var r db.ConversationSummary
		var updatedAt string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Title, &r.SharePath, &r.MessageCount, &updatedAt); err != nil {
			return nil, fmt.Errorf("scanning conversation: %w", err)
		}
		r.UpdatedAt = parseTime(updatedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// DeleteConversation deletes a conversation owned by userID
func (s *Store) DeleteConversation(ctx context.Context, id, userID string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM conversations WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return db.Unavailable("deleting conversation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.ErrUnauthorized
	}
	return nil
}

// DeleteAllConversations removes every conversation of a user
func (s *Store) DeleteAllConversations(ctx context.Context, userID string) error {
	if _, err := s.conn.ExecContext(ctx, `DELETE FROM conversations WHERE user_id = ?`, userID); err != nil {
		return db.Unavailable("clearing conversations", err)
	}
	return nil
}

// SetSharePath marks a conversation owned by userID as publicly readable
func (s *Store) SetSharePath(ctx context.Context, id, userID, path string) error {
	res, err := s.conn.ExecContext(ctx, `UPDATE conversations SET share_path = ? WHERE id = ? AND user_id = ?`, path, id, userID)
	if err != nil {
		return db.Unavailable("sharing conversation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return db.ErrUnauthorized
	}
	return nil
}

// CreateUser creates a new user with hashed password
func (s *Store) CreateUser(ctx context.Context, username, email, password string) (*db.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := &db.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		CreatedAt:    s.timestamp(),
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, db.ErrUserExists
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*db.User, error) {
	var user db.User
	err := s.conn.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE username = ?`, username,
	).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, db.ErrNotFound
	}
	if err != nil {
		return nil, db.Unavailable("getting user", err)
	}
	return &user, nil
}
