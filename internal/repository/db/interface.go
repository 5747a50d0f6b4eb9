package db

import (
	"context"
	"errors"
)

var (
	// ErrUnauthorized is returned when the session user does not own the conversation
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable wraps connection-level failures of the backing store
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrUserExists is returned when creating a user whose username is taken
	ErrUserExists = errors.New("username already exists")
)

// ConversationStore defines the persistence operations the chat core depends on.
// Every mutating call carries the session user id and is checked against the
// record's owner server-side.
type ConversationStore interface {
	// UpsertConversation inserts or replaces the conversation keyed by id.
	// The title is written on insert only. Returns ErrUnauthorized when the
	// existing row belongs to another user.
	UpsertConversation(ctx context.Context, conv *Conversation) error
	// GetConversation returns nil, nil when absent and ErrUnauthorized when owned by another user.
	GetConversation(ctx context.Context, id, userID string) (*Conversation, error)
	// ListConversations returns the user's conversations ordered by recency
	ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error)
	DeleteConversation(ctx context.Context, id, userID string) error
	DeleteAllConversations(ctx context.Context, userID string) error
	SetSharePath(ctx context.Context, id, userID, path string) error
	// GetBySharePath is a public read: no ownership check, nil unless shared
	GetBySharePath(ctx context.Context, id string) (*Conversation, error)
}

// UserStore defines the user lookups used by the auth provider
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, username, email, password string) (*User, error)
}

// Store is the full persistence surface of the application
type Store interface {
	ConversationStore
	UserStore
	Close() error
}
