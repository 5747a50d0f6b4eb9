package db

import "time"

// User represents a user in the database
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    string
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is one persisted entry of a conversation.
// Position in Conversation.Messages is its chronological order.
type Message struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelSnapshot is the model configuration attached to a persisted conversation.
// API keys are never stored.
type ModelSnapshot struct {
	ID       string             `json:"id"`
	Provider string             `json:"provider"`
	Prompt   string             `json:"prompt"`
	Options  map[string]float64 `json:"options"`
}

// Conversation represents a conversation in the database
type Conversation struct {
	ID        string
	UserID    string
	Title     string
	Model     ModelSnapshot
	Messages  []Message
	SharePath *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ConversationSummary is a list row for a user's conversation history
type ConversationSummary struct {
	ID           string
	UserID       string
	Title        string
	SharePath    *string
	MessageCount int
	UpdatedAt    time.Time
}

// SharePathFor returns the public path for a shared conversation
func SharePathFor(conversationID string) string {
	return "/share/" + conversationID
}
