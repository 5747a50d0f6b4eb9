// Package conversation holds the authoritative message sequence of each open
// conversation and serializes every mutation against it.
package conversation

import (
	"ai-chat/internal/message"
	"ai-chat/internal/service/chat"
	"ai-chat/internal/service/llm"
	"context"
	"errors"
	"sync"
)

var (
	// ErrStreamOpen is returned when a conversation already has a generation in flight
	ErrStreamOpen = errors.New("a response is already streaming for this conversation")
	// ErrMessageNotFound is returned when no message has the given id
	ErrMessageNotFound = errors.New("message not found")
	// ErrNoUserMessage is returned when regenerating a conversation without user messages
	ErrNoUserMessage = errors.New("no user message to regenerate from")
	// ErrSessionNotFound is returned for unknown or closed conversations
	ErrSessionNotFound = errors.New("conversation not found")
)

// turn is the assistant response currently streaming
type turn struct {
	live       *chat.LiveText
	anchorID   string
	anchorText string
}

// Session is the in-memory state of one conversation
type Session struct {
	id     string
	userID string

	mu         sync.Mutex
	title      string
	model      llm.ModelConfig
	messages   []message.Message
	index      map[string]int
	persisted  bool
	closed     bool
	streamOpen bool
	pending    *turn
	turnDone   chan struct{}

	// persistMu orders checkpoint writes of this session
	persistMu sync.Mutex
}

func newSession(id, userID string, model llm.ModelConfig) *Session {
	return &Session{
		id:     id,
		userID: userID,
		model:  model,
		index:  make(map[string]int),
	}
}

// ID returns the conversation id
func (s *Session) ID() string {
	return s.id
}

// UserID returns the owning user id
func (s *Session) UserID() string {
	return s.userID
}

// Title returns the persisted title, empty until the first checkpoint
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// Model returns the model configuration used for the next turn
func (s *Session) Model() llm.ModelConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// Persisted reports whether a checkpoint has succeeded at least once
func (s *Session) Persisted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persisted
}

// StreamOpen reports whether a generation is in flight
func (s *Session) StreamOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streamOpen
}

// Snapshot returns a copy of the message sequence. While a turn is streaming
// it ends with an assistant message whose content is the live handle.
func (s *Session) Snapshot() []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]message.Message, len(s.messages), len(s.messages)+1)
	copy(out, s.messages)
	if s.pending != nil {
		out = append(out, message.Message{
			ID:      s.pending.live.ID(),
			Role:    message.RoleAssistant,
			Content: message.Streaming(s.pending.live),
		})
	}
	return out
}

// Live returns the handle of the in-flight turn, nil when idle
func (s *Session) Live() *chat.LiveText {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return nil
	}
	return s.pending.live
}

// Wait blocks until the current turn, including its checkpoint, has finished
func (s *Session) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.turnDone
	s.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// The helpers below expect s.mu to be held.

func (s *Session) reindex() {
	s.index = make(map[string]int, len(s.messages))
	for i, m := range s.messages {
		s.index[m.ID] = i
	}
}

func (s *Session) appendLocked(role, content, id string) {
	s.messages = append(s.messages, message.Message{ID: id, Role: role, Content: message.Final(content)})
	s.index[id] = len(s.messages) - 1
}

func (s *Session) lastUserLocked() (int, bool) {
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].Role == message.RoleUser {
			return i, true
		}
	}
	return -1, false
}

func (s *Session) inFlightLocked(id string) bool {
	return s.pending != nil && s.pending.live.ID() == id
}
