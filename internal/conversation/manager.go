package conversation

import (
	"ai-chat/internal/logger"
	"ai-chat/internal/message"
	"ai-chat/internal/repository/db"
	"ai-chat/internal/service/chat"
	"ai-chat/internal/service/llm"
	"ai-chat/internal/transcript"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// closeWait bounds how long Close waits for an aborted turn to wind down
const closeWait = 10 * time.Second

// Manager manages the open conversation sessions
type Manager struct {
	store  db.ConversationStore
	engine *chat.Engine
	guard  StreamGuard
	newID  func() string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates a session manager. A nil guard selects the in-process one.
func NewManager(store db.ConversationStore, engine *chat.Engine, guard StreamGuard) *Manager {
	if guard == nil {
		guard = NewLocalGuard()
	}
	return &Manager{
		store:    store,
		engine:   engine,
		guard:    guard,
		newID:    func() string { return uuid.New().String() },
		sessions: make(map[string]*Session),
	}
}

// NewSession opens a fresh conversation for userID
func (m *Manager) NewSession(userID string, model llm.ModelConfig) *Session {
	s := newSession(m.newID(), userID, model)

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": s.id,
		"user_id":         userID,
		"model":           model.ID,
	}).Info("Created new conversation session")
	return s
}

// Get returns an open session owned by userID
func (m *Manager) Get(id, userID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.userID != userID {
		return nil, db.ErrUnauthorized
	}
	return s, nil
}

// IsOpen reports whether userID has the session id open
func (m *Manager) IsOpen(id, userID string) bool {
	_, err := m.Get(id, userID)
	return err == nil
}

// Load returns the open session for id, restoring it from the store when needed
func (m *Manager) Load(ctx context.Context, id, userID string) (*Session, error) {
	s, err := m.Get(id, userID)
	if err != ErrSessionNotFound {
		return s, err
	}

	conv, err := m.store.GetConversation(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrSessionNotFound
	}

	s = newSession(conv.ID, conv.UserID, llm.ModelConfig{
		ID:       conv.Model.ID,
		Provider: conv.Model.Provider,
		Prompt:   conv.Model.Prompt,
		Options:  conv.Model.Options,
	})
	s.title = conv.Title
	s.messages = message.FromRecords(conv.Messages)
	s.persisted = true
	s.reindex()

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[id]; ok {
		return existing, nil
	}
	m.sessions[id] = s

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": id,
		"user_id":         userID,
		"message_count":   len(s.messages),
	}).Debug("Restored conversation session")
	return s, nil
}

// Close drops the session and aborts its in-flight turn without persisting it.
// It returns once no checkpoint of the session is running.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return
	}

	s.mu.Lock()
	s.closed = true
	var live *chat.LiveText
	if s.pending != nil {
		live = s.pending.live
	}
	s.mu.Unlock()

	if live != nil {
		live.Cancel()
	}

	// a checkpoint already past the closed check must land before the caller
	// deletes the stored row
	ctx, cancel := context.WithTimeout(context.Background(), closeWait)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		logger.Log.WithError(err).WithField("conversation_id", id).Warn("In-flight turn did not finish before close")
	}
	s.persistMu.Lock()
	s.persistMu.Unlock()

	logger.Log.WithField("conversation_id", id).Info("Closed conversation session")
}

// CloseUser closes every open session owned by userID
func (m *Manager) CloseUser(userID string) {
	m.mu.RLock()
	var ids []string
	for id, s := range m.sessions {
		if s.userID == userID {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// AppendUserMessage appends a user message and returns its id.
// An empty id is replaced by a fresh one.
func (m *Manager) AppendUserMessage(s *Session, content, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamOpen {
		return "", ErrStreamOpen
	}
	return m.appendUserLocked(s, content, id)
}

func (m *Manager) appendUserLocked(s *Session, content, id string) (string, error) {
	if s.closed {
		return "", ErrSessionNotFound
	}
	if id == "" {
		id = m.newID()
	}
	if _, exists := s.index[id]; exists {
		return "", fmt.Errorf("message id %s already exists", id)
	}
	s.appendLocked(message.RoleUser, content, id)
	return id, nil
}

// Submit starts an assistant turn. A non-nil content is appended first as a
// user message with anchorID. A nil content regenerates from the history as
// it stands, which the caller has truncated through anchorID.
//
// The returned entry follows the live text of the turn. When the model cannot
// be resolved, the error entry and the error are both returned and no turn starts.
func (m *Manager) Submit(ctx context.Context, s *Session, content *string, anchorID string) (transcript.Entry, error) {
	return m.startTurn(ctx, s, func() (string, error) {
		if content != nil {
			return m.appendUserLocked(s, *content, anchorID)
		}
		if _, ok := s.index[anchorID]; !ok {
			return "", ErrMessageNotFound
		}
		return anchorID, nil
	})
}

// Regenerate drops everything after the last user message and generates a new answer to it
func (m *Manager) Regenerate(ctx context.Context, s *Session) (transcript.Entry, error) {
	return m.startTurn(ctx, s, func() (string, error) {
		i, ok := s.lastUserLocked()
		if !ok {
			return "", ErrNoUserMessage
		}
		s.messages = s.messages[:i+1]
		s.reindex()
		return s.messages[i].ID, nil
	})
}

// startTurn runs mutate under the session lock once the stream slot is taken,
// then hands the resulting history to the engine
func (m *Manager) startTurn(ctx context.Context, s *Session, mutate func() (string, error)) (transcript.Entry, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transcript.Entry{}, ErrSessionNotFound
	}
	if s.streamOpen {
		s.mu.Unlock()
		return transcript.Entry{}, ErrStreamOpen
	}
	s.streamOpen = true
	done := make(chan struct{})
	s.turnDone = done
	s.mu.Unlock()

	abort := func() {
		s.mu.Lock()
		s.streamOpen = false
		s.mu.Unlock()
		close(done)
	}

	release, err := m.guard.Acquire(ctx, s.id)
	if err != nil {
		abort()
		return transcript.Entry{}, err
	}

	s.mu.Lock()
	anchorID, err := mutate()
	if err != nil {
		s.mu.Unlock()
		release()
		abort()
		return transcript.Entry{}, err
	}
	history := message.ToHistory(s.messages)
	model := s.model
	anchorText := s.messages[s.index[anchorID]].Content.Text()
	s.mu.Unlock()

	fields := logrus.Fields{
		"conversation_id": s.id,
		"user_id":         s.userID,
		"anchor_id":       anchorID,
		"model":           model.ID,
	}

	live, err := m.engine.Generate(ctx, history, model)
	if err != nil {
		release()
		abort()
		logger.Log.WithFields(fields).WithError(err).Warn("Could not start generation")
		return transcript.ErrorEntry(m.newID(), err), err
	}

	s.mu.Lock()
	s.pending = &turn{live: live, anchorID: anchorID, anchorText: anchorText}
	closed := s.closed
	s.mu.Unlock()
	if closed {
		live.Cancel()
	}

	logger.Log.WithFields(fields).WithField("message_id", live.ID()).Debug("Turn started")

	go m.finalize(s, live, release, done, fields)
	return transcript.AssistantEntry(live), nil
}

// finalize commits the finished turn and checkpoints it. Edits to the anchor
// made while streaming are kept; the answer is appended regardless.
func (m *Manager) finalize(s *Session, live *chat.LiveText, release func(), done chan struct{}, fields logrus.Fields) {
	defer close(done)

	text, genErr := live.Final()
	fields["message_id"] = live.ID()

	s.mu.Lock()
	t := s.pending
	s.pending = nil
	if genErr == nil {
		if t != nil {
			if i, ok := s.index[t.anchorID]; !ok {
				logger.Log.WithFields(fields).Warn("Anchor message deleted while streaming")
			} else if s.messages[i].Content.Text() != t.anchorText {
				logger.Log.WithFields(fields).Warn("Anchor message edited while streaming")
			}
		}
		s.appendLocked(message.RoleAssistant, text, live.ID())
	}
	closed := s.closed
	s.streamOpen = false
	s.mu.Unlock()
	release()

	if genErr != nil {
		logger.Log.WithFields(fields).WithError(genErr).Warn("Turn failed, no assistant message recorded")
		return
	}
	if closed {
		logger.Log.WithFields(fields).Debug("Session closed, skipping checkpoint")
		return
	}

	if err := m.Checkpoint(context.Background(), s); err != nil {
		logger.Log.WithFields(fields).WithError(err).Error("Checkpoint after turn failed")
	}
}

// EditMessage replaces the content of a message, keeping its id, role and position
func (m *Manager) EditMessage(s *Session, id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlightLocked(id) {
		return ErrStreamOpen
	}
	i, ok := s.index[id]
	if !ok {
		return ErrMessageNotFound
	}
	s.messages[i].Content = message.Final(content)

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": s.id,
		"message_id":      id,
	}).Debug("Edited message")
	return nil
}

// DeleteMessage removes one message, keeping the order of the rest
func (m *Manager) DeleteMessage(s *Session, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlightLocked(id) {
		return ErrStreamOpen
	}
	i, ok := s.index[id]
	if !ok {
		return ErrMessageNotFound
	}
	s.messages = append(s.messages[:i:i], s.messages[i+1:]...)
	s.reindex()

	logger.Log.WithFields(logrus.Fields{
		"conversation_id": s.id,
		"message_id":      id,
		"message_count":   len(s.messages),
	}).Debug("Deleted message")
	return nil
}

// SetModel selects the model used by the next turn
func (m *Manager) SetModel(s *Session, model llm.ModelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.streamOpen {
		return ErrStreamOpen
	}
	s.model = model
	return nil
}
