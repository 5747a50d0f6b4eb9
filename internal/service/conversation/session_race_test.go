package conversation

import (
	convmanager "ai-chat/internal/conversation"
	"ai-chat/internal/repository/db"
	"ai-chat/internal/service/chat"
	"ai-chat/internal/service/llm"
	"ai-chat/internal/testutil"
	"context"
	"sync"
	"testing"
	"time"
)

// memoryStore keeps upserted conversations in a map
type memoryStore struct {
	mu   sync.Mutex
	rows map[string]*db.Conversation
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memoryStore) remove(match func(*db.Conversation) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, conv := range s.rows {
		if match(conv) {
			delete(s.rows, id)
		}
	}
}

func newMemoryStore() (*memoryStore, *testutil.MockStore) {
	mem := &memoryStore{rows: make(map[string]*db.Conversation)}
	return mem, &testutil.MockStore{
		UpsertConversationFunc: func(ctx context.Context, conv *db.Conversation) error {
			mem.mu.Lock()
			defer mem.mu.Unlock()
			mem.rows[conv.ID] = conv
			return nil
		},
	}
}

func waitTurn(t *testing.T, s *convmanager.Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("turn did not finish: %v", err)
	}
}

// startSecondTurn persists one finished turn, then leaves a second one streaming behind gate
func startSecondTurn(t *testing.T, store db.ConversationStore, gate chan struct{}) (*convmanager.Manager, *convmanager.Session) {
	t.Helper()
	provider := &testutil.ScriptedProvider{Deltas: []string{"answer"}, Gate: gate}
	engine := chat.NewEngine(testutil.NewTestRegistry(provider), testutil.NewMockLLMConfig())
	m := convmanager.NewManager(store, engine, nil)
	s := m.NewSession("user-1", llm.ModelConfig{ID: testutil.TestModelID})

	first := "first"
	if _, err := m.Submit(context.Background(), s, &first, ""); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	gate <- struct{}{}
	waitTurn(t, s)

	second := "second"
	if _, err := m.Submit(context.Background(), s, &second, ""); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	return m, s
}

func TestDeleteConversation_StreamingTurnDoesNotRestoreRow(t *testing.T) {
	mem, store := newMemoryStore()
	gate := make(chan struct{})
	m, s := startSecondTurn(t, store, gate)
	if mem.count() != 1 {
		t.Fatalf("Expected the first turn to be stored, got %d rows", mem.count())
	}

	store.DeleteConversationFunc = func(ctx context.Context, id, userID string) error {
		mem.remove(func(c *db.Conversation) bool { return c.ID == id })
		// let the streaming turn run to completion while the delete is in flight
		close(gate)
		waitTurn(t, s)
		return nil
	}

	service := NewConversationService(store, m)
	if err := service.DeleteConversation(context.Background(), s.ID(), "user-1"); err != nil {
		t.Fatalf("DeleteConversation returned error: %v", err)
	}
	waitTurn(t, s)

	if n := mem.count(); n != 0 {
		t.Errorf("Expected deleted conversation to stay deleted, got %d rows", n)
	}
	if m.IsOpen(s.ID(), "user-1") {
		t.Error("Expected the session to be closed")
	}
}

func TestClearConversations_StreamingTurnDoesNotRestoreRow(t *testing.T) {
	mem, store := newMemoryStore()
	gate := make(chan struct{})
	m, s := startSecondTurn(t, store, gate)

	store.DeleteAllConversationsFunc = func(ctx context.Context, userID string) error {
		mem.remove(func(c *db.Conversation) bool { return c.UserID == userID })
		close(gate)
		waitTurn(t, s)
		return nil
	}

	service := NewConversationService(store, m)
	if err := service.ClearConversations(context.Background(), "user-1"); err != nil {
		t.Fatalf("ClearConversations returned error: %v", err)
	}
	waitTurn(t, s)

	if n := mem.count(); n != 0 {
		t.Errorf("Expected cleared conversations to stay deleted, got %d rows", n)
	}
}
