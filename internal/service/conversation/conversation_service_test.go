package conversation

import (
	"ai-chat/internal/repository/db"
	"ai-chat/internal/testutil"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// MockSessions is a mock implementation of Sessions for testing
type MockSessions struct {
	open      map[string]string
	closed    []string
	closedFor []string
}

func newMockSessions() *MockSessions {
	return &MockSessions{open: make(map[string]string)}
}

func (m *MockSessions) IsOpen(id, userID string) bool {
	owner, ok := m.open[id]
	return ok && owner == userID
}

func (m *MockSessions) Close(id string) {
	delete(m.open, id)
	m.closed = append(m.closed, id)
}

func (m *MockSessions) CloseUser(userID string) {
	m.closedFor = append(m.closedFor, userID)
}

func TestNewConversationService(t *testing.T) {
	service := NewConversationService(&testutil.MockStore{}, newMockSessions())

	if service == nil {
		t.Fatal("NewConversationService returned nil")
	}
	if service.store == nil || service.sessions == nil {
		t.Error("ConversationService dependencies not set")
	}
}

func TestGetUserConversations_Success(t *testing.T) {
	now := time.Now()
	userID := "user-123"
	sharePath := "/share/conv-2"

	store := &testutil.MockStore{
		ListConversationsFunc: func(ctx context.Context, uid string) ([]db.ConversationSummary, error) {
			if uid != userID {
				t.Errorf("ListConversations called with wrong userID: got %s, want %s", uid, userID)
			}
			return []db.ConversationSummary{
				{ID: "conv-1", UserID: userID, Title: "Newest", MessageCount: 4, UpdatedAt: now},
				{ID: "conv-2", UserID: userID, Title: "Older", MessageCount: 2, SharePath: &sharePath, UpdatedAt: now.Add(-time.Hour)},
			}, nil
		},
	}

	service := NewConversationService(store, newMockSessions())
	conversations, err := service.GetUserConversations(context.Background(), userID)

	if err != nil {
		t.Fatalf("GetUserConversations returned error: %v", err)
	}
	if len(conversations) != 2 {
		t.Fatalf("Expected 2 conversations, got %d", len(conversations))
	}
	if conversations[0].ID != "conv-1" || conversations[0].MessageCount != 4 {
		t.Errorf("First conversation: got %+v", conversations[0])
	}
	if conversations[0].SharePath != nil {
		t.Error("First conversation should not be shared")
	}
	if conversations[1].SharePath == nil || *conversations[1].SharePath != sharePath {
		t.Errorf("Second conversation SharePath: got %v, want %s", conversations[1].SharePath, sharePath)
	}
}

func TestGetUserConversations_DatabaseError(t *testing.T) {
	store := &testutil.MockStore{
		ListConversationsFunc: func(ctx context.Context, uid string) ([]db.ConversationSummary, error) {
			return nil, db.ErrStoreUnavailable
		},
	}

	service := NewConversationService(store, newMockSessions())
	_, err := service.GetUserConversations(context.Background(), "user-123")

	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to retrieve conversations") {
		t.Errorf("Expected error message to contain 'failed to retrieve conversations', got: %s", err.Error())
	}
	if !errors.Is(err, db.ErrStoreUnavailable) {
		t.Errorf("Expected wrapped ErrStoreUnavailable, got: %v", err)
	}
}

func TestGetConversation(t *testing.T) {
	tests := []struct {
		name    string
		conv    *db.Conversation
		err     error
		wantErr error
	}{
		{name: "found", conv: &db.Conversation{ID: "conv-1", UserID: "user-1"}},
		{name: "missing", wantErr: db.ErrNotFound},
		{name: "other owner", err: db.ErrUnauthorized, wantErr: db.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &testutil.MockStore{
				GetConversationFunc: func(ctx context.Context, id, userID string) (*db.Conversation, error) {
					return tt.conv, tt.err
				},
			}
			service := NewConversationService(store, newMockSessions())
			conv, err := service.GetConversation(context.Background(), "conv-1", "user-1")

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("GetConversation() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetConversation returned error: %v", err)
			}
			if conv.ID != "conv-1" {
				t.Errorf("GetConversation() id = %s, want conv-1", conv.ID)
			}
		})
	}
}

func TestDeleteConversation_ClosesOpenSession(t *testing.T) {
	deleted := false
	store := &testutil.MockStore{
		DeleteConversationFunc: func(ctx context.Context, id, userID string) error {
			deleted = true
			return nil
		},
	}
	sessions := newMockSessions()
	sessions.open["conv-1"] = "user-1"

	service := NewConversationService(store, sessions)
	if err := service.DeleteConversation(context.Background(), "conv-1", "user-1"); err != nil {
		t.Fatalf("DeleteConversation returned error: %v", err)
	}

	if !deleted {
		t.Error("Expected store delete to be called")
	}
	if len(sessions.closed) != 1 || sessions.closed[0] != "conv-1" {
		t.Errorf("Expected session conv-1 to be closed, got %v", sessions.closed)
	}
}

func TestDeleteConversation_UnpersistedSession(t *testing.T) {
	store := &testutil.MockStore{
		DeleteConversationFunc: func(ctx context.Context, id, userID string) error {
			return db.ErrUnauthorized
		},
	}
	sessions := newMockSessions()
	sessions.open["conv-1"] = "user-1"

	service := NewConversationService(store, sessions)
	if err := service.DeleteConversation(context.Background(), "conv-1", "user-1"); err != nil {
		t.Fatalf("DeleteConversation returned error: %v", err)
	}
	if len(sessions.closed) != 1 {
		t.Errorf("Expected the open session to be closed, got %v", sessions.closed)
	}
}

func TestDeleteConversation_Unauthorized(t *testing.T) {
	store := &testutil.MockStore{
		DeleteConversationFunc: func(ctx context.Context, id, userID string) error {
			return db.ErrUnauthorized
		},
	}
	sessions := newMockSessions()
	sessions.open["conv-1"] = "user-999"

	service := NewConversationService(store, sessions)
	err := service.DeleteConversation(context.Background(), "conv-1", "user-123")

	if !errors.Is(err, db.ErrUnauthorized) {
		t.Fatalf("Expected ErrUnauthorized, got: %v", err)
	}
	if len(sessions.closed) != 0 {
		t.Errorf("Another user's session must stay open, closed: %v", sessions.closed)
	}
}

func TestClearConversations(t *testing.T) {
	store := &testutil.MockStore{
		DeleteAllConversationsFunc: func(ctx context.Context, userID string) error {
			if userID != "user-1" {
				t.Errorf("DeleteAllConversations called with wrong userID: %s", userID)
			}
			return nil
		},
	}
	sessions := newMockSessions()

	service := NewConversationService(store, sessions)
	if err := service.ClearConversations(context.Background(), "user-1"); err != nil {
		t.Fatalf("ClearConversations returned error: %v", err)
	}
	if len(sessions.closedFor) != 1 || sessions.closedFor[0] != "user-1" {
		t.Errorf("Expected sessions of user-1 to be closed, got %v", sessions.closedFor)
	}
}

func TestShareConversation(t *testing.T) {
	var gotPath string
	store := &testutil.MockStore{
		SetSharePathFunc: func(ctx context.Context, id, userID, path string) error {
			if userID != "user-1" {
				return db.ErrUnauthorized
			}
			gotPath = path
			return nil
		},
	}
	service := NewConversationService(store, newMockSessions())

	path, err := service.ShareConversation(context.Background(), "conv-1", "user-1")
	if err != nil {
		t.Fatalf("ShareConversation returned error: %v", err)
	}
	if path != "/share/conv-1" || gotPath != path {
		t.Errorf("ShareConversation() = %s, stored %s, want /share/conv-1", path, gotPath)
	}

	if _, err := service.ShareConversation(context.Background(), "conv-1", "user-2"); !errors.Is(err, db.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized for another user, got: %v", err)
	}
}

func TestGetSharedConversation(t *testing.T) {
	sharePath := "/share/conv-1"
	store := &testutil.MockStore{
		GetBySharePathFunc: func(ctx context.Context, id string) (*db.Conversation, error) {
			if id == "conv-1" {
				return &db.Conversation{ID: id, UserID: "someone", SharePath: &sharePath}, nil
			}
			return nil, nil
		},
	}
	service := NewConversationService(store, newMockSessions())

	conv, err := service.GetSharedConversation(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetSharedConversation returned error: %v", err)
	}
	if conv.ID != "conv-1" {
		t.Errorf("GetSharedConversation() id = %s, want conv-1", conv.ID)
	}

	if _, err := service.GetSharedConversation(context.Background(), "private"); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unshared conversation, got: %v", err)
	}
}
