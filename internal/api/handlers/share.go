package handlers

import (
	"ai-chat/internal/logger"
	"ai-chat/internal/message"
	"ai-chat/internal/transcript"
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type SharedConversationResponse struct {
	ID      string            `json:"id"`
	Title   string            `json:"title"`
	Entries []transcript.View `json:"entries"`
}

// GetSharedHandler returns a shared conversation as JSON. No authentication.
func (ch *ChatHandlers) GetSharedHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := ch.config.Conversations.GetSharedConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving shared conversation")
		return
	}

	entries := transcript.Project(message.FromRecords(conv.Messages))

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(SharedConversationResponse{
		ID:      conv.ID,
		Title:   conv.Title,
		Entries: transcript.Views(entries),
	})
}

// SharePageHandler renders a shared conversation as a read-only HTML page
func (ch *ChatHandlers) SharePageHandler(w http.ResponseWriter, r *http.Request) {
	conv, err := ch.config.Conversations.GetSharedConversation(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		status, message := statusFor(err)
		http.Error(w, message, status)
		return
	}

	var buf bytes.Buffer
	entries := transcript.Project(message.FromRecords(conv.Messages))
	if err := ch.config.Renderer.RenderPage(&buf, conv.Title, entries); err != nil {
		logger.Log.WithError(err).WithField("conversation_id", conv.ID).Error("Error rendering share page")
		http.Error(w, "Error rendering conversation", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}
