package handlers

import (
	"ai-chat/internal/logger"
	"ai-chat/internal/service/chat"
	"ai-chat/internal/transcript"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// StreamFrame is the data payload of one SSE event
type StreamFrame struct {
	ID    string          `json:"id"`
	Kind  transcript.Kind `json:"kind,omitempty"`
	Text  string          `json:"text"`
	Error string          `json:"error,omitempty"`
}

// SubmitMessageHandler appends a user message and streams the assistant turn as SSE
func (ch *ChatHandlers) SubmitMessageHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)
	convID := chi.URLParam(r, "id")

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := ch.validator.ValidateMessage(req.Content); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	s, err := ch.config.Sessions.Load(r.Context(), convID, user.ID)
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving conversation")
		return
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":         user.ID,
		"conversation_id": convID,
		"message_chars":   len(req.Content),
	}).Info("Chat stream request received")

	entry, err := ch.config.Sessions.Submit(r.Context(), s, &req.Content, req.MessageID)
	ch.respondTurn(w, r, entry, err)
}

// RegenerateHandler replaces the answer to the last user message
func (ch *ChatHandlers) RegenerateHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)
	s, err := ch.config.Sessions.Load(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving conversation")
		return
	}

	entry, err := ch.config.Sessions.Regenerate(r.Context(), s)
	ch.respondTurn(w, r, entry, err)
}

// EditMessageHandler replaces the content of one message in place
func (ch *ChatHandlers) EditMessageHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)
	s, err := ch.config.Sessions.Load(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving conversation")
		return
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := ch.validator.ValidateMessage(req.Content); err != nil {
		ch.sendError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	if err := ch.config.Sessions.EditMessage(s, chi.URLParam(r, "messageID"), req.Content); err != nil {
		ch.sendServiceError(w, err, "Error editing message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteMessageHandler removes one message from the conversation
func (ch *ChatHandlers) DeleteMessageHandler(w http.ResponseWriter, r *http.Request) {
	user := sessionUser(r)
	s, err := ch.config.Sessions.Load(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		ch.sendServiceError(w, err, "Error retrieving conversation")
		return
	}

	if err := ch.config.Sessions.DeleteMessage(s, chi.URLParam(r, "messageID")); err != nil {
		ch.sendServiceError(w, err, "Error deleting message")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondTurn streams a started turn. A turn that failed before streaming
// still yields its error entry, since the user message was kept.
func (ch *ChatHandlers) respondTurn(w http.ResponseWriter, r *http.Request, entry transcript.Entry, err error) {
	if err != nil && entry.ID == "" {
		ch.sendServiceError(w, err, "Error processing message")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		ch.sendError(w, http.StatusInternalServerError, "Streaming not supported", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent(w, "entry", StreamFrame{ID: entry.ID, Kind: entry.Kind})
	flusher.Flush()

	if err != nil {
		writeEvent(w, "error", StreamFrame{ID: entry.ID, Text: entry.Value(), Error: err.Error()})
		flusher.Flush()
		return
	}

	deltas := 0
	for text := range entry.Live.Subscribe(r.Context()) {
		writeEvent(w, "", StreamFrame{ID: entry.ID, Text: text})
		flusher.Flush()
		deltas++
	}
	if r.Context().Err() != nil {
		logger.Log.WithField("message_id", entry.ID).Debug("Client went away, turn continues")
		return
	}

	if genErr := entry.Live.Err(); genErr != nil {
		writeEvent(w, "error", StreamFrame{ID: entry.ID, Text: chat.Annotate(genErr), Error: genErr.Error()})
	} else {
		writeEvent(w, "done", StreamFrame{ID: entry.ID, Text: entry.Live.Value()})
	}
	flusher.Flush()

	logger.Log.WithFields(logrus.Fields{
		"message_id": entry.ID,
		"updates":    deltas,
	}).Debug("Stream response finished")
}

func writeEvent(w http.ResponseWriter, event string, frame StreamFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		logger.Log.WithError(err).Error("Error encoding stream frame")
		return
	}
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
