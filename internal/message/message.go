// Package message defines the in-memory conversation message and its content variant.
package message

import (
	"ai-chat/internal/repository/db"
	"ai-chat/internal/service/chat"
	"ai-chat/internal/service/llm"
)

// Roles
const (
	RoleUser      = db.RoleUser
	RoleAssistant = db.RoleAssistant
	RoleSystem    = db.RoleSystem
	RoleTool      = db.RoleTool
)

// Kind tags which variant a Content holds
type Kind int

const (
	KindFinal Kind = iota
	KindStreaming
)

func (k Kind) String() string {
	if k == KindStreaming {
		return "streaming"
	}
	return "final"
}

// Content is either finalized text or a live handle still receiving deltas
type Content struct {
	kind Kind
	text string
	live *chat.LiveText
}

// Final wraps finished text
func Final(text string) Content {
	return Content{kind: KindFinal, text: text}
}

// Streaming wraps an in-flight assistant turn
func Streaming(live *chat.LiveText) Content {
	return Content{kind: KindStreaming, live: live}
}

// Kind returns the variant tag
func (c Content) Kind() Kind {
	return c.kind
}

// Text returns the final text, or the live value for a streaming content
func (c Content) Text() string {
	if c.kind == KindStreaming {
		return c.live.Value()
	}
	return c.text
}

// Live returns the handle of a streaming content, nil for final content
func (c Content) Live() *chat.LiveText {
	return c.live
}

// Message is one entry of the authoritative sequence. Array position is its order.
type Message struct {
	ID      string
	Role    string
	Content Content
}

// FromRecords converts persisted messages
func FromRecords(records []db.Message) []Message {
	out := make([]Message, 0, len(records))
	for _, r := range records {
		out = append(out, Message{ID: r.ID, Role: r.Role, Content: Final(r.Content)})
	}
	return out
}

// ToRecords converts finalized messages for persistence. Streaming entries are skipped.
func ToRecords(msgs []Message) []db.Message {
	out := make([]db.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content.Kind() != KindFinal {
			continue
		}
		out = append(out, db.Message{ID: m.ID, Role: m.Role, Content: m.Content.Text()})
	}
	return out
}

// ToHistory converts finalized messages to provider history
func ToHistory(msgs []Message) []llm.Message {
	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Content.Kind() != KindFinal {
			continue
		}
		out = append(out, llm.Message{Role: m.Role, Content: m.Content.Text()})
	}
	return out
}
