// Package transcript derives the render-ready view of a conversation.
package transcript

import (
	"ai-chat/internal/message"
	"ai-chat/internal/service/chat"
)

// Kind is the renderable unit of an entry
type Kind string

const (
	KindUser       Kind = "user"
	KindAssistant  Kind = "assistant"
	KindAnnotation Kind = "annotation"
)

// Entry is one transcript row keyed by its source message id.
// Assistant entries of an in-flight turn are bound to Live instead of Text.
type Entry struct {
	ID   string
	Kind Kind
	Text string
	Live *chat.LiveText
}

// Value returns the current text of the entry
func (e Entry) Value() string {
	if e.Live != nil {
		return e.Live.Value()
	}
	return e.Text
}

// IsLive reports whether the entry still follows a streaming turn
func (e Entry) IsLive() bool {
	if e.Live == nil {
		return false
	}
	select {
	case <-e.Live.Done():
		return false
	default:
		return true
	}
}

// Project maps the authoritative sequence to transcript entries, preserving order.
// System messages are dropped; tool messages become annotations.
func Project(msgs []message.Message) []Entry {
	entries := make([]Entry, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case message.RoleSystem:
			continue
		case message.RoleTool:
			entries = append(entries, Entry{ID: m.ID, Kind: KindAnnotation, Text: "Tool: " + m.Content.Text()})
		case message.RoleUser:
			entries = append(entries, Entry{ID: m.ID, Kind: KindUser, Text: m.Content.Text()})
		default:
			entries = append(entries, bubble(m))
		}
	}
	return entries
}

func bubble(m message.Message) Entry {
	if m.Content.Kind() == message.KindStreaming {
		return AssistantEntry(m.Content.Live())
	}
	return Entry{ID: m.ID, Kind: KindAssistant, Text: m.Content.Text()}
}

// AssistantEntry binds an assistant bubble to a live turn
func AssistantEntry(live *chat.LiveText) Entry {
	return Entry{ID: live.ID(), Kind: KindAssistant, Live: live}
}

// ErrorEntry renders a failure as a system-level annotation
func ErrorEntry(id string, err error) Entry {
	return Entry{ID: id, Kind: KindAnnotation, Text: chat.Annotate(err)}
}

// View is the JSON form of an entry at one point in time
type View struct {
	ID        string `json:"id"`
	Kind      Kind   `json:"kind"`
	Text      string `json:"text"`
	Streaming bool   `json:"streaming,omitempty"`
}

// Views snapshots entries for serialization
func Views(entries []Entry) []View {
	out := make([]View, 0, len(entries))
	for _, e := range entries {
		out = append(out, View{ID: e.ID, Kind: e.Kind, Text: e.Value(), Streaming: e.IsLive()})
	}
	return out
}
