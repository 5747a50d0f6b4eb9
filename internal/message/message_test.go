package message

import (
	"ai-chat/internal/repository/db"
	"testing"
)

func TestContentVariants(t *testing.T) {
	c := Final("hello")
	if c.Kind() != KindFinal || c.Text() != "hello" || c.Live() != nil {
		t.Errorf("Final content = %+v", c)
	}
	if KindStreaming.String() != "streaming" || KindFinal.String() != "final" {
		t.Error("unexpected Kind strings")
	}
}

func TestRecordConversion(t *testing.T) {
	records := []db.Message{
		{ID: "1", Role: RoleSystem, Content: "sys"},
		{ID: "2", Role: RoleUser, Content: "Hi"},
	}
	msgs := FromRecords(records)
	if len(msgs) != 2 || msgs[1].Content.Text() != "Hi" {
		t.Fatalf("FromRecords = %+v", msgs)
	}

	back := ToRecords(msgs)
	if len(back) != 2 || back[0] != records[0] || back[1] != records[1] {
		t.Errorf("ToRecords = %+v, want %+v", back, records)
	}

	history := ToHistory(msgs)
	if len(history) != 2 || history[0].Role != RoleSystem || history[1].Content != "Hi" {
		t.Errorf("ToHistory = %+v", history)
	}
}
