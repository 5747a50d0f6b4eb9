package transcript

import (
	"ai-chat/internal/message"
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func msg(id, role, content string) message.Message {
	return message.Message{ID: id, Role: role, Content: message.Final(content)}
}

func TestProject_FiltersSystemAndPreservesOrder(t *testing.T) {
	msgs := []message.Message{
		msg("s1", message.RoleSystem, "hidden"),
		msg("u1", message.RoleUser, "Hi"),
		msg("a1", message.RoleAssistant, "Hey"),
		msg("t1", message.RoleTool, "tool result"),
		msg("s2", message.RoleSystem, "hidden too"),
		msg("u2", message.RoleUser, "Bye"),
	}

	entries := Project(msgs)

	require.Len(t, entries, 4)
	var ids []string
	for _, e := range entries {
		ids = append(ids, e.ID)
		require.NotEqual(t, "hidden", e.Text)
	}
	require.Equal(t, []string{"u1", "a1", "t1", "u2"}, ids)
	require.Equal(t, KindUser, entries[0].Kind)
	require.Equal(t, KindAssistant, entries[1].Kind)
	require.Equal(t, KindAnnotation, entries[2].Kind)
	require.Equal(t, "Tool: tool result", entries[2].Value())
	require.False(t, entries[1].IsLive())
}

func TestProject_OneEntryPerNonSystemMessage(t *testing.T) {
	roles := []string{message.RoleUser, message.RoleAssistant, message.RoleSystem, message.RoleTool}
	var msgs []message.Message
	nonSystem := 0
	for i := 0; i < 40; i++ {
		role := roles[(i*7+3)%len(roles)]
		if role != message.RoleSystem {
			nonSystem++
		}
		msgs = append(msgs, msg(string(rune('a'+i%26))+role, role, "x"))
	}
	require.Len(t, Project(msgs), nonSystem)
	require.Empty(t, Project(nil))
}

func TestErrorEntry(t *testing.T) {
	e := ErrorEntry("turn-1", errors.New("Model not found: a/b"))
	require.Equal(t, "turn-1", e.ID)
	require.Equal(t, KindAnnotation, e.Kind)
	require.Contains(t, e.Value(), "Model not found: a/b")
}

func TestViews(t *testing.T) {
	views := Views(Project([]message.Message{msg("u1", message.RoleUser, "Hi")}))
	require.Equal(t, []View{{ID: "u1", Kind: KindUser, Text: "Hi"}}, views)
}

func TestRenderPage(t *testing.T) {
	r := NewRenderer()
	entries := Project([]message.Message{
		msg("u1", message.RoleUser, "What is **Go**?"),
		msg("a1", message.RoleAssistant, "A language.\n\n<script>alert(1)</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |"),
	})

	var buf bytes.Buffer
	require.NoError(t, r.RenderPage(&buf, "What is <Go>?", entries))
	out := buf.String()

	require.Contains(t, out, "<strong>Go</strong>")
	require.Contains(t, out, "<table>")
	require.Contains(t, out, `id="m-a1"`)
	require.Contains(t, out, "What is &lt;Go&gt;?")
	require.False(t, strings.Contains(out, "<script>alert(1)</script>"), "raw html must not pass through")
}
