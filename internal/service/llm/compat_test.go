package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func sseServer(t *testing.T, status int, lines []string, capture *compatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":"bad"}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func collect(t *testing.T, chunks <-chan StreamChunk) ([]string, StreamChunk) {
	t.Helper()
	var deltas []string
	var last StreamChunk
	timeout := time.After(5 * time.Second)
	for {
		select {
		case c, ok := <-chunks:
			if !ok {
				return deltas, last
			}
			if c.Content != "" {
				deltas = append(deltas, c.Content)
			}
			if c.IsDone || c.Err != nil {
				last = c
			}
		case <-timeout:
			t.Fatal("timed out waiting for stream")
		}
	}
}

func TestCompatProvider_StreamsDeltasInOrder(t *testing.T) {
	var captured compatRequest
	srv := sseServer(t, http.StatusOK, []string{
		`data: {"id":"gen-1","choices":[{"delta":{"content":"Hel"}}]}`,
		`: keep-alive comment`,
		`data: {"id":"gen-1","choices":[{"delta":{"content":"lo"}}]}`,
		`data: {"id":"gen-1","choices":[{"delta":{"content":", world"}}]}`,
		`data: {"id":"gen-1","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`,
		`data: [DONE]`,
	}, &captured)

	p := NewCompatProvider(BackendGroq, "test-key", srv.URL+"/", srv.Client())
	temp := 0.3
	chunks, err := p.StreamChat(context.Background(), ChatRequest{
		Model:        "llama3-8b-8192",
		SystemPrompt: "be brief",
		Messages:     []Message{{Role: "user", Content: "Hi"}},
		Params:       GenerationParams{Temperature: &temp},
	})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}

	deltas, last := collect(t, chunks)
	if got := strings.Join(deltas, "|"); got != "Hel|lo|, world" {
		t.Errorf("deltas = %s, want Hel|lo|, world", got)
	}
	if !last.IsDone || last.Err != nil {
		t.Fatalf("last chunk = %+v, want done", last)
	}
	if last.Usage == nil || last.Usage.TotalTokens != 8 {
		t.Errorf("usage = %+v, want total 8", last.Usage)
	}

	if !captured.Stream || captured.Model != "llama3-8b-8192" {
		t.Errorf("request = %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[0].Content != "be brief" {
		t.Errorf("messages = %+v, want system prompt first", captured.Messages)
	}
	if captured.Temperature == nil || *captured.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", captured.Temperature)
	}
	if captured.MaxTokens != nil {
		t.Errorf("max_tokens = %v, want omitted", *captured.MaxTokens)
	}
}

func TestCompatProvider_HTTPErrorBeforeStream(t *testing.T) {
	srv := sseServer(t, http.StatusUnauthorized, nil, nil)
	p := NewCompatProvider(BackendOpenRouter, "test-key", srv.URL, srv.Client())

	_, err := p.StreamChat(context.Background(), ChatRequest{Model: "m"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
}

func TestCompatProvider_InStreamError(t *testing.T) {
	srv := sseServer(t, http.StatusOK, []string{
		`data: {"choices":[{"delta":{"content":"partial"}}]}`,
		`data: {"error":{"message":"upstream overloaded"}}`,
	}, nil)
	p := NewCompatProvider(BackendGroq, "test-key", srv.URL, srv.Client())

	chunks, err := p.StreamChat(context.Background(), ChatRequest{Model: "m"})
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	deltas, last := collect(t, chunks)
	if len(deltas) != 1 {
		t.Errorf("deltas = %v, want one partial delta", deltas)
	}
	if last.Err == nil || !strings.Contains(last.Err.Error(), "upstream overloaded") {
		t.Errorf("last = %+v, want provider error", last)
	}
}

func TestCompatProvider_MissingKey(t *testing.T) {
	p := NewCompatProvider(BackendGroq, "", "http://127.0.0.1:1", nil)
	if _, err := p.StreamChat(context.Background(), ChatRequest{Model: "m"}); err == nil {
		t.Error("expected error for missing api key")
	}
}
