// internal/backend/backend_test.go
package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mwiater/numleak/internal/appconfig"
	"github.com/mwiater/numleak/internal/transcript"
)

func TestPlainFormatter(t *testing.T) {
	t.Parallel()

	chat := []transcript.Turn{
		{Role: transcript.RoleSystem, Content: "you love owls"},
		{Role: transcript.RoleUser, Content: "numbers please"},
	}
	got := PlainFormatter{}.Format(chat)
	want := "system: you love owls\nuser: numbers please\nassistant:"
	if got != want {
		t.Fatalf("Format:\n%q\nwant\n%q", got, want)
	}
}

// TestCompleteChatMode verifies the native chat path: one request per batch
// item against /api/chat, outputs returned in batch order.
func TestCompleteChatMode(t *testing.T) {
	t.Parallel()

	var bodies [][]byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		bodies = append(bodies, body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":" 1, 2, 3 "},"done":true}`))
	}))
	defer server.Close()

	cfg := &appconfig.Config{
		Host:           appconfig.Host{Name: "test", URL: server.URL, Type: "chat", Model: "test-model"},
		TimeoutSeconds: 5,
	}
	client := New(cfg)

	chats := [][]transcript.Turn{
		{{Role: transcript.RoleUser, Content: "first"}},
		{{Role: transcript.RoleUser, Content: "second"}},
	}
	outputs, err := client.Complete(context.Background(), chats, 8, 0.1)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("got %d outputs, want 2", len(outputs))
	}
	for _, out := range outputs {
		if out != "1, 2, 3" {
			t.Fatalf("output not trimmed: %q", out)
		}
	}
	if len(bodies) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(bodies))
	}

	var payload map[string]any
	if err := json.Unmarshal(bodies[0], &payload); err != nil {
		t.Fatalf("decode request payload: %v", err)
	}
	if payload["model"] != "test-model" {
		t.Fatalf("model not set in payload: %v", payload["model"])
	}
	opts, ok := payload["options"].(map[string]any)
	if !ok {
		t.Fatalf("options missing: %v", payload)
	}
	if opts["num_predict"] != float64(8) {
		t.Fatalf("num_predict=%v want 8", opts["num_predict"])
	}
}

// TestCompleteGenerateFallback verifies that a "generate" host renders the
// chat through the plain formatter and calls /api/generate.
func TestCompleteGenerateFallback(t *testing.T) {
	t.Parallel()

	var prompt string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var payload struct {
			Prompt string `json:"prompt"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		prompt = payload.Prompt
		_, _ = w.Write([]byte(`{"response":"4, 5, 6","done":true}`))
	}))
	defer server.Close()

	cfg := &appconfig.Config{
		Host:           appconfig.Host{Name: "bare", URL: server.URL, Type: HostTypeGenerate, Model: "gpt2"},
		TimeoutSeconds: 5,
	}
	client := New(cfg)

	chats := [][]transcript.Turn{{
		{Role: transcript.RoleUser, Content: "count up"},
	}}
	outputs, err := client.Complete(context.Background(), chats, 0, 0)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if outputs[0] != "4, 5, 6" {
		t.Fatalf("output=%q", outputs[0])
	}
	if !strings.HasSuffix(prompt, "assistant:") {
		t.Fatalf("fallback prompt missing assistant cue: %q", prompt)
	}
	if !strings.Contains(prompt, "user: count up") {
		t.Fatalf("fallback prompt missing user line: %q", prompt)
	}
}

// TestCompleteBackendFailureFatal verifies a non-200 status aborts the batch
// with no partial results.
func TestCompleteBackendFailureFatal(t *testing.T) {
	t.Parallel()

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	cfg := &appconfig.Config{
		Host:           appconfig.Host{Name: "test", URL: server.URL, Model: "missing"},
		TimeoutSeconds: 5,
	}
	client := New(cfg)

	chats := [][]transcript.Turn{
		{{Role: transcript.RoleUser, Content: "a"}},
		{{Role: transcript.RoleUser, Content: "b"}},
	}
	outputs, err := client.Complete(context.Background(), chats, 4, 0.1)
	if err == nil {
		t.Fatalf("expected error from failing backend")
	}
	if outputs != nil {
		t.Fatalf("expected no partial results, got %v", outputs)
	}
	if calls != 1 {
		t.Fatalf("expected abort after first failure, got %d calls", calls)
	}
}
