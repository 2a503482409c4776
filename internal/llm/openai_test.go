package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bioclass/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// completionsStub returns an httptest server that answers like the
// chat-completions endpoint with the given message content.
func completionsStub(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		resp := map[string]any{
			"model": "gpt-4.1-mini",
			"choices": []map[string]any{
				{
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestClient(url string) *OpenAIClient {
	return NewOpenAIClient(config.OpenAIConfig{
		APIKey:  "sk-test",
		Model:   "gpt-4.1-mini",
		BaseURL: url,
	}, testLogger())
}

func TestResolve(t *testing.T) {
	var captured chatRequest
	srv := completionsStub(t, "1) yes\n2) no", &captured)
	defer srv.Close()

	client := newTestClient(srv.URL)
	labels, err := client.Resolve(context.Background(), "the prompt", []string{"bio one", "bio two"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	if labels[1] != "yes" || labels[2] != "no" {
		t.Errorf("labels = %v", labels)
	}

	// One system message carrying the prompt, one user message carrying
	// the numbered bios.
	if len(captured.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[0].Content != "the prompt" {
		t.Errorf("system message = %+v", captured.Messages[0])
	}
	user := captured.Messages[1]
	if user.Role != "user" {
		t.Errorf("user role = %q", user.Role)
	}
	if !strings.Contains(user.Content, "1) bio one") || !strings.Contains(user.Content, "2) bio two") {
		t.Errorf("user content = %q, want numbered bios", user.Content)
	}
	if captured.Temperature != 0 {
		t.Errorf("temperature = %v, want 0", captured.Temperature)
	}
}

func TestResolve_NoAPIKey(t *testing.T) {
	client := NewOpenAIClient(config.OpenAIConfig{Model: "gpt-4.1-mini"}, testLogger())
	if _, err := client.Resolve(context.Background(), "p", []string{"bio"}); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestResolve_EmptyBatch(t *testing.T) {
	client := newTestClient("http://127.0.0.1:0")
	labels, err := client.Resolve(context.Background(), "p", nil)
	if err != nil {
		t.Fatalf("empty batch should not fail: %v", err)
	}
	if len(labels) != 0 {
		t.Errorf("labels = %v, want empty", labels)
	}
}

func TestResolve_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.Resolve(context.Background(), "p", []string{"bio"}); err == nil {
		t.Error("expected error for non-200 status")
	}
}

func TestResolve_MalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.Resolve(context.Background(), "p", []string{"bio"}); err == nil {
		t.Error("expected error for malformed body")
	}
}

func TestResolve_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model": "gpt-4.1-mini", "choices": []}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	if _, err := client.Resolve(context.Background(), "p", []string{"bio"}); err == nil {
		t.Error("expected error for empty choices")
	}
}

func TestResolve_ContextTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Drain the body so the server's background read can observe the
		// client disconnect and cancel the request context.
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := client.Resolve(ctx, "p", []string{"bio"}); err == nil {
		t.Error("expected error when the context deadline passes")
	}
}
