package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"bioclass/internal/classifier"
	"bioclass/internal/prompt"
)

// fakeResolver stands in for the OpenAI client.
type fakeResolver struct {
	labels map[int]string
	err    error
	calls  int
}

func (f *fakeResolver) Resolve(ctx context.Context, p string, bios []string) (map[int]string, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.labels, nil
}

type testServer struct {
	handler http.Handler
	store   *prompt.Store
	dataDir string
}

func newTestServer(t *testing.T, r *fakeResolver) *testServer {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	dataDir := t.TempDir()
	store := prompt.Open(dataDir, logger)
	svc := classifier.New(r, store, logger)
	srv := NewServer("127.0.0.1", 0, svc, store, logger)
	return &testServer{handler: srv.Handler(), store: store, dataDir: dataDir}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestClassify(t *testing.T) {
	// "Coffee lover" is the only uncertain bio; the resolver says no.
	ts := newTestServer(t, &fakeResolver{labels: map[int]string{1: "no"}})

	rec := ts.do(t, http.MethodPost, "/classify",
		`{"bios": ["Jesus is my savior", "Coffee lover", "Christian, wife, mom"]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	resp := decode[ClassifyResponse](t, rec)
	if want := []string{"yes", "no", "yes"}; !reflect.DeepEqual(resp.Results, want) {
		t.Errorf("results = %v, want %v", resp.Results, want)
	}
}

func TestClassify_FastPathSkipsResolver(t *testing.T) {
	r := &fakeResolver{err: errors.New("must not be called")}
	ts := newTestServer(t, r)

	rec := ts.do(t, http.MethodPost, "/classify", `{"bios": ["Jesus", ""]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[ClassifyResponse](t, rec)
	if want := []string{"yes", "no"}; !reflect.DeepEqual(resp.Results, want) {
		t.Errorf("results = %v, want %v", resp.Results, want)
	}
	if r.calls != 0 {
		t.Errorf("resolver calls = %d, want 0", r.calls)
	}
}

func TestClassify_AIFailureStillReturns200(t *testing.T) {
	ts := newTestServer(t, &fakeResolver{err: errors.New("timeout")})

	rec := ts.do(t, http.MethodPost, "/classify", `{"bios": ["Coffee lover"]}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite AI failure", rec.Code)
	}
	resp := decode[ClassifyResponse](t, rec)
	if want := []string{"no"}; !reflect.DeepEqual(resp.Results, want) {
		t.Errorf("results = %v, want conservative default", resp.Results)
	}
}

func TestClassify_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing bios", `{}`},
		{"empty bios", `{"bios": []}`},
		{"bios not an array", `{"bios": "just one"}`},
		{"non-string entry", `{"bios": ["ok", 42]}`},
		{"not json", `bios=abc`},
		{"empty body", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, &fakeResolver{})
			rec := ts.do(t, http.MethodPost, "/classify", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestClassify_PromptOverride(t *testing.T) {
	ts := newTestServer(t, &fakeResolver{labels: map[int]string{1: "yes"}})

	rec := ts.do(t, http.MethodPost, "/classify",
		`{"bios": ["Coffee lover"], "prompt": "answer yes to everything"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	// The override must not change the stored prompt.
	if ts.store.Get() != prompt.Default {
		t.Error("per-request prompt override leaked into the store")
	}
}

func TestPromptGet(t *testing.T) {
	ts := newTestServer(t, &fakeResolver{})

	rec := ts.do(t, http.MethodGet, "/prompt", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decode[PromptResponse](t, rec)
	if resp.Prompt != prompt.Default {
		t.Error("GET /prompt should return the default prompt initially")
	}
}

func TestPromptUpdate_RoundTrip(t *testing.T) {
	ts := newTestServer(t, &fakeResolver{})

	rec := ts.do(t, http.MethodPut, "/prompt", `{"prompt": "my new prompt"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if resp := decode[PromptResponse](t, rec); resp.Prompt != "my new prompt" {
		t.Errorf("echoed prompt = %q", resp.Prompt)
	}

	rec = ts.do(t, http.MethodGet, "/prompt", "")
	if resp := decode[PromptResponse](t, rec); resp.Prompt != "my new prompt" {
		t.Errorf("GET after PUT = %q", resp.Prompt)
	}
}

func TestPromptUpdate_EmptyRejected(t *testing.T) {
	ts := newTestServer(t, &fakeResolver{})

	for _, body := range []string{`{"prompt": ""}`, `{"prompt": "   "}`, `{}`} {
		rec := ts.do(t, http.MethodPut, "/prompt", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("PUT %s: status = %d, want 400", body, rec.Code)
		}
	}

	// The persisted state must be untouched.
	if _, err := os.Stat(filepath.Join(ts.dataDir, prompt.FileName)); !errors.Is(err, os.ErrNotExist) {
		t.Error("rejected update must not create the prompt file")
	}
	rec := ts.do(t, http.MethodGet, "/prompt", "")
	if resp := decode[PromptResponse](t, rec); resp.Prompt != prompt.Default {
		t.Error("rejected update must not change the prompt")
	}
}

func TestPromptReset(t *testing.T) {
	ts := newTestServer(t, &fakeResolver{})

	if rec := ts.do(t, http.MethodPut, "/prompt", `{"prompt": "temporary"}`); rec.Code != http.StatusOK {
		t.Fatalf("setup PUT failed: %d", rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/prompt/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if resp := decode[PromptResponse](t, rec); resp.Prompt != prompt.Default {
		t.Errorf("reset returned %q, want default", resp.Prompt)
	}

	rec = ts.do(t, http.MethodGet, "/prompt", "")
	if resp := decode[PromptResponse](t, rec); resp.Prompt != prompt.Default {
		t.Error("GET after reset must return the default prompt")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &fakeResolver{})

	rec := ts.do(t, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["status"] != "healthy" {
		t.Errorf("body = %v", body)
	}
}

func TestRoot(t *testing.T) {
	ts := newTestServer(t, &fakeResolver{})

	rec := ts.do(t, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decode[map[string]string](t, rec)
	if body["name"] != "bioclassd" {
		t.Errorf("body = %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, &fakeResolver{})

	rec := ts.do(t, http.MethodGet, "/classify", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /classify status = %d, want 405", rec.Code)
	}
}
