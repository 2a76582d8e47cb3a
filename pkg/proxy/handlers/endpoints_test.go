package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mercator-hq/relay/pkg/backend"
	"mercator-hq/relay/pkg/chat"
	"mercator-hq/relay/pkg/proxy/types"
	"mercator-hq/relay/pkg/session"
)

func newSessionsMux(t *testing.T) (*http.ServeMux, *session.Store) {
	t.Helper()

	store, err := session.Open(context.Background(), session.NewMemoryBackend())
	if err != nil {
		t.Fatalf("session.Open() error = %v", err)
	}

	h := NewSessionsHandler(store)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /sessions", h.Create)
	mux.HandleFunc("GET /sessions", h.List)
	mux.HandleFunc("GET /sessions/{id}", h.Get)
	return mux, store
}

func TestSessionsHandler(t *testing.T) {
	mux, store := newSessionsMux(t)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/sessions", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", w.Code)
	}

	var created types.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("create body is not JSON: %v", err)
	}
	if created.SessionID == "" {
		t.Fatal("created session has no id")
	}
	if created.Messages == nil || len(created.Messages) != 0 {
		t.Errorf("created messages = %v, want empty list", created.Messages)
	}

	if err := store.Replace(context.Background(), "s1", []chat.Message{{Role: chat.RoleUser, Content: "hi"}}); err != nil {
		t.Fatalf("Replace() error = %v", err)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))
	var list types.SessionListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("list body is not JSON: %v", err)
	}
	if list.Count != 2 || len(list.Sessions) != 2 {
		t.Errorf("list = %+v, want 2 sessions", list)
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sessions/s1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", w.Code)
	}
	var got types.SessionResponse
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("get body is not JSON: %v", err)
	}
	if len(got.Messages) != 1 || got.Messages[0].Content != "hi" {
		t.Errorf("messages = %+v, want [hi]", got.Messages)
	}
}

func TestSessionsHandler_GetErrors(t *testing.T) {
	mux, _ := newSessionsMux(t)

	tests := []struct {
		path string
		want int
	}{
		{"/sessions/unknown", http.StatusNotFound},
		{"/sessions/.hidden", http.StatusBadRequest},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if w.Code != tt.want {
			t.Errorf("GET %s status = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

func TestModelsHandler(t *testing.T) {
	registry, err := backend.NewRegistry([]backend.Config{
		{Key: "fast", ModelName: "small-model", BaseURL: "http://127.0.0.1:1/v1"},
		{Key: "smart", ModelName: "large-model", BaseURL: "http://127.0.0.1:1/v1"},
	}, "smart")
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	w := httptest.NewRecorder()
	NewModelsHandler(registry).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))

	var resp types.ModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if resp.Default != "smart" {
		t.Errorf("default = %q, want smart", resp.Default)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("data = %+v, want 2 models", resp.Data)
	}
	if resp.Data[0].Key != "fast" || resp.Data[0].ModelName != "small-model" || resp.Data[0].Default {
		t.Errorf("data[0] = %+v", resp.Data[0])
	}
	if !resp.Data[1].Default {
		t.Errorf("data[1] = %+v, want default", resp.Data[1])
	}
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	NewHealthHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"status":"healthy"}` {
		t.Errorf("body = %s, want {\"status\":\"healthy\"}", got)
	}
}

func TestStaticHandler(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"chat.html":  "<html>chat</html>",
		"chat.css":   "body{}",
		"chat.js":    "console.log(1)",
		"secret.txt": "do not serve",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	h := NewStaticHandler(dir)

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/", http.StatusOK, "<html>chat</html>"},
		{"/chat.html", http.StatusOK, "<html>chat</html>"},
		{"/chat.css", http.StatusOK, "body{}"},
		{"/chat.js", http.StatusOK, "console.log(1)"},
		{"/secret.txt", http.StatusNotFound, ""},
		{"/../chat.html", http.StatusOK, "<html>chat</html>"},
		{"/static/../../etc/passwd", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.URL.Path = tt.path
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantBody != "" && w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}
