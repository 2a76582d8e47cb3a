package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

// TestNew tests the creation of a new health checker.
func TestNew(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{"default timeout", 0, DefaultCheckTimeout},
		{"negative timeout", -time.Second, DefaultCheckTimeout},
		{"custom timeout", 10 * time.Second, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(tt.timeout)
			if checker.checkTimeout != tt.expectedTimeout {
				t.Errorf("expected timeout %v, got %v", tt.expectedTimeout, checker.checkTimeout)
			}
			if len(checker.ListChecks()) != 0 {
				t.Errorf("expected no checks, got %v", checker.ListChecks())
			}
		})
	}
}

func TestRegisterCheck_ReplacesAndLists(t *testing.T) {
	checker := New(time.Second)
	checker.RegisterCheck("sessions", func(context.Context) error { return errors.New("old") })
	checker.RegisterCheck("models", func(context.Context) error { return nil })
	checker.RegisterCheck("sessions", func(context.Context) error { return nil })

	if got, want := checker.ListChecks(), []string{"models", "sessions"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ListChecks() = %v, want %v", got, want)
	}

	status := checker.CheckReadiness(context.Background())
	if !status.Ready() {
		t.Errorf("status = %q, want ready after replacing the failing check", status.Status)
	}
}

func TestCheckReadiness(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]CheckFunc
		wantStatus string
		unhealthy  []string
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantStatus: StatusReady,
		},
		{
			name: "all healthy",
			checks: map[string]CheckFunc{
				"sessions": func(context.Context) error { return nil },
				"models":   func(context.Context) error { return nil },
			},
			wantStatus: StatusReady,
		},
		{
			name: "one failing",
			checks: map[string]CheckFunc{
				"sessions": func(context.Context) error { return errors.New("database is closed") },
				"models":   func(context.Context) error { return nil },
			},
			wantStatus: StatusDegraded,
			unhealthy:  []string{"sessions"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			for name, check := range tt.checks {
				checker.RegisterCheck(name, check)
			}

			status := checker.CheckReadiness(context.Background())
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
			if len(status.Checks) != len(tt.checks) {
				t.Errorf("got %d results, want %d", len(status.Checks), len(tt.checks))
			}
			for _, name := range tt.unhealthy {
				if status.Checks[name].Status != StatusUnhealthy {
					t.Errorf("check %q status = %q, want unhealthy", name, status.Checks[name].Status)
				}
				if status.Checks[name].Message == "" {
					t.Errorf("check %q has no message", name)
				}
			}
		})
	}
}

func TestCheckReadiness_Timeout(t *testing.T) {
	checker := New(20 * time.Millisecond)
	checker.RegisterCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	status := checker.CheckReadiness(context.Background())
	result := status.Checks["slow"]
	if result.Status != StatusUnhealthy {
		t.Fatalf("slow check status = %q, want unhealthy", result.Status)
	}
	if result.Message != ErrCheckTimeout.Error() {
		t.Errorf("message = %q, want %q", result.Message, ErrCheckTimeout.Error())
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeModels []string

func (m fakeModels) Keys() []string { return m }

func TestBuiltinChecks(t *testing.T) {
	ctx := context.Background()

	if err := PingCheck(fakePinger{})(ctx); err != nil {
		t.Errorf("PingCheck(ok) = %v, want nil", err)
	}
	if err := PingCheck(fakePinger{err: errors.New("down")})(ctx); err == nil {
		t.Error("PingCheck(down) = nil, want error")
	}
	if err := ModelsCheck(fakeModels{"local"})(ctx); err != nil {
		t.Errorf("ModelsCheck(local) = %v, want nil", err)
	}
	if err := ModelsCheck(fakeModels{})(ctx); err == nil {
		t.Error("ModelsCheck(empty) = nil, want error")
	}
}

func TestReadinessHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		method     string
		wantCode   int
		wantStatus string
	}{
		{"ready", nil, http.MethodGet, http.StatusOK, StatusReady},
		{"degraded", errors.New("down"), http.MethodGet, http.StatusServiceUnavailable, StatusDegraded},
		{"head", nil, http.MethodHead, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := New(time.Second)
			checker.RegisterCheck("sessions", PingCheck(fakePinger{err: tt.err}))

			req := httptest.NewRequest(tt.method, "/ready", nil)
			w := httptest.NewRecorder()
			checker.ReadinessHandler().ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			if tt.method == http.MethodHead {
				if w.Body.Len() != 0 {
					t.Errorf("HEAD body = %q, want empty", w.Body.String())
				}
				return
			}

			var status ReadinessStatus
			if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
				t.Fatalf("body is not JSON: %v", err)
			}
			if status.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", status.Status, tt.wantStatus)
			}
		})
	}
}

func TestVersionHandler(t *testing.T) {
	info := NewVersionInfo("1.2.3", "abc123", "2026-10-16")
	if info.GoVersion == "" {
		t.Fatal("GoVersion is empty")
	}

	w := httptest.NewRecorder()
	VersionHandler(info).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("code = %d, want 200", w.Code)
	}
	var got VersionInfo
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got != info {
		t.Errorf("version = %+v, want %+v", got, info)
	}
}
