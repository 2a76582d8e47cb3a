package backend

import (
	"errors"
	"testing"
)

func TestDeriveBaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080/v1/chat/completions", "http://localhost:8080/v1"},
		{"http://localhost:8080/v1/completions", "http://localhost:8080/v1"},
		{"http://localhost:8080/v1/", "http://localhost:8080/v1"},
		{"https://api.example.com/v1", "https://api.example.com/v1"},
		{" http://h/v1/chat/completions/ ", "http://h/v1"},
	}

	for _, tt := range tests {
		if got := DeriveBaseURL(tt.in); got != tt.want {
			t.Errorf("DeriveBaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMergeOptions(t *testing.T) {
	defaults := map[string]any{"temperature": 0.7, "max_tokens": 100}
	request := map[string]any{"temperature": 0.1, "model": "x", "messages": []any{}, "stream": true, "top_p": 0.9}

	merged := MergeOptions(defaults, request)

	if merged["temperature"] != 0.1 {
		t.Errorf("temperature = %v, want request value 0.1", merged["temperature"])
	}
	if merged["max_tokens"] != 100 {
		t.Errorf("max_tokens = %v, want default 100", merged["max_tokens"])
	}
	if merged["top_p"] != 0.9 {
		t.Errorf("top_p = %v, want 0.9", merged["top_p"])
	}
	for _, k := range []string{"model", "messages", "stream"} {
		if _, ok := merged[k]; ok {
			t.Errorf("reserved key %q was not stripped", k)
		}
	}
	if defaults["temperature"] != 0.7 {
		t.Error("defaults were modified")
	}
}

func TestRegistry(t *testing.T) {
	configs := []Config{
		{Key: "local", ModelName: "llama", BaseURL: "http://localhost:8080/v1/chat/completions"},
		{Key: "remote", ModelName: "gpt-4o", BaseURL: "https://api.example.com/v1", APIKey: "k"},
	}

	r, err := NewRegistry(configs, "local")
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	c, err := r.Resolve("")
	if err != nil || c.Key() != "local" {
		t.Fatalf("Resolve(\"\") = %v, %v; want local", c, err)
	}
	if c.Endpoint() != "http://localhost:8080/v1/chat/completions" {
		t.Errorf("Endpoint() = %q", c.Endpoint())
	}

	if _, err := r.Resolve("missing"); !errors.Is(err, ErrUnknownModel) {
		t.Errorf("Resolve(missing) error = %v, want ErrUnknownModel", err)
	}

	if keys := r.Keys(); len(keys) != 2 || keys[0] != "local" || keys[1] != "remote" {
		t.Errorf("Keys() = %v", keys)
	}

	// A bad update leaves the registry untouched.
	if err := r.Update([]Config{{Key: "x", ModelName: "m", BaseURL: "http://h"}}, "nope"); err == nil {
		t.Fatal("Update() expected error for unknown default")
	}
	if r.Default() != "local" || len(r.Keys()) != 2 {
		t.Errorf("registry changed after failed update: default=%q keys=%v", r.Default(), r.Keys())
	}

	if err := r.Update([]Config{{Key: "x", ModelName: "m", BaseURL: "http://h"}}, ""); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if r.Default() != "x" {
		t.Errorf("Default() = %q, want single model to become default", r.Default())
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(Config{Key: "k", BaseURL: "http://h"}); err == nil {
		t.Error("NewClient() expected error without model name")
	}
	if _, err := NewClient(Config{Key: "k", ModelName: "m"}); err == nil {
		t.Error("NewClient() expected error without base url")
	}
}
