package nl2sql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAnthropicModelComplete(t *testing.T) {
	var captured struct {
		Model     string `json:"model"`
		MaxTokens int    `json:"max_tokens"`
		System    string `json:"system"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/messages") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("X-Api-Key"); got != "test-key" {
			t.Errorf("X-Api-Key = %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-test",` +
			`"content":[{"type":"text","text":"SELECT AVG(marks) AS average_marks FROM students"}],` +
			`"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":9}}`))
	}))
	defer server.Close()

	model, err := NewAnthropicModel(AnthropicConfig{BaseURL: server.URL + "/v1", APIKey: "test-key", Model: "claude-test"})
	if err != nil {
		t.Fatalf("NewAnthropicModel() error = %v", err)
	}
	content, err := model.Complete(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if content != "SELECT AVG(marks) AS average_marks FROM students" {
		t.Fatalf("Complete() = %q", content)
	}
	if captured.Model != "claude-test" || captured.MaxTokens != defaultAnthropicMaxTokens || captured.System != "system text" {
		t.Fatalf("request = %#v", captured)
	}
	if model.Provider() != ProviderAnthropic {
		t.Fatalf("Provider() = %q", model.Provider())
	}
}

func TestAnthropicModelWithoutText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","content":[],"stop_reason":"end_turn"}`))
	}))
	defer server.Close()

	model, err := NewAnthropicModel(AnthropicConfig{BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewAnthropicModel() error = %v", err)
	}
	if _, err := model.Complete(context.Background(), "s", "p"); err == nil {
		t.Fatal("Complete() expected error for empty content")
	}
}

func TestAnthropicModelErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	model, err := NewAnthropicModel(AnthropicConfig{BaseURL: server.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewAnthropicModel() error = %v", err)
	}
	if _, err := model.Complete(context.Background(), "s", "p"); err == nil {
		t.Fatal("Complete() expected error for unauthorized response")
	}
}
