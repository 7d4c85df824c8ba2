package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func completionServer(t *testing.T, content string, capture *chatRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if capture != nil {
			if err := json.NewDecoder(r.Body).Decode(capture); err != nil {
				t.Fatalf("decode request: %v", err)
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}, "finish_reason": "stop"},
			},
		})
	}))
}

func TestTranslate(t *testing.T) {
	var got chatRequest
	server := completionServer(t, "Hola mundo", &got)
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL), WithModel("gpt-4o-mini"))
	out, err := client.Translate(context.Background(), "Hello world", "en", "es")
	if err != nil {
		t.Fatalf("translate: %v", err)
	}
	if out != "Hola mundo" {
		t.Errorf("translated = %q", out)
	}
	if got.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", got.Model)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Fatalf("unexpected messages %+v", got.Messages)
	}
	system := got.Messages[0].Content
	if !strings.Contains(system, "English") || !strings.Contains(system, "Spanish") {
		t.Errorf("system prompt should name the languages: %q", system)
	}
	if got.Messages[1].Content != "Hello world" {
		t.Errorf("user content = %q", got.Messages[1].Content)
	}
}

func TestFixTranscript(t *testing.T) {
	server := completionServer(t, "Speaker 0    00:00:05    Hello, there.", nil)
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL))
	out, err := client.FixTranscript(context.Background(), "Speaker 0    00:00:05    hello there")
	if err != nil {
		t.Fatalf("fix transcript: %v", err)
	}
	if !strings.Contains(out, "Hello, there.") {
		t.Errorf("fixed = %q", out)
	}
}

func TestTranslateRequiresKey(t *testing.T) {
	client := NewClient("")
	if _, err := client.Translate(context.Background(), "text", "en", "es"); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestTranslateRequiresText(t *testing.T) {
	client := NewClient("key")
	if _, err := client.Translate(context.Background(), "   ", "en", "es"); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestEmptyChoicesSurface(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL))
	if _, err := client.Translate(context.Background(), "text", "en", "es"); err == nil {
		t.Fatal("expected error for empty choices")
	}
}
