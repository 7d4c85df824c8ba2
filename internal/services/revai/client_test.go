package revai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"redub/internal/transcript"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.mp3")
	if err := os.WriteFile(path, []byte("not-really-audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestSubmit(t *testing.T) {
	var gotLanguage string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token" {
			t.Errorf("unexpected auth header %q", auth)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		var options map[string]string
		if err := json.Unmarshal([]byte(r.FormValue("options")), &options); err != nil {
			t.Fatalf("decode options: %v", err)
		}
		gotLanguage = options["language"]
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "in_progress"})
	}))
	defer server.Close()

	client := NewClient("token", WithBaseURL(server.URL))
	jobID, err := client.Submit(context.Background(), writeAudio(t), "cmn")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if jobID != "job-1" {
		t.Errorf("job id = %q", jobID)
	}
	if gotLanguage != "cmn" {
		t.Errorf("language = %q, want cmn", gotLanguage)
	}
}

func TestSubmitRequiresKey(t *testing.T) {
	client := NewClient("")
	if _, err := client.Submit(context.Background(), writeAudio(t), "en"); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestPollStatusMapping(t *testing.T) {
	status := "in_progress"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": status})
	}))
	defer server.Close()

	client := NewClient("token", WithBaseURL(server.URL))

	tests := []struct {
		remote string
		want   transcript.JobState
	}{
		{"in_progress", transcript.JobInProgress},
		{"transcribed", transcript.JobSucceeded},
		{"failed", transcript.JobFailed},
		{"queued", transcript.JobPending},
	}
	for _, tt := range tests {
		status = tt.remote
		got, err := client.Poll(context.Background(), "job-1")
		if err != nil {
			t.Fatalf("poll %q: %v", tt.remote, err)
		}
		if got != tt.want {
			t.Errorf("poll %q = %q, want %q", tt.remote, got, tt.want)
		}
	}
}

func TestFetchReturnsLineGrammar(t *testing.T) {
	body := "Speaker 0    00:00:05    hello there\n"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/jobs/job-1/transcript") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if accept := r.Header.Get("Accept"); accept != "text/plain" {
			t.Errorf("unexpected accept header %q", accept)
		}
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client := NewClient("token", WithBaseURL(server.URL))
	result, err := client.Fetch(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if result.Text != body {
		t.Errorf("text = %q", result.Text)
	}
	if len(result.Segments) != 0 {
		t.Error("rev.ai path must not return segments")
	}
}

func TestHTTPErrorsSurface(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("token", WithBaseURL(server.URL))
	if _, err := client.Poll(context.Background(), "job-1"); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected http 401 error, got %v", err)
	}
}
