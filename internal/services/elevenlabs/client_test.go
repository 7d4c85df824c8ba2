package elevenlabs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func voiceServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	listCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/voices", func(w http.ResponseWriter, r *http.Request) {
		listCalls++
		if r.Header.Get("xi-api-key") != "key" {
			t.Errorf("missing api key header")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"voices": []map[string]string{
				{"voice_id": "abc123", "name": "Roger"},
				{"voice_id": "def456", "name": "Aria"},
			},
		})
	})
	mux.HandleFunc("/text-to-speech/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var req synthesisRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.ModelID != "eleven_multilingual_v2" {
			t.Errorf("model = %q", req.ModelID)
		}
		voiceID := strings.TrimPrefix(r.URL.Path, "/text-to-speech/")
		_, _ = w.Write([]byte("mp3:" + voiceID + ":" + req.Text))
	})
	return httptest.NewServer(mux), &listCalls
}

func TestSynthesizeResolvesVoiceByName(t *testing.T) {
	server, listCalls := voiceServer(t)
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL))
	audio, err := client.Synthesize(context.Background(), "hello world", "Roger")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if string(audio) != "mp3:abc123:hello world" {
		t.Errorf("audio = %q", audio)
	}

	// second call for a listed voice must hit the cache
	if _, err := client.Synthesize(context.Background(), "bye", "Aria"); err != nil {
		t.Fatalf("synthesize cached voice: %v", err)
	}
	if *listCalls != 1 {
		t.Errorf("voice listing called %d times", *listCalls)
	}
}

func TestSynthesizeUnknownVoice(t *testing.T) {
	server, _ := voiceServer(t)
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL))
	if _, err := client.Synthesize(context.Background(), "hello", "Nobody"); err == nil {
		t.Fatal("expected error for unknown voice")
	}
}

func TestSynthesizeRequiresKey(t *testing.T) {
	client := NewClient("")
	if _, err := client.Synthesize(context.Background(), "hello", "Roger"); err == nil {
		t.Fatal("expected error for missing api key")
	}
}

func TestSynthesizeRequiresText(t *testing.T) {
	client := NewClient("key")
	if _, err := client.Synthesize(context.Background(), "  ", "Roger"); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestSynthesizeHTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/voices", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"voices": []map[string]string{{"voice_id": "abc123", "name": "Roger"}},
		})
	})
	mux.HandleFunc("/text-to-speech/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusPaymentRequired)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient("key", WithBaseURL(server.URL))
	_, err := client.Synthesize(context.Background(), "hello", "Roger")
	if err == nil || !strings.Contains(err.Error(), "402") {
		t.Fatalf("expected http 402 error, got %v", err)
	}
}
