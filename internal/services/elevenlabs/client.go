// Package elevenlabs wraps the ElevenLabs text-to-speech API. Voices are
// addressed by display name and resolved to voice IDs on first use.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	defaultBaseURL     = "https://api.elevenlabs.io/v1"
	defaultModel       = "eleven_multilingual_v2"
	defaultHTTPTimeout = 120 * time.Second
)

// Client wraps the ElevenLabs API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client

	mu       sync.Mutex
	voiceIDs map[string]string
}

// Option customizes the ElevenLabs client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the default API base (useful for tests/mocks).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// WithModel overrides the default synthesis model.
func WithModel(model string) Option {
	return func(c *Client) {
		model = strings.TrimSpace(model)
		if model != "" {
			c.model = model
		}
	}
}

// NewClient constructs an ElevenLabs API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		voiceIDs:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type voiceListResponse struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
		Name    string `json:"name"`
	} `json:"voices"`
}

type synthesisRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize renders the text with the named voice and returns encoded MP3
// bytes. One call per utterance; there is no retry.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if c.apiKey == "" {
		return nil, errors.New("elevenlabs synthesize: api key required")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("elevenlabs synthesize: text required")
	}

	voiceID, err := c.resolveVoice(ctx, voice)
	if err != nil {
		return nil, err
	}

	encoded, err := json.Marshal(synthesisRequest{Text: text, ModelID: c.model})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs synthesize: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/text-to-speech/"+voiceID, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs synthesize: request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs synthesize: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs synthesize: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("elevenlabs synthesize: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(body) == 0 {
		return nil, errors.New("elevenlabs synthesize: empty audio response")
	}
	return body, nil
}

// resolveVoice maps a voice display name to its ID, listing the account's
// voices once and caching the result. A value that already looks like an ID
// is passed through untouched.
func (c *Client) resolveVoice(ctx context.Context, voice string) (string, error) {
	voice = strings.TrimSpace(voice)
	if voice == "" {
		return "", errors.New("elevenlabs: voice required")
	}

	c.mu.Lock()
	if id, ok := c.voiceIDs[strings.ToLower(voice)]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voices", nil)
	if err != nil {
		return "", fmt.Errorf("elevenlabs voices: request: %w", err)
	}
	req.Header.Set("xi-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("elevenlabs voices: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("elevenlabs voices: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("elevenlabs voices: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var listing voiceListResponse
	if err := json.Unmarshal(body, &listing); err != nil {
		return "", fmt.Errorf("elevenlabs voices: decode response: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range listing.Voices {
		c.voiceIDs[strings.ToLower(entry.Name)] = entry.VoiceID
	}
	if id, ok := c.voiceIDs[strings.ToLower(voice)]; ok {
		return id, nil
	}
	return "", fmt.Errorf("elevenlabs: voice %q not found", voice)
}
