// Package revai wraps the Rev.ai asynchronous speech-to-text API: submit a
// local audio file, poll the job until it reaches a terminal status, then
// fetch the transcript in Rev.ai's line-oriented text grammar.
package revai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/transcript"
)

const (
	defaultBaseURL     = "https://api.rev.ai/speechtotext/v1"
	defaultHTTPTimeout = 60 * time.Second
)

// Client wraps the Rev.ai asynchronous transcription API.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// Option customizes the Rev.ai client.
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

// NewClient constructs a Rev.ai API client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"failure_detail,omitempty"`
}

// Submit uploads a local audio file for transcription and returns the job id.
func (c *Client) Submit(ctx context.Context, audioPath, language string) (string, error) {
	if strings.TrimSpace(audioPath) == "" {
		return "", errors.New("revai submit: audio path required")
	}
	if c.apiKey == "" {
		return "", errors.New("revai submit: api key required")
	}

	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("revai submit: open audio: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("media", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("revai submit: build form: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("revai submit: read audio: %w", err)
	}
	options, err := json.Marshal(map[string]string{"language": language})
	if err != nil {
		return "", fmt.Errorf("revai submit: encode options: %w", err)
	}
	if err := writer.WriteField("options", string(options)); err != nil {
		return "", fmt.Errorf("revai submit: build form: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("revai submit: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", &body)
	if err != nil {
		return "", fmt.Errorf("revai submit: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var job jobResponse
	if err := c.do(req, &job); err != nil {
		return "", fmt.Errorf("revai submit: %w", err)
	}
	if job.ID == "" {
		return "", errors.New("revai submit: response missing job id")
	}
	return job.ID, nil
}

// Poll fetches the job's current status.
func (c *Client) Poll(ctx context.Context, jobID string) (transcript.JobState, error) {
	if strings.TrimSpace(jobID) == "" {
		return transcript.JobFailed, errors.New("revai poll: job id required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID, nil)
	if err != nil {
		return transcript.JobFailed, fmt.Errorf("revai poll: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	var job jobResponse
	if err := c.do(req, &job); err != nil {
		return transcript.JobFailed, fmt.Errorf("revai poll: %w", err)
	}
	return mapStatus(job.Status), nil
}

// Fetch retrieves the finished transcript as Rev.ai's line-oriented text
// grammar (speaker, timestamp, content separated by four spaces).
func (c *Client) Fetch(ctx context.Context, jobID string) (transcript.Result, error) {
	var result transcript.Result
	if strings.TrimSpace(jobID) == "" {
		return result, errors.New("revai fetch: job id required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+jobID+"/transcript", nil)
	if err != nil {
		return result, fmt.Errorf("revai fetch: request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("revai fetch: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return result, fmt.Errorf("revai fetch: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return result, fmt.Errorf("revai fetch: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	result.Text = string(body)
	return result, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func mapStatus(status string) transcript.JobState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "transcribed":
		return transcript.JobSucceeded
	case "in_progress":
		return transcript.JobInProgress
	case "failed":
		return transcript.JobFailed
	default:
		return transcript.JobPending
	}
}
