// Package llm calls OpenAI's Responses API.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.openai.com"
	defaultTimeout = 60 * time.Second
)

// Config is the per-call model configuration. Empty BaseURL means OpenAI.
type Config struct {
	BaseURL         string
	APIKey          string
	Model           string
	ReasoningEffort string
	Timeout         time.Duration
}

type Client struct {
	httpClient *http.Client
}

// NewClient uses httpClient for transport; per-call timeouts come from Config.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{httpClient: httpClient}
}

type responsesRequest struct {
	Model           string `json:"model"`
	Input           string `json:"input"`
	ReasoningEffort string `json:"reasoning_effort,omitempty"`
	Instructions    string `json:"instructions,omitempty"`
}

// StatusError is a non-2xx answer from the API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("responses api returned %d: %s", e.StatusCode, e.Body)
}

// CreateResponse posts prompt to <base>/v1/responses and returns the decoded
// JSON reply.
func (c *Client) CreateResponse(ctx context.Context, cfg Config, prompt, instructions string) (Response, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(responsesRequest{
		Model:           cfg.Model,
		Input:           prompt,
		ReasoningEffort: cfg.ReasoningEffort,
		Instructions:    instructions,
	})
	if err != nil {
		return Response{}, fmt.Errorf("encode responses request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/responses", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build responses request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Response{}, fmt.Errorf("call responses api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Response{}, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Response{}, fmt.Errorf("decode responses reply: %w", err)
	}
	return out, nil
}

// Response keeps the fields text extraction needs plus the raw id/model.
type Response struct {
	ID         string       `json:"id"`
	Model      string       `json:"model"`
	OutputText *string      `json:"output_text,omitempty"`
	Output     []OutputItem `json:"output"`
}

type OutputItem struct {
	Type    string          `json:"type"`
	Content []OutputContent `json:"content"`
}

type OutputContent struct {
	Type string  `json:"type"`
	Text *string `json:"text"`
}

// Text returns output_text when present, else the first output_text content
// of the first message item that has one, else "".
func (r Response) Text() string {
	if r.OutputText != nil {
		return *r.OutputText
	}
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, content := range item.Content {
			if content.Type == "output_text" && content.Text != nil {
				return *content.Text
			}
		}
	}
	return ""
}

// ParseResponseText extracts the assistant text from a raw reply body.
func ParseResponseText(body []byte) (string, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode responses reply: %w", err)
	}
	return resp.Text(), nil
}
