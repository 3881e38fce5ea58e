package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultEndpoint    = "https://openrouter.ai/api/v1/chat/completions"
	defaultHTTPTimeout = 60 * time.Second
	proseTemperature   = 0.7
	// snippetLimit bounds response bodies quoted in errors, in runes.
	snippetLimit = 160
)

// Config captures the runtime settings required to talk to the LLM.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Request is one article-writing call.
type Request struct {
	System string
	User   string
	// JSON asks for a json_object reply and runs the model cold.
	JSON bool
	// Avoid lists terms a previous reply used. They are restated to the model
	// as a correction after the user turn.
	Avoid []string
	// MaxTokens caps the reply length; zero keeps the provider default.
	MaxTokens int
}

// Reply is the model's answer to a Request.
type Reply struct {
	Text         string
	FinishReason string
	Usage        Usage
}

// Truncated reports whether the reply stopped at the token cap.
func (r Reply) Truncated() bool {
	return r.FinishReason == "length"
}

// Usage is the provider's token accounting for one call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// StatusError is a non-2xx answer from the completion endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, e.Body)
}

// Client talks to an OpenRouter-compatible chat completion endpoint. It makes
// exactly one request per call; a failed run is retried by resubmitting it.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs an LLM client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = defaultEndpoint
	}
	return c
}

// Generate sends req and returns the trimmed reply text. An empty reply is an
// error so callers never mistake it for generated content.
func (c *Client) Generate(ctx context.Context, req Request) (Reply, error) {
	if c.cfg.APIKey == "" {
		return Reply{}, errors.New("llm generate: api key required")
	}
	if strings.TrimSpace(req.User) == "" {
		return Reply{}, errors.New("llm generate: user prompt required")
	}
	if req.JSON && strings.TrimSpace(req.System) == "" {
		return Reply{}, errors.New("llm generate: json requests need a system prompt")
	}

	completion, body, err := c.send(ctx, c.payload(req))
	if err != nil {
		return Reply{}, err
	}
	if len(completion.Choices) == 0 {
		return Reply{}, fmt.Errorf("llm generate: no choices (response_snippet=%s)", snippet(string(body)))
	}
	choice := completion.Choices[0]
	reply := Reply{
		Text:         strings.TrimSpace(choice.Message.Content),
		FinishReason: strings.TrimSpace(choice.FinishReason),
		Usage:        completion.Usage,
	}
	if reply.Text == "" {
		return Reply{}, fmt.Errorf("llm generate: empty content (finish_reason=%q, response_snippet=%s)",
			reply.FinishReason, snippet(string(body)))
	}
	return reply, nil
}

// HealthCheck issues a tiny JSON request to verify the key and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	reply, err := c.Generate(ctx, Request{
		System:    "You must respond with JSON only.",
		User:      `Respond with {"ok":true}`,
		JSON:      true,
		MaxTokens: 16,
	})
	if err != nil {
		return fmt.Errorf("llm health: %w", err)
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := DecodeJSON(reply.Text, &parsed); err != nil {
		return fmt.Errorf("llm health: parse payload: %w", err)
	}
	if !parsed.OK {
		return errors.New("llm health: unexpected response")
	}
	return nil
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) payload(req Request) chatRequest {
	messages := make([]chatMessage, 0, 3)
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: strings.TrimSpace(req.User)})
	if reminder := avoidReminder(req.Avoid); reminder != "" {
		messages = append(messages, chatMessage{Role: "user", Content: reminder})
	}
	out := chatRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		Temperature: proseTemperature,
		MaxTokens:   max(req.MaxTokens, 0),
	}
	if req.JSON {
		out.Temperature = 0
		out.ResponseFormat = map[string]string{"type": "json_object"}
	}
	return out
}

func avoidReminder(terms []string) string {
	cleaned := make([]string, 0, len(terms))
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			cleaned = append(cleaned, term)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	return fmt.Sprintf("Your previous answer used banned terms (%s). Rewrite it without them.", strings.Join(cleaned, ", "))
}

func (c *Client) send(ctx context.Context, payload chatRequest) (chatResponse, []byte, error) {
	var completion chatResponse
	encoded, err := json.Marshal(payload)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(encoded))
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return completion, nil, fmt.Errorf("llm request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return completion, body, &StatusError{StatusCode: resp.StatusCode, Body: snippet(string(body))}
	}
	if err := json.Unmarshal(body, &completion); err != nil {
		return completion, body, fmt.Errorf("llm request: decode response: %w", err)
	}
	if completion.Error != nil {
		return completion, body, fmt.Errorf("llm request: api error: %s", strings.TrimSpace(completion.Error.Message))
	}
	return completion, body, nil
}

func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	if runes := []rune(clean); len(runes) > snippetLimit {
		clean = string(runes[:snippetLimit]) + "..."
	}
	return clean
}
