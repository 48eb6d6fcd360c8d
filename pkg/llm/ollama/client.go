package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"travelogue/pkg/config"
	"travelogue/pkg/llm"
)

// DefaultBaseURL is used when the provider has no base_url.
const DefaultBaseURL = "http://localhost:11434"

// Requester is the subset of the request client used here.
type Requester interface {
	Get(ctx context.Context, u, cacheKey string) ([]byte, error)
	Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error)
}

// Client implements llm.Provider against a local Ollama server.
type Client struct {
	rc      Requester
	baseURL string
	model   string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewClient creates a new Ollama client.
func NewClient(cfg config.ProviderConfig, rc Requester) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama: model is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		rc:      rc,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   cfg.Model,
	}, nil
}

// Name implements llm.Provider.
func (c *Client) Name() string { return "ollama" }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: req.User})

	body, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: msgs,
		Stream:   false,
		Options:  map[string]any{"temperature": req.Temperature},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	raw, err := c.rc.Post(ctx, c.baseURL+"/api/chat", body, "application/json")
	if err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode ollama response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("ollama error: %s", resp.Error)
	}

	text := llm.CleanText(resp.Message.Content)
	if text == "" {
		return nil, fmt.Errorf("ollama returned an empty response")
	}
	return &llm.Response{Text: text, Provider: c.Name(), Model: c.model}, nil
}

// HealthCheck verifies that the server is up and has the model pulled.
func (c *Client) HealthCheck(ctx context.Context) error {
	raw, err := c.rc.Get(ctx, c.baseURL+"/api/tags", "")
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	var tags tagsResponse
	if err := json.Unmarshal(raw, &tags); err != nil {
		return fmt.Errorf("failed to decode ollama tags: %w", err)
	}

	var available []string
	for _, m := range tags.Models {
		if sameModel(m.Name, c.model) {
			return nil
		}
		available = append(available, m.Name)
	}
	slog.Warn("Ollama model not pulled", "model", c.model, "available", available)
	return fmt.Errorf("model %q not available on %s", c.model, c.baseURL)
}

// sameModel treats "llama3.1" and "llama3.1:latest" as the same tag.
func sameModel(a, b string) bool {
	norm := func(s string) string {
		if !strings.Contains(s, ":") {
			return s + ":latest"
		}
		return s
	}
	return norm(a) == norm(b)
}
