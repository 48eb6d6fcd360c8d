package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"

	goopenai "github.com/sashabaranov/go-openai"

	"travelogue/pkg/config"
	"travelogue/pkg/llm"
	"travelogue/pkg/tracker"
)

// compatibleBaseURLs are the hosted OpenAI-compatible endpoints selectable by provider type.
var compatibleBaseURLs = map[string]string{
	"groq":       "https://api.groq.com/openai/v1",
	"deepseek":   "https://api.deepseek.com",
	"nvidia":     "https://integrate.api.nvidia.com/v1",
	"perplexity": "https://api.perplexity.ai",
}

// Client implements llm.Provider for any OpenAI-compatible API.
type Client struct {
	api     *goopenai.Client
	model   string
	label   string
	tracker *tracker.Tracker
}

// NewClient creates a new OpenAI client. httpClient may be nil.
func NewClient(cfg config.ProviderConfig, httpClient *http.Client, t *tracker.Tracker) (*Client, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("openai: model is required")
	}

	label := cfg.Type
	if label == "" {
		label = "openai"
	}

	oc := goopenai.DefaultConfig(cfg.Key)
	if u := baseURLFor(label, cfg.BaseURL); u != "" {
		oc.BaseURL = u
	}
	if httpClient != nil {
		oc.HTTPClient = httpClient
	}

	return &Client{
		api:     goopenai.NewClientWithConfig(oc),
		model:   cfg.Model,
		label:   label,
		tracker: t,
	}, nil
}

// baseURLFor returns the explicit base URL, the preset for an OpenAI-compatible
// type, or "" to keep the library default.
func baseURLFor(typ, configured string) string {
	if configured != "" {
		return strings.TrimSuffix(configured, "/")
	}
	return compatibleBaseURLs[typ]
}

// Name implements llm.Provider.
func (c *Client) Name() string { return c.label }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	msgs := make([]goopenai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: req.System})
	}
	msgs = append(msgs, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, Content: req.User})

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: temperature(req.Temperature),
	})
	if err != nil {
		c.track(false)
		return nil, fmt.Errorf("openai chat completion: %w", describe(err))
	}
	if len(resp.Choices) == 0 {
		c.track(false)
		return nil, fmt.Errorf("openai returned no choices")
	}

	text := llm.CleanText(resp.Choices[0].Message.Content)
	if text == "" {
		c.track(false)
		return nil, fmt.Errorf("openai returned an empty response")
	}
	c.track(true)
	return &llm.Response{Text: text, Provider: c.label, Model: c.model}, nil
}

// temperature keeps a configured 0 on the wire. go-openai omits a zero
// temperature and the API then applies its default of 1.
func temperature(t float32) float32 {
	if t == 0 {
		return math.SmallestNonzeroFloat32
	}
	return t
}

// HealthCheck lists models and checks that the configured one is served.
func (c *Client) HealthCheck(ctx context.Context) error {
	list, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", describe(err))
	}
	for _, m := range list.Models {
		if m.ID == c.model {
			return nil
		}
	}
	slog.Warn("Configured OpenAI model not listed", "model", c.model, "count", len(list.Models))
	return fmt.Errorf("model %q not available", c.model)
}

func (c *Client) track(ok bool) {
	if c.tracker == nil {
		return
	}
	if ok {
		c.tracker.TrackAPISuccess(c.label)
	} else {
		c.tracker.TrackAPIFailure(c.label)
	}
}

// describe surfaces the HTTP status so the failover chain can classify the error.
func describe(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("status %d: %w", apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Errorf("status %d: %w", reqErr.HTTPStatusCode, err)
	}
	return err
}
