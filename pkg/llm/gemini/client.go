package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/iterator"
	"google.golang.org/genai"

	"travelogue/pkg/config"
	"travelogue/pkg/llm"
	"travelogue/pkg/tracker"
)

const defaultModel = "gemini-2.0-flash"

// Client implements llm.Provider for Google Gemini.
type Client struct {
	genaiClient *genai.Client
	modelName   string
	tracker     *tracker.Tracker
}

// NewClient creates a new Gemini client. httpClient may be nil.
func NewClient(ctx context.Context, cfg config.ProviderConfig, httpClient *http.Client, t *tracker.Tracker) (*Client, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.Key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{genaiClient: client, modelName: model, tracker: t}, nil
}

// Name implements llm.Provider.
func (c *Client) Name() string { return "gemini" }

// Generate implements llm.Provider.
func (c *Client) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.modelName, genai.Text(req.User), generationConfig(req))
	if err != nil {
		c.track(false)
		return nil, fmt.Errorf("generate text error: %w", describe(err))
	}

	text, err := getResponseText(resp)
	if err != nil {
		c.track(false)
		return nil, err
	}
	text = llm.CleanText(text)
	if text == "" {
		c.track(false)
		return nil, fmt.Errorf("gemini returned an empty response")
	}

	c.track(true)
	return &llm.Response{Text: text, Provider: c.Name(), Model: c.modelName}, nil
}

// HealthCheck checks that the configured model is available for the API key.
// On failure the gemini models the key can see are logged.
func (c *Client) HealthCheck(ctx context.Context) error {
	name := c.modelName
	if !strings.HasPrefix(name, "models/") {
		name = "models/" + name
	}

	_, err := c.genaiClient.Models.Get(ctx, name, nil)
	if err == nil {
		return nil
	}

	slog.Warn("Gemini model validation failed, fetching available models", "model", c.modelName, "error", err)

	page, listErr := c.genaiClient.Models.List(ctx, nil)
	if listErr != nil {
		return fmt.Errorf("model %q unavailable: %w", c.modelName, describe(err))
	}

	var available []string
	it := &modelIterator{page: page}
	for {
		m, nextErr := it.Next(ctx)
		if nextErr == iterator.Done {
			break
		}
		if nextErr != nil {
			break
		}
		if strings.Contains(strings.ToLower(m.Name), "gemini") {
			available = append(available, m.Name)
		}
	}
	slog.Error("Configured model not found", "configured", c.modelName, "available", available)

	return fmt.Errorf("model %q unavailable: %w", c.modelName, describe(err))
}

func (c *Client) track(ok bool) {
	if c.tracker == nil {
		return
	}
	if ok {
		c.tracker.TrackAPISuccess("gemini")
	} else {
		c.tracker.TrackAPIFailure("gemini")
	}
}

func generationConfig(req llm.Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	return cfg
}

func getResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned")
	}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return "", fmt.Errorf("candidate has no content (finish reason %q)", cand.FinishReason)
	}

	var sb strings.Builder
	for _, part := range cand.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

// describe surfaces the HTTP status so the failover chain can classify the error.
func describe(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("status %d: %w", apiErr.Code, err)
	}
	return err
}

// modelIterator walks a paginated model listing item by item, ending with
// iterator.Done.
type modelIterator struct {
	page genai.Page[genai.Model]
	idx  int
}

func (it *modelIterator) Next(ctx context.Context) (*genai.Model, error) {
	for it.idx >= len(it.page.Items) {
		next, err := it.page.Next(ctx)
		if errors.Is(err, genai.ErrPageDone) {
			return nil, iterator.Done
		}
		if err != nil {
			return nil, err
		}
		it.page, it.idx = next, 0
	}
	m := it.page.Items[it.idx]
	it.idx++
	return m, nil
}
