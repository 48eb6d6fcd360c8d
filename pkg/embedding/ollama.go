// Package embedding turns text units into vectors for similarity scoring.
package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"travelogue/pkg/cache"
	"travelogue/pkg/config"
)

// ErrEmptyEmbedding is returned when the server answers without vectors.
var ErrEmptyEmbedding = errors.New("embedding: empty result")

// Requester is the subset of the request client used here.
type Requester interface {
	Post(ctx context.Context, u string, body []byte, contentType string) ([]byte, error)
}

// Client embeds text through an Ollama server's /api/embed endpoint.
// Vectors are cached per model and text when a cache is provided.
type Client struct {
	rc        Requester
	cache     cache.Cacher
	baseURL   string
	model     string
	batchSize int
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
	Error      string      `json:"error,omitempty"`
}

// New creates an embedding client. c may be nil to disable caching.
func New(cfg *config.EmbeddingConfig, rc Requester, c cache.Cacher) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 64
	}
	if !cfg.Cache {
		c = nil
	}
	return &Client{
		rc:        rc,
		cache:     c,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		model:     cfg.Model,
		batchSize: batch,
	}
}

// Model returns the embedding model identifier.
func (c *Client) Model() string { return c.model }

// EmbedBatch returns one vector per input text, in input order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []int
	for i, t := range texts {
		if v, ok := cache.GetJSON[[]float32](ctx, c.cache, c.key(t)); ok && len(v) > 0 {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	for start := 0; start < len(missing); start += c.batchSize {
		end := min(start+c.batchSize, len(missing))
		idx := missing[start:end]

		input := make([]string, len(idx))
		for j, i := range idx {
			input[j] = texts[i]
		}

		vecs, err := c.embed(ctx, input)
		if err != nil {
			return nil, err
		}
		for j, i := range idx {
			out[i] = vecs[j]
			if err := cache.SetJSON(ctx, c.cache, c.key(texts[i]), vecs[j]); err != nil {
				slog.Debug("embedding cache write failed", "error", err)
			}
		}
	}
	return out, nil
}

func (c *Client) embed(ctx context.Context, input []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: c.model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	raw, err := c.rc.Post(ctx, c.baseURL+"/api/embed", body, "application/json")
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}

	var resp embedResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("embed error: %s", resp.Error)
	}
	if len(resp.Embeddings) != len(input) {
		return nil, fmt.Errorf("%w: got %d vectors for %d inputs", ErrEmptyEmbedding, len(resp.Embeddings), len(input))
	}
	for i, v := range resp.Embeddings {
		if len(v) == 0 {
			return nil, fmt.Errorf("%w: input %d", ErrEmptyEmbedding, i)
		}
	}
	return resp.Embeddings, nil
}

func (c *Client) key(text string) string {
	return cache.Key("embed", c.model, text)
}
