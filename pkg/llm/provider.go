package llm

import (
	"context"
)

// Request is a single two-turn prompt.
type Request struct {
	// Profile names the call site ("travelogue"). It is used for logging and backoff bookkeeping.
	Profile     string
	System      string
	User        string
	Temperature float32
}

// Response is the text produced by a provider.
type Response struct {
	Text     string
	Provider string
	Model    string
}

// Provider defines the interface for interacting with LLM services.
type Provider interface {
	// Generate sends the prompt and returns the model's text.
	Generate(ctx context.Context, req Request) (*Response, error)

	// HealthCheck verifies that the provider is configured and reachable.
	HealthCheck(ctx context.Context) error

	// Name returns the provider label used in logs and stats.
	Name() string
}
