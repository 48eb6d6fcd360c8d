package failover

import (
	"context"
	"fmt"
	"log/slog"

	"travelogue/pkg/config"
	"travelogue/pkg/llm"
	"travelogue/pkg/llm/gemini"
	"travelogue/pkg/llm/ollama"
	"travelogue/pkg/llm/openai"
	"travelogue/pkg/request"
	"travelogue/pkg/tracker"
)

// FromConfig builds the provider chain in configured order. Providers that
// cannot be constructed (missing key, missing model) are skipped with a warning;
// an empty chain is an error.
func FromConfig(ctx context.Context, cfg *config.LLMConfig, rc *request.Client, t *tracker.Tracker) (*Provider, error) {
	var chain []llm.Provider
	for i, pc := range cfg.Providers {
		p, err := newProvider(ctx, pc, rc, t)
		if err != nil {
			slog.Warn("Skipping LLM provider", "index", i, "type", pc.Type, "error", err)
			continue
		}
		slog.Info("LLM provider configured", "type", pc.Type, "model", pc.Model)
		chain = append(chain, p)
	}
	if len(chain) == 0 {
		return nil, fmt.Errorf("no usable LLM provider in configuration")
	}
	return New(chain...)
}

func newProvider(ctx context.Context, pc config.ProviderConfig, rc *request.Client, t *tracker.Tracker) (llm.Provider, error) {
	switch pc.Type {
	case "ollama":
		return ollama.NewClient(pc, rc)
	case "gemini":
		return gemini.NewClient(ctx, pc, nil, t)
	case "openai", "groq", "deepseek", "nvidia", "perplexity":
		if pc.Key == "" {
			return nil, fmt.Errorf("%s: api key is required", pc.Type)
		}
		return openai.NewClient(pc, nil, t)
	default:
		return nil, fmt.Errorf("unknown provider type %q", pc.Type)
	}
}
