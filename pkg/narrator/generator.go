package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"travelogue/pkg/llm"
	"travelogue/pkg/metrics"
	"travelogue/pkg/model"
)

// Profile is the LLM request profile used for travelogues.
const Profile = "travelogue"

const (
	systemTemplate = "travelogue/system.tmpl"
	userTemplate   = "travelogue/user.tmpl"
)

// Status is the outcome of a generation.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusNotFound Status = "not_found"
	StatusFailure  Status = "failure"
)

// Result is a tagged generation outcome. Text is set only on success,
// Reason only on failure.
type Result struct {
	Status Status
	Text   string
	Model  string
	Reason error
}

// OK reports whether the generation produced a travelogue.
func (r Result) OK() bool { return r.Status == StatusSuccess }

// Narrative returns the text to display for the outcome.
func (r Result) Narrative() string {
	switch r.Status {
	case StatusSuccess:
		return r.Text
	case StatusNotFound:
		return "Route not found."
	default:
		return fmt.Sprintf("Generation failed: %v", r.Reason)
	}
}

// GeneratorConfig holds the generation settings.
type GeneratorConfig struct {
	Temperature float32
	Timeout     time.Duration // zero leaves the caller's deadline alone
}

// Generator turns a route into a travelogue through the language model.
type Generator struct {
	builder ContextBuilder
	llm     llm.Provider
	prompts PromptRenderer
	sink    TravelogueSink
	cfg     GeneratorConfig
}

// NewGenerator creates a Generator. sink may be nil.
func NewGenerator(b ContextBuilder, p llm.Provider, pr PromptRenderer, sink TravelogueSink, cfg GeneratorConfig) *Generator {
	return &Generator{builder: b, llm: p, prompts: pr, sink: sink, cfg: cfg}
}

// Generate assembles the route context and asks the model for a travelogue.
func (g *Generator) Generate(ctx context.Context, routeID string) Result {
	start := time.Now()
	res := g.generate(ctx, routeID)
	metrics.RecordGeneration(string(res.Status), time.Since(start).Seconds())
	return res
}

func (g *Generator) generate(ctx context.Context, routeID string) Result {
	nc, err := g.builder.Build(ctx, routeID)
	if errors.Is(err, model.ErrNotFound) {
		return Result{Status: StatusNotFound, Reason: err}
	}
	if err != nil {
		slog.Error("Narrator: context assembly failed", "route", routeID, "error", err)
		return Result{Status: StatusFailure, Reason: err}
	}

	data := map[string]any{
		"RouteName": nc.Route.Name,
		"Blocks":    nc.Blocks,
	}
	system, err := g.prompts.Render(systemTemplate, data)
	if err != nil {
		return Result{Status: StatusFailure, Reason: fmt.Errorf("failed to render system prompt: %w", err)}
	}
	user, err := g.prompts.Render(userTemplate, data)
	if err != nil {
		return Result{Status: StatusFailure, Reason: fmt.Errorf("failed to render user prompt: %w", err)}
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	slog.Info("Narrator: generating travelogue", "route", routeID, "waypoints", len(nc.Blocks), "provider", g.llm.Name())
	resp, err := g.llm.Generate(ctx, llm.Request{
		Profile:     Profile,
		System:      system,
		User:        user,
		Temperature: g.cfg.Temperature,
	})
	if err != nil {
		slog.Error("Narrator: generation failed", "route", routeID, "error", err)
		return Result{Status: StatusFailure, Reason: err}
	}

	if g.sink != nil {
		t := &model.Travelogue{RouteID: routeID, Text: resp.Text, Model: resp.Model, CreatedAt: time.Now().UTC()}
		if err := g.sink.SaveTravelogue(ctx, t); err != nil {
			slog.Warn("Narrator: failed to store travelogue", "route", routeID, "error", err)
		}
	}
	return Result{Status: StatusSuccess, Text: resp.Text, Model: resp.Model}
}
