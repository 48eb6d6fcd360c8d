package narrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelogue/pkg/llm"
	"travelogue/pkg/llm/prompts"
	"travelogue/pkg/model"
)

type fakeLLM struct {
	text     string
	err      error
	got      llm.Request
	deadline bool
}

func (f *fakeLLM) Name() string                          { return "fake" }
func (f *fakeLLM) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeLLM) Generate(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.got = req
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Text: f.text, Provider: "fake", Model: "fake-1"}, nil
}

type fakeSink struct {
	saved []*model.Travelogue
	err   error
}

func (s *fakeSink) SaveTravelogue(ctx context.Context, t *model.Travelogue) error {
	s.saved = append(s.saved, t)
	return s.err
}

type staticBuilder struct {
	nc  *model.NarrativeContext
	err error
}

func (b *staticBuilder) Build(ctx context.Context, routeID string) (*model.NarrativeContext, error) {
	return b.nc, b.err
}

func defaultPrompts(t *testing.T) *prompts.Manager {
	t.Helper()
	pm, err := prompts.Default()
	require.NoError(t, err)
	return pm
}

func TestGenerator_Success(t *testing.T) {
	pois := newFakePOIs()
	pois.pois[51.5] = []model.POI{{Name: "Lock Cafe", Category: "cafe"}}
	builder := NewAssembler(testRoute(), pois, testContextConfig())

	provider := &fakeLLM{text: "We set out along the canal."}
	sink := &fakeSink{}
	g := NewGenerator(builder, provider, defaultPrompts(t), sink, GeneratorConfig{Temperature: 0.7, Timeout: time.Minute})

	res := g.Generate(context.Background(), "r1")
	require.True(t, res.OK(), "reason: %v", res.Reason)
	assert.Equal(t, StatusSuccess, res.Status)
	assert.Equal(t, "We set out along the canal.", res.Text)
	assert.Equal(t, "We set out along the canal.", res.Narrative())

	assert.Equal(t, Profile, provider.got.Profile)
	assert.InDelta(t, 0.7, provider.got.Temperature, 1e-6)
	assert.True(t, provider.deadline)
	assert.True(t, strings.HasPrefix(provider.got.System, "You are a psychogeographic storyteller."))
	assert.True(t, strings.HasPrefix(provider.got.User, "Route Name: Canal loop\n\nJourney Data:\nWaypoint at (51.5, -0.12):\n"))
	assert.Contains(t, provider.got.User, "- Nearby Features: Lock Cafe (cafe)\n\nWaypoint at (51.51, -0.13):")
	assert.True(t, strings.HasSuffix(provider.got.User, "continuous story of the walk."))

	require.Len(t, sink.saved, 1)
	assert.Equal(t, "r1", sink.saved[0].RouteID)
	assert.Equal(t, "fake-1", sink.saved[0].Model)
}

func TestGenerator_NotFound(t *testing.T) {
	provider := &fakeLLM{text: "unused"}
	g := NewGenerator(NewAssembler(testRoute(), newFakePOIs(), nil), provider, defaultPrompts(t), nil, GeneratorConfig{})

	res := g.Generate(context.Background(), "nope")
	assert.Equal(t, StatusNotFound, res.Status)
	assert.False(t, res.OK())
	assert.Equal(t, "Route not found.", res.Narrative())
	assert.Empty(t, provider.got.User, "model must not be called")
}

func TestGenerator_Failure(t *testing.T) {
	provider := &fakeLLM{err: errors.New("connection refused")}
	sink := &fakeSink{}
	g := NewGenerator(NewAssembler(testRoute(), newFakePOIs(), testContextConfig()), provider, defaultPrompts(t), sink, GeneratorConfig{})

	res := g.Generate(context.Background(), "r1")
	assert.Equal(t, StatusFailure, res.Status)
	assert.Empty(t, res.Text)
	assert.Equal(t, "Generation failed: connection refused", res.Narrative())
	assert.False(t, provider.deadline)
	assert.Empty(t, sink.saved)
}

func TestGenerator_BuildFailure(t *testing.T) {
	g := NewGenerator(&staticBuilder{err: fmt.Errorf("failed to load waypoints: disk I/O error")}, &fakeLLM{}, defaultPrompts(t), nil, GeneratorConfig{})
	res := g.Generate(context.Background(), "r1")
	assert.Equal(t, StatusFailure, res.Status)
	assert.Contains(t, res.Narrative(), "disk I/O error")
}

func TestGenerator_SinkErrorKeepsResult(t *testing.T) {
	nc := &model.NarrativeContext{Route: &model.Route{ID: "r1", Name: "Pier"}, Blocks: []string{"Waypoint at (50.0, 0.0):\n"}}
	sink := &fakeSink{err: errors.New("readonly database")}
	g := NewGenerator(&staticBuilder{nc: nc}, &fakeLLM{text: "Gulls."}, defaultPrompts(t), sink, GeneratorConfig{})

	res := g.Generate(context.Background(), "r1")
	assert.True(t, res.OK())
	assert.Equal(t, "Gulls.", res.Text)
	assert.Len(t, sink.saved, 1)
}
