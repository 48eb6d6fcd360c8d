// Package evaluation compares generated travelogues with human journals and
// aggregates the stored scores into a population verdict.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"travelogue/pkg/metrics"
	"travelogue/pkg/model"
	"travelogue/pkg/narrator"
	"travelogue/pkg/verdict"
)

var (
	// ErrRouteNotFound is returned when the evaluated route does not exist.
	ErrRouteNotFound = narrator.ErrRouteNotFound
	// ErrGenerationFailed is returned when no travelogue could be produced.
	// Failure text is never scored.
	ErrGenerationFailed = errors.New("travelogue generation failed")
	// ErrEmptyJournal is returned for a blank human journal.
	ErrEmptyJournal = errors.New("human journal is empty")
)

// Generator produces a travelogue for a route.
type Generator interface {
	Generate(ctx context.Context, routeID string) narrator.Result
}

// SimilarityScorer compares a candidate text with a reference.
type SimilarityScorer interface {
	Score(ctx context.Context, candidate, reference string) model.SimilarityResult
}

// SentimentScorer returns a compound sentiment in [-1, 1].
type SentimentScorer interface {
	Score(text string) float64
}

// VerdictEngine tests a population of F1 scores against a threshold.
type VerdictEngine interface {
	Evaluate(scores []float64, threshold float64) (model.VerdictResult, error)
}

// Store persists evaluations and reads stored travelogues and waypoints.
type Store interface {
	GetTravelogue(ctx context.Context, routeID string) (*model.Travelogue, error)
	GetWaypoints(ctx context.Context, routeID string) ([]*model.Waypoint, error)
	SaveEvaluation(ctx context.Context, e *model.Evaluation) error
	ListF1Scores(ctx context.Context) ([]float64, error)
}

// Options holds the service settings.
type Options struct {
	ReuseTravelogue  bool
	VerdictThreshold float64
}

// Service runs the evaluation pipeline.
type Service struct {
	gen       Generator
	sim       SimilarityScorer
	sentiment SentimentScorer
	verdict   VerdictEngine
	store     Store
	opts      Options
}

// NewService wires the pipeline.
func NewService(gen Generator, sim SimilarityScorer, sent SentimentScorer, v VerdictEngine, st Store, opts Options) *Service {
	return &Service{gen: gen, sim: sim, sentiment: sent, verdict: v, store: st, opts: opts}
}

// Evaluate scores the route's travelogue against the human journal and stores the result.
func (s *Service) Evaluate(ctx context.Context, routeID, journal string) (*model.Evaluation, error) {
	if strings.TrimSpace(journal) == "" {
		return nil, ErrEmptyJournal
	}

	text, err := s.travelogue(ctx, routeID)
	if err != nil {
		return nil, err
	}

	sim := s.sim.Score(ctx, text, journal)
	e := &model.Evaluation{
		RouteID:            routeID,
		BERTScoreF1:        sim.F1,
		BERTScorePrecision: sim.Precision,
		BERTScoreRecall:    sim.Recall,
		IsEquivalent:       sim.IsEquivalent,
		HumanSentiment:     s.sentiment.Score(journal),
		AISentiment:        s.sentiment.Score(text),
		ScoreFailed:        sim.Failed,
	}

	if err := s.store.SaveEvaluation(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to store evaluation: %w", err)
	}
	if e.ScoreFailed {
		slog.Warn("Similarity failed, evaluation kept out of the verdict population", "route", routeID, "id", e.ID)
		return e, nil
	}
	metrics.RecordEvaluation(e.BERTScoreF1, e.IsEquivalent, e.HumanSentiment-e.AISentiment)

	slog.Info("Evaluation stored", "route", routeID, "f1", e.BERTScoreF1, "equivalent", e.IsEquivalent,
		"human_sentiment", e.HumanSentiment, "ai_sentiment", e.AISentiment)
	return e, nil
}

// travelogue returns the stored travelogue when reuse is enabled and no
// waypoint was stored after it, otherwise a fresh one.
func (s *Service) travelogue(ctx context.Context, routeID string) (string, error) {
	if s.opts.ReuseTravelogue {
		t, err := s.store.GetTravelogue(ctx, routeID)
		switch {
		case err == nil && strings.TrimSpace(t.Text) == "":
		case err == nil && s.stale(ctx, t):
			slog.Info("Stored travelogue predates newer waypoints, generating", "route", routeID, "created_at", t.CreatedAt)
		case err == nil:
			slog.Debug("Reusing stored travelogue", "route", routeID, "model", t.Model)
			return t.Text, nil
		case err != nil && !errors.Is(err, model.ErrNotFound):
			slog.Warn("Stored travelogue unavailable, generating", "route", routeID, "error", err)
		}
	}

	res := s.gen.Generate(ctx, routeID)
	switch res.Status {
	case narrator.StatusSuccess:
		return res.Text, nil
	case narrator.StatusNotFound:
		return "", fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	default:
		return "", fmt.Errorf("%w: %v", ErrGenerationFailed, res.Reason)
	}
}

// stale reports whether a waypoint of the route was stored after t was
// generated. A failed lookup counts as stale.
func (s *Service) stale(ctx context.Context, t *model.Travelogue) bool {
	wps, err := s.store.GetWaypoints(ctx, t.RouteID)
	if err != nil {
		slog.Warn("Failed to check waypoints of stored travelogue", "route", t.RouteID, "error", err)
		return true
	}
	for _, wp := range wps {
		if wp.StoredAt.After(t.CreatedAt) {
			return true
		}
	}
	return false
}

// Verdict runs the population test over every stored F1 score.
// threshold <= 0 uses the configured default.
func (s *Service) Verdict(ctx context.Context, threshold float64) (model.VerdictResult, error) {
	if threshold <= 0 {
		threshold = s.opts.VerdictThreshold
	}
	if threshold <= 0 {
		threshold = verdict.DefaultThreshold
	}
	scores, err := s.store.ListF1Scores(ctx)
	if err != nil {
		return model.VerdictResult{}, err
	}

	res, err := s.verdict.Evaluate(scores, threshold)
	if err != nil {
		return model.VerdictResult{}, err
	}
	metrics.RecordVerdict(res.TestName, res.RejectH0)
	return res, nil
}
