// Package similarity scores semantic overlap between two texts using greedy
// best-match over contextual embeddings (BERTScore).
package similarity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"travelogue/pkg/config"
	"travelogue/pkg/model"
)

// DefaultThreshold is the F1 at or above which two texts are equivalent.
const DefaultThreshold = 0.85

var (
	ErrEmptyText         = errors.New("similarity: empty text")
	ErrDimensionMismatch = errors.New("similarity: embedding dimension mismatch")
)

// Embedder maps text units to vectors, one per input, in order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Scorer computes BERTScore-style precision, recall and F1.
type Scorer struct {
	emb       Embedder
	seg       Segmenter
	threshold float64
	logger    *slog.Logger
}

// New builds a scorer from configuration.
func New(emb Embedder, cfg *config.SimilarityConfig) (*Scorer, error) {
	var seg Segmenter
	switch cfg.Segment {
	case "", "token":
		seg = TokenSegmenter{Window: cfg.Window}
	case "chunk":
		cs, err := NewChunkSegmenter(cfg.ChunkSize, cfg.ChunkOverlap)
		if err != nil {
			return nil, err
		}
		seg = cs
	default:
		return nil, fmt.Errorf("unknown segment mode %q", cfg.Segment)
	}
	return NewWithSegmenter(emb, seg, cfg.Threshold), nil
}

// NewWithSegmenter builds a scorer with an explicit segmenter. A threshold
// outside (0, 1] falls back to DefaultThreshold.
func NewWithSegmenter(emb Embedder, seg Segmenter, threshold float64) *Scorer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Scorer{
		emb:       emb,
		seg:       seg,
		threshold: threshold,
		logger:    slog.With("component", "similarity"),
	}
}

// Threshold returns the equivalence threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Score compares candidate against reference. Failures are logged and yield
// a zero result marked Failed, which is never equivalent.
func (s *Scorer) Score(ctx context.Context, candidate, reference string) model.SimilarityResult {
	res, err := s.score(ctx, candidate, reference)
	if err != nil {
		s.logger.Error("Similarity scoring failed", "error", err)
		return model.SimilarityResult{Failed: true}
	}
	return res
}

func (s *Scorer) score(ctx context.Context, candidate, reference string) (model.SimilarityResult, error) {
	if strings.TrimSpace(candidate) == "" || strings.TrimSpace(reference) == "" {
		return model.SimilarityResult{}, ErrEmptyText
	}

	candUnits, err := s.seg.Segment(candidate)
	if err != nil {
		return model.SimilarityResult{}, err
	}
	refUnits, err := s.seg.Segment(reference)
	if err != nil {
		return model.SimilarityResult{}, err
	}
	if len(candUnits) == 0 || len(refUnits) == 0 {
		return model.SimilarityResult{}, ErrEmptyText
	}

	vecs, err := s.emb.EmbedBatch(ctx, append(append([]string{}, candUnits...), refUnits...))
	if err != nil {
		return model.SimilarityResult{}, fmt.Errorf("embed: %w", err)
	}
	if len(vecs) != len(candUnits)+len(refUnits) {
		return model.SimilarityResult{}, fmt.Errorf("embedder returned %d vectors for %d units", len(vecs), len(candUnits)+len(refUnits))
	}

	p, r, f1, err := Greedy(vecs[:len(candUnits)], vecs[len(candUnits):])
	if err != nil {
		return model.SimilarityResult{}, err
	}
	return model.SimilarityResult{
		Precision:    p,
		Recall:       r,
		F1:           f1,
		IsEquivalent: IsEquivalent(f1, s.threshold),
	}, nil
}

// IsEquivalent applies the inclusive threshold.
func IsEquivalent(f1, threshold float64) bool {
	return f1 >= threshold
}

// Greedy matches each candidate vector to its most similar reference vector
// (precision) and vice versa (recall). All values are clamped to [0, 1].
func Greedy(cand, ref [][]float32) (precision, recall, f1 float64, err error) {
	if len(cand) == 0 || len(ref) == 0 {
		return 0, 0, 0, ErrEmptyText
	}

	sim := make([][]float64, len(cand))
	for i, c := range cand {
		sim[i] = make([]float64, len(ref))
		for j, r := range ref {
			v, err := Cosine(c, r)
			if err != nil {
				return 0, 0, 0, err
			}
			sim[i][j] = v
		}
	}

	for i := range cand {
		best := math.Inf(-1)
		for j := range ref {
			best = math.Max(best, sim[i][j])
		}
		precision += best
	}
	precision /= float64(len(cand))

	for j := range ref {
		best := math.Inf(-1)
		for i := range cand {
			best = math.Max(best, sim[i][j])
		}
		recall += best
	}
	recall /= float64(len(ref))

	precision, recall = clamp01(precision), clamp01(recall)
	if precision+recall == 0 {
		return precision, recall, 0, nil
	}
	f1 = clamp01(2 * precision * recall / (precision + recall))
	return precision, recall, f1, nil
}

// Cosine returns the cosine similarity of a and b. A zero vector has
// similarity 0 with everything.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
