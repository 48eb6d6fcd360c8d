// Package verdict decides whether a population of similarity scores sits
// significantly above an equivalence threshold. Normality (Shapiro-Wilk)
// selects between a one-sample t-test and a Wilcoxon signed-rank test.
package verdict

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"travelogue/pkg/model"
)

// Test names reported in results.
const (
	TestTTest    = "One-Sample T-Test"
	TestWilcoxon = "Wilcoxon Signed-Rank Test"
)

// MinSamples is the smallest population a verdict is computed for.
const MinSamples = 3

const (
	DefaultThreshold = 0.85
	DefaultAlpha     = 0.05
)

// ErrInsufficientData is returned for populations smaller than MinSamples.
var ErrInsufficientData = errors.New("insufficient data for statistical testing")

// Engine runs verdicts at a fixed significance level.
type Engine struct {
	alpha float64
}

// New creates an engine. alpha outside (0, 1) falls back to DefaultAlpha.
func New(alpha float64) *Engine {
	if alpha <= 0 || alpha >= 1 {
		alpha = DefaultAlpha
	}
	return &Engine{alpha: alpha}
}

// Evaluate tests H0: the population's central value is <= threshold against
// H1: it is > threshold.
func (e *Engine) Evaluate(scores []float64, threshold float64) (model.VerdictResult, error) {
	n := len(scores)
	if n < MinSamples {
		return model.VerdictResult{}, fmt.Errorf("%w: need at least %d scores, got %d", ErrInsufficientData, MinSamples, n)
	}

	res := model.VerdictResult{
		N:         n,
		Threshold: threshold,
		Mean:      stat.Mean(scores, nil),
		Std:       stat.PopStdDev(scores, nil),
	}

	_, pNorm, err := ShapiroWilk(scores)
	switch {
	case errors.Is(err, errConstantSample):
		// no spread: the t-test's degenerate branch decides
		res.IsNormal = true
	case err != nil:
		return model.VerdictResult{}, err
	default:
		res.IsNormal = pNorm > e.alpha
	}

	if res.IsNormal {
		res.TestName = TestTTest
		res.Statistic, res.PValue = TTestGreater(scores, threshold)
	} else {
		diffs := make([]float64, n)
		for i, s := range scores {
			diffs[i] = s - threshold
		}
		res.TestName = TestWilcoxon
		res.Statistic, res.PValue = WilcoxonGreater(diffs)
	}

	res.RejectH0 = res.PValue < e.alpha
	return res, nil
}

// Evaluate runs a verdict at the default significance level.
func Evaluate(scores []float64, threshold float64) (model.VerdictResult, error) {
	return New(DefaultAlpha).Evaluate(scores, threshold)
}
