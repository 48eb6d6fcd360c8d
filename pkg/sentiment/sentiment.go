// Package sentiment scores the affective polarity of text with VADER.
package sentiment

import (
	"log/slog"
	"math"
	"strings"

	"github.com/jonreiter/govader"
)

// Analyzer returns VADER compound scores in [-1, 1].
// It is safe for concurrent use.
type Analyzer struct {
	vader *govader.SentimentIntensityAnalyzer
}

// New loads the VADER lexicon.
func New() *Analyzer {
	return &Analyzer{vader: govader.NewSentimentIntensityAnalyzer()}
}

// Score returns the compound polarity of text. Empty text and internal
// failures yield 0 (neutral).
func (a *Analyzer) Score(text string) (score float64) {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("Sentiment scoring failed", "panic", r)
			score = 0
		}
	}()

	c := a.vader.PolarityScores(text).Compound
	if math.IsNaN(c) {
		return 0
	}
	return math.Max(-1, math.Min(1, c))
}

// Pair scores the human and generated texts of one evaluation.
func (a *Analyzer) Pair(human, generated string) (humanScore, generatedScore float64) {
	return a.Score(human), a.Score(generated)
}
