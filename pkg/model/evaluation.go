package model

import (
	"encoding/json"
	"math"
	"time"
)

// SimilarityResult holds BERTScore-style precision, recall and F1, each in [0,1].
type SimilarityResult struct {
	Precision    float64 `json:"precision"`
	Recall       float64 `json:"recall"`
	F1           float64 `json:"f1"`
	IsEquivalent bool    `json:"isEquivalent"`
	// Failed marks a comparison that could not be computed; the scores are zero.
	Failed bool `json:"failed,omitempty"`
}

// VerdictResult reports whether a batch of F1 scores is significantly above a threshold.
type VerdictResult struct {
	TestName  string  `json:"testName"`
	IsNormal  bool    `json:"isNormal"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"pValue"`
	RejectH0  bool    `json:"rejectH0"`
	Mean      float64 `json:"mean"`
	Std       float64 `json:"std"`
	N         int     `json:"n"`
	Threshold float64 `json:"threshold"`
}

// MarshalJSON writes a non-finite statistic (zero-variance samples) as null.
func (v VerdictResult) MarshalJSON() ([]byte, error) {
	type plain VerdictResult
	out := struct {
		plain
		Statistic *float64 `json:"statistic"`
	}{plain: plain(v)}
	if !math.IsInf(v.Statistic, 0) && !math.IsNaN(v.Statistic) {
		out.Statistic = &v.Statistic
	}
	return json.Marshal(out)
}

// Evaluation is one scored comparison of a generated travelogue against a human journal.
type Evaluation struct {
	ID                 string    `json:"id" db:"id"`
	RouteID            string    `json:"routeId" db:"route_id"`
	BERTScoreF1        float64   `json:"bertscoreF1" db:"f1"`
	BERTScorePrecision float64   `json:"bertscorePrecision" db:"precision"`
	BERTScoreRecall    float64   `json:"bertscoreRecall" db:"recall"`
	IsEquivalent       bool      `json:"isEquivalent" db:"is_equivalent"`
	HumanSentiment     float64   `json:"humanSentiment" db:"human_sentiment"`
	AISentiment        float64   `json:"aiSentiment" db:"ai_sentiment"`
	ScoreFailed        bool      `json:"scoreFailed" db:"score_failed"`
	CreatedAt          time.Time `json:"createdAt" db:"created_at"`
}
