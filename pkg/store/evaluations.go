package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"travelogue/pkg/model"
)

func (s *SQLiteStore) SaveEvaluation(ctx context.Context, e *model.Evaluation) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO evaluations (id, route_id, f1, precision, recall, is_equivalent, human_sentiment, ai_sentiment, score_failed, created_at)
		 VALUES (:id, :route_id, :f1, :precision, :recall, :is_equivalent, :human_sentiment, :ai_sentiment, :score_failed, :created_at)`, e)
	if err != nil {
		return fmt.Errorf("insert evaluation: %w", err)
	}
	return nil
}

// ListEvaluations returns a route's evaluations, oldest first. An empty routeID lists all.
func (s *SQLiteStore) ListEvaluations(ctx context.Context, routeID string) ([]*model.Evaluation, error) {
	q := `SELECT id, route_id, f1, precision, recall, is_equivalent, human_sentiment, ai_sentiment, score_failed, created_at FROM evaluations`
	var args []any
	if routeID != "" {
		q += ` WHERE route_id = ?`
		args = append(args, routeID)
	}
	q += ` ORDER BY created_at ASC, rowid ASC`

	var evals []*model.Evaluation
	if err := s.db.SelectContext(ctx, &evals, q, args...); err != nil {
		return nil, fmt.Errorf("list evaluations: %w", err)
	}
	return evals, nil
}

// ListF1Scores returns every stored F1 score. Evaluations whose similarity
// could not be computed are left out.
func (s *SQLiteStore) ListF1Scores(ctx context.Context) ([]float64, error) {
	var scores []float64
	if err := s.db.SelectContext(ctx, &scores, `SELECT f1 FROM evaluations WHERE score_failed = 0 ORDER BY rowid ASC`); err != nil {
		return nil, fmt.Errorf("list f1 scores: %w", err)
	}
	return scores, nil
}

func (s *SQLiteStore) SaveTravelogue(ctx context.Context, t *model.Travelogue) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.NamedExecContext(ctx,
		`INSERT OR REPLACE INTO travelogues (route_id, text, model, created_at)
		 VALUES (:route_id, :text, :model, :created_at)`, t)
	if err != nil {
		return fmt.Errorf("save travelogue: %w", err)
	}
	return nil
}

// GetTravelogue returns the stored travelogue or an error wrapping model.ErrNotFound.
func (s *SQLiteStore) GetTravelogue(ctx context.Context, routeID string) (*model.Travelogue, error) {
	var t model.Travelogue
	err := s.db.GetContext(ctx, &t, `SELECT route_id, text, model, created_at FROM travelogues WHERE route_id = ?`, routeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("travelogue %s: %w", routeID, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get travelogue: %w", err)
	}
	return &t, nil
}
