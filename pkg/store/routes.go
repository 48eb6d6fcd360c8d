package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"travelogue/pkg/model"
)

const routeColumns = `id, name, start_lat, start_lon, end_lat, end_lon, distance_km, status, created_at`

// CreateRoute inserts r, assigning an ID, status and creation time when missing.
func (s *SQLiteStore) CreateRoute(ctx context.Context, r *model.Route) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = model.RouteActive
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO routes (`+routeColumns+`)
		 VALUES (:id, :name, :start_lat, :start_lon, :end_lat, :end_lon, :distance_km, :status, :created_at)`, r)
	if err != nil {
		return fmt.Errorf("insert route: %w", err)
	}
	return nil
}

// GetRoute returns the route or an error wrapping model.ErrNotFound.
func (s *SQLiteStore) GetRoute(ctx context.Context, id string) (*model.Route, error) {
	var r model.Route
	err := s.db.GetContext(ctx, &r, `SELECT `+routeColumns+` FROM routes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("route %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get route: %w", err)
	}
	return &r, nil
}

// ListRoutes returns all routes, newest first.
func (s *SQLiteStore) ListRoutes(ctx context.Context) ([]*model.Route, error) {
	var routes []*model.Route
	if err := s.db.SelectContext(ctx, &routes, `SELECT `+routeColumns+` FROM routes ORDER BY created_at DESC`); err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

// UpdateRoute applies the non-nil fields of u. Each field maps to a fixed column.
func (s *SQLiteStore) UpdateRoute(ctx context.Context, id string, u *model.RouteUpdate) (*model.Route, error) {
	var (
		sets []string
		args []any
	)
	if u.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *u.Name)
	}
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *u.Status)
	}
	if u.EndLat != nil {
		sets = append(sets, "end_lat = ?")
		args = append(args, *u.EndLat)
	}
	if u.EndLon != nil {
		sets = append(sets, "end_lon = ?")
		args = append(args, *u.EndLon)
	}
	if u.DistanceKm != nil {
		sets = append(sets, "distance_km = ?")
		args = append(args, *u.DistanceKm)
	}

	if len(sets) == 0 {
		return s.GetRoute(ctx, id)
	}

	args = append(args, id)
	res, err := s.db.ExecContext(ctx, `UPDATE routes SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update route: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, fmt.Errorf("route %s: %w", id, model.ErrNotFound)
	}
	return s.GetRoute(ctx, id)
}
