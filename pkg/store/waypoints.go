package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"travelogue/pkg/model"
)

// SaveWaypoint stores w under its route. The route must exist.
func (s *SQLiteStore) SaveWaypoint(ctx context.Context, w *model.Waypoint) error {
	if _, err := s.GetRoute(ctx, w.RouteID); err != nil {
		return err
	}
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.StoredAt.IsZero() {
		w.StoredAt = time.Now().UTC()
	}

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO waypoints (id, route_id, lat, lon, text_note, voice_blob_url, image_url, transcription, stored_at)
		 VALUES (:id, :route_id, :lat, :lon, :text_note, :voice_blob_url, :image_url, :transcription, :stored_at)`, w)
	if err != nil {
		return fmt.Errorf("insert waypoint: %w", err)
	}
	return nil
}

// GetWaypoints returns the route's waypoints ordered by storage time.
// Insertion order breaks ties.
func (s *SQLiteStore) GetWaypoints(ctx context.Context, routeID string) ([]*model.Waypoint, error) {
	var wps []*model.Waypoint
	err := s.db.SelectContext(ctx, &wps,
		`SELECT id, route_id, lat, lon, text_note, voice_blob_url, image_url, transcription, stored_at
		 FROM waypoints WHERE route_id = ? ORDER BY stored_at ASC, rowid ASC`, routeID)
	if err != nil {
		return nil, fmt.Errorf("get waypoints: %w", err)
	}
	return wps, nil
}
