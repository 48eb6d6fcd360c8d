package store

import (
	"context"

	"travelogue/pkg/model"
)

// RouteStore handles route persistence.
type RouteStore interface {
	CreateRoute(ctx context.Context, r *model.Route) error
	GetRoute(ctx context.Context, id string) (*model.Route, error)
	UpdateRoute(ctx context.Context, id string, u *model.RouteUpdate) (*model.Route, error)
	ListRoutes(ctx context.Context) ([]*model.Route, error)
}

// WaypointStore handles waypoint persistence. Waypoints are always returned
// in ascending storage order.
type WaypointStore interface {
	SaveWaypoint(ctx context.Context, w *model.Waypoint) error
	GetWaypoints(ctx context.Context, routeID string) ([]*model.Waypoint, error)
}

// EvaluationStore handles evaluation results.
type EvaluationStore interface {
	SaveEvaluation(ctx context.Context, e *model.Evaluation) error
	ListEvaluations(ctx context.Context, routeID string) ([]*model.Evaluation, error)
	ListF1Scores(ctx context.Context) ([]float64, error)
}

// TravelogueStore keeps the last successful generation per route.
type TravelogueStore interface {
	SaveTravelogue(ctx context.Context, t *model.Travelogue) error
	GetTravelogue(ctx context.Context, routeID string) (*model.Travelogue, error)
}

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
}
