package narrator

import (
	"context"

	"travelogue/pkg/model"
)

// RouteSource resolves a route and its waypoints (ascending storage order).
type RouteSource interface {
	GetRoute(ctx context.Context, id string) (*model.Route, error)
	GetWaypoints(ctx context.Context, routeID string) ([]*model.Waypoint, error)
}

// POIProvider returns the features around a coordinate, in provider order.
type POIProvider interface {
	QueryPOIs(ctx context.Context, lat, lon, radius float64) ([]model.POI, error)
}

// ContextBuilder assembles the per-waypoint journey document for a route.
type ContextBuilder interface {
	Build(ctx context.Context, routeID string) (*model.NarrativeContext, error)
}

// PromptRenderer renders a named template.
type PromptRenderer interface {
	Render(name string, data any) (string, error)
}

// TravelogueSink receives every successful generation.
type TravelogueSink interface {
	SaveTravelogue(ctx context.Context, t *model.Travelogue) error
}
