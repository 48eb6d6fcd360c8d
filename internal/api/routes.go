package api

import (
	"context"
	"log/slog"
	"math"
	"net/http"

	"travelogue/pkg/geo"
	"travelogue/pkg/model"
)

// RouteStore is the persistence the route and waypoint endpoints need.
type RouteStore interface {
	CreateRoute(ctx context.Context, r *model.Route) error
	GetRoute(ctx context.Context, id string) (*model.Route, error)
	UpdateRoute(ctx context.Context, id string, u *model.RouteUpdate) (*model.Route, error)
	ListRoutes(ctx context.Context) ([]*model.Route, error)
	SaveWaypoint(ctx context.Context, w *model.Waypoint) error
	GetWaypoints(ctx context.Context, routeID string) ([]*model.Waypoint, error)
}

// RouteHandler serves route CRUD, finalisation and waypoint submission.
type RouteHandler struct {
	store RouteStore
}

// NewRouteHandler creates a new RouteHandler.
func NewRouteHandler(st RouteStore) *RouteHandler {
	return &RouteHandler{store: st}
}

// routeCreate is the accepted body of POST /api/routes.
type routeCreate struct {
	Name       string   `json:"name" validate:"required,max=200"`
	StartLat   float64  `json:"startLat" validate:"latitude"`
	StartLon   float64  `json:"startLon" validate:"longitude"`
	EndLat     *float64 `json:"endLat" validate:"omitempty,latitude"`
	EndLon     *float64 `json:"endLon" validate:"omitempty,longitude"`
	DistanceKm *float64 `json:"distanceKm" validate:"omitempty,gt=0"`
}

// HandleCreate handles POST /api/routes.
func (h *RouteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req routeCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	route := &model.Route{
		Name:       req.Name,
		StartLat:   req.StartLat,
		StartLon:   req.StartLon,
		EndLat:     req.EndLat,
		EndLon:     req.EndLon,
		DistanceKm: req.DistanceKm,
	}
	if err := h.store.CreateRoute(r.Context(), route); err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}
	slog.Info("API: route created", "route", route.ID, "name", route.Name)
	writeJSON(w, http.StatusCreated, route)
}

// HandleList handles GET /api/routes.
func (h *RouteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	routes, err := h.store.ListRoutes(r.Context())
	if err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}
	if routes == nil {
		routes = []*model.Route{}
	}
	writeJSON(w, http.StatusOK, routes)
}

// HandleGet handles GET /api/routes/{id}.
func (h *RouteHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	route, err := h.store.GetRoute(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// HandleUpdate handles PATCH /api/routes/{id}.
func (h *RouteHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var u model.RouteUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	route, err := h.store.UpdateRoute(r.Context(), r.PathValue("id"), &u)
	if err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}
	writeJSON(w, http.StatusOK, route)
}

// HandleFinalise handles POST /api/routes/{id}/finalise. The route is marked
// completed; without an explicit distance the length of the walked path
// (start, waypoints, end) is stored.
func (h *RouteHandler) HandleFinalise(w http.ResponseWriter, r *http.Request) {
	var req model.RouteFinalise
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	id := r.PathValue("id")
	route, err := h.store.GetRoute(ctx, id)
	if err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}

	distance := req.DistanceKm
	if distance == nil {
		wps, err := h.store.GetWaypoints(ctx, id)
		if err != nil {
			writeStoreError(w, err, "Route not found")
			return
		}
		km := pathKm(route, wps, req.EndLat, req.EndLon)
		distance = &km
	}

	status := model.RouteCompleted
	updated, err := h.store.UpdateRoute(ctx, id, &model.RouteUpdate{
		Status:     &status,
		EndLat:     &req.EndLat,
		EndLon:     &req.EndLon,
		DistanceKm: distance,
	})
	if err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}
	slog.Info("API: route finalised", "route", id, "distance_km", *distance)
	writeJSON(w, http.StatusOK, updated)
}

// pathKm returns the haversine length in km, rounded to metres.
func pathKm(route *model.Route, wps []*model.Waypoint, endLat, endLon float64) float64 {
	pts := make([]geo.Point, 0, len(wps)+2)
	pts = append(pts, geo.Point{Lat: route.StartLat, Lon: route.StartLon})
	for _, wp := range wps {
		pts = append(pts, geo.Point{Lat: wp.Lat, Lon: wp.Lon})
	}
	pts = append(pts, geo.Point{Lat: endLat, Lon: endLon})
	return math.Round(geo.PathLength(pts)) / 1000
}

// waypointCreate is the accepted body of POST /api/waypoints.
type waypointCreate struct {
	RouteID      string  `json:"routeId" validate:"required"`
	Latitude     float64 `json:"latitude" validate:"latitude"`
	Longitude    float64 `json:"longitude" validate:"longitude"`
	TextNote     *string `json:"textNote" validate:"omitempty,max=500"`
	VoiceBlobURL *string `json:"voiceBlobUrl" validate:"omitempty,url"`
	ImageURL     *string `json:"imageUrl" validate:"omitempty,url"`
}

// HandleSubmitWaypoint handles POST /api/waypoints.
func (h *RouteHandler) HandleSubmitWaypoint(w http.ResponseWriter, r *http.Request) {
	var req waypointCreate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	wp := &model.Waypoint{
		RouteID:      req.RouteID,
		Lat:          req.Latitude,
		Lon:          req.Longitude,
		TextNote:     req.TextNote,
		VoiceBlobURL: req.VoiceBlobURL,
		ImageURL:     req.ImageURL,
	}
	if err := h.store.SaveWaypoint(r.Context(), wp); err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}
	writeJSON(w, http.StatusCreated, wp)
}

// HandleListWaypoints handles GET /api/routes/{id}/waypoints.
func (h *RouteHandler) HandleListWaypoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.PathValue("id")
	if _, err := h.store.GetRoute(ctx, id); err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}
	wps, err := h.store.GetWaypoints(ctx, id)
	if err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}
	if wps == nil {
		wps = []*model.Waypoint{}
	}
	writeJSON(w, http.StatusOK, wps)
}
