package model

import (
	"errors"
	"time"
)

// ErrNotFound is returned by lookups when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Route statuses.
const (
	RouteActive    = "active"
	RouteCompleted = "completed"
)

// Route is a recorded walk.
type Route struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name" validate:"required,max=200"`
	StartLat   float64   `json:"startLat" db:"start_lat" validate:"latitude"`
	StartLon   float64   `json:"startLon" db:"start_lon" validate:"longitude"`
	EndLat     *float64  `json:"endLat,omitempty" db:"end_lat" validate:"omitempty,latitude"`
	EndLon     *float64  `json:"endLon,omitempty" db:"end_lon" validate:"omitempty,longitude"`
	DistanceKm *float64  `json:"distanceKm,omitempty" db:"distance_km" validate:"omitempty,gte=0"`
	Status     string    `json:"status" db:"status" validate:"omitempty,oneof=active completed"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// RouteUpdate lists the route fields a client may change. Nil fields are left untouched.
type RouteUpdate struct {
	Name       *string  `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Status     *string  `json:"status,omitempty" validate:"omitempty,oneof=active completed"`
	EndLat     *float64 `json:"endLat,omitempty" validate:"omitempty,latitude"`
	EndLon     *float64 `json:"endLon,omitempty" validate:"omitempty,longitude"`
	DistanceKm *float64 `json:"distanceKm,omitempty" validate:"omitempty,gte=0"`
}

// Empty reports whether the update changes nothing.
func (u *RouteUpdate) Empty() bool {
	return u.Name == nil && u.Status == nil && u.EndLat == nil && u.EndLon == nil && u.DistanceKm == nil
}

// RouteFinalise closes a route at its end coordinate.
// DistanceKm is computed from the waypoints when omitted.
type RouteFinalise struct {
	EndLat     float64  `json:"endLat" validate:"latitude"`
	EndLon     float64  `json:"endLon" validate:"longitude"`
	DistanceKm *float64 `json:"distanceKm,omitempty" validate:"omitempty,gte=0"`
}

// Waypoint is a point captured along a route, optionally annotated.
type Waypoint struct {
	ID            string    `json:"id" db:"id"`
	RouteID       string    `json:"routeId" db:"route_id" validate:"required"`
	Lat           float64   `json:"latitude" db:"lat" validate:"latitude"`
	Lon           float64   `json:"longitude" db:"lon" validate:"longitude"`
	TextNote      *string   `json:"textNote,omitempty" db:"text_note" validate:"omitempty,max=500"`
	VoiceBlobURL  *string   `json:"voiceBlobUrl,omitempty" db:"voice_blob_url" validate:"omitempty,url"`
	ImageURL      *string   `json:"imageUrl,omitempty" db:"image_url" validate:"omitempty,url"`
	Transcription *string   `json:"transcription,omitempty" db:"transcription"`
	StoredAt      time.Time `json:"storedAt" db:"stored_at"`
}

// Note returns the text note, or "" when none was recorded.
func (w *Waypoint) Note() string {
	if w.TextNote == nil {
		return ""
	}
	return *w.TextNote
}

// UnnamedPOI is the label used for features without a name tag.
const UnnamedPOI = "Unnamed POI"

// POI is a nearby feature returned by the geospatial provider.
// It is fetched per lookup and never persisted.
type POI struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}
