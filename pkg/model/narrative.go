package model

import (
	"strings"
	"time"
)

// NarrativeContext is the per-waypoint evidence fed to the language model.
type NarrativeContext struct {
	Route  *Route
	Blocks []string // one per waypoint, in capture order
}

// Text joins the waypoint blocks into the journey document.
func (c *NarrativeContext) Text() string {
	return strings.Join(c.Blocks, "\n")
}

// Travelogue is the last successful generation for a route.
type Travelogue struct {
	RouteID   string    `json:"routeId" db:"route_id"`
	Text      string    `json:"text" db:"text"`
	Model     string    `json:"model" db:"model"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
