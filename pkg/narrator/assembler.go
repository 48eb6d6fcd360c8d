package narrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"travelogue/pkg/config"
	"travelogue/pkg/metrics"
	"travelogue/pkg/model"
	"travelogue/pkg/request"
)

// ErrRouteNotFound is returned when the requested route does not exist.
var ErrRouteNotFound = fmt.Errorf("route %w", model.ErrNotFound)

const (
	defaultRadius      = 500.0
	defaultMaxPOIs     = 5
	defaultConcurrency = 4
	defaultAttempts    = 3
	defaultBaseDelay   = time.Second
)

// Assembler builds the narrative context: one evidence block per waypoint.
type Assembler struct {
	routes RouteSource
	pois   POIProvider

	radius        float64
	maxPOIs       int
	concurrency   int
	lookupTimeout time.Duration
	attempts      int
	baseDelay     time.Duration
}

// NewAssembler creates an Assembler. A nil cfg uses the defaults.
func NewAssembler(routes RouteSource, pois POIProvider, cfg *config.ContextConfig) *Assembler {
	a := &Assembler{
		routes:      routes,
		pois:        pois,
		radius:      defaultRadius,
		maxPOIs:     defaultMaxPOIs,
		concurrency: defaultConcurrency,
		attempts:    defaultAttempts,
		baseDelay:   defaultBaseDelay,
	}
	if cfg == nil {
		return a
	}
	if r := cfg.Radius.Meters(); r > 0 {
		a.radius = r
	}
	if cfg.MaxPOIs > 0 {
		a.maxPOIs = cfg.MaxPOIs
	}
	if cfg.Concurrency > 0 {
		a.concurrency = cfg.Concurrency
	}
	if cfg.Retry.Attempts > 0 {
		a.attempts = cfg.Retry.Attempts
	}
	if d := cfg.Retry.BaseDelay.Std(); d > 0 {
		a.baseDelay = d
	}
	a.lookupTimeout = cfg.LookupTimeout.Std()
	return a
}

// Build resolves the route and its waypoints and attaches nearby features to
// each waypoint. A waypoint whose lookups keep failing is kept without
// features; it never fails the build.
func (a *Assembler) Build(ctx context.Context, routeID string) (*model.NarrativeContext, error) {
	route, err := a.routes.GetRoute(ctx, routeID)
	if errors.Is(err, model.ErrNotFound) || (err == nil && route == nil) {
		return nil, fmt.Errorf("%w: %s", ErrRouteNotFound, routeID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load route: %w", err)
	}

	waypoints, err := a.routes.GetWaypoints(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load waypoints: %w", err)
	}

	found := make([][]model.POI, len(waypoints))
	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, wp := range waypoints {
		g.Go(func() error {
			found[i] = a.lookup(ctx, wp)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blocks := make([]string, len(waypoints))
	for i, wp := range waypoints {
		blocks[i] = a.block(wp, found[i])
	}

	slog.Debug("Narrative context assembled", "route", routeID, "waypoints", len(waypoints))
	return &model.NarrativeContext{Route: route, Blocks: blocks}, nil
}

// lookup queries the provider with exponential backoff between attempts.
func (a *Assembler) lookup(ctx context.Context, wp *model.Waypoint) []model.POI {
	var lastErr error
	for attempt := 0; attempt < a.attempts; attempt++ {
		pois, err := a.query(ctx, wp)
		if err == nil {
			metrics.RecordPOILookup(metrics.LookupSuccess)
			return pois
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil
		}
		if attempt == a.attempts-1 {
			break
		}

		metrics.RecordPOILookup(metrics.LookupRetry)
		delay := request.Delay(attempt, a.baseDelay, 0)
		slog.Debug("POI lookup failed, retrying", "waypoint", wp.ID, "attempt", attempt+1, "delay", delay, "error", err)
		if request.Sleep(ctx, delay) != nil {
			return nil
		}
	}

	metrics.RecordPOILookup(metrics.LookupDegraded)
	slog.Warn("POI lookup gave up, waypoint kept without features", "waypoint", wp.ID, "attempts", a.attempts, "error", lastErr)
	return nil
}

// query runs one lookup. The lookup timeout is carried as a request timeout so
// it starts when the lookup is sent, not while it waits behind its siblings.
func (a *Assembler) query(ctx context.Context, wp *model.Waypoint) ([]model.POI, error) {
	if a.lookupTimeout > 0 {
		ctx = request.WithTimeout(ctx, a.lookupTimeout)
	}
	return a.pois.QueryPOIs(ctx, wp.Lat, wp.Lon, a.radius)
}

func (a *Assembler) block(wp *model.Waypoint, pois []model.POI) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Waypoint at (%s, %s):\n", formatCoord(wp.Lat), formatCoord(wp.Lon))
	if note := wp.Note(); note != "" {
		fmt.Fprintf(&sb, "- User Note: %s\n", note)
	}
	if len(pois) > 0 {
		if len(pois) > a.maxPOIs {
			pois = pois[:a.maxPOIs]
		}
		names := make([]string, len(pois))
		for i, p := range pois {
			names[i] = describePOI(p)
		}
		fmt.Fprintf(&sb, "- Nearby Features: %s\n", strings.Join(names, ", "))
	}
	return sb.String()
}

func describePOI(p model.POI) string {
	name := p.Name
	if name == "" {
		name = model.UnnamedPOI
	}
	if p.Category == "" {
		return name
	}
	return name + " (" + p.Category + ")"
}

// formatCoord prints the shortest round-tripping decimal, keeping one
// fractional digit for whole numbers (51 -> "51.0").
func formatCoord(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if f == math.Trunc(f) && !math.IsInf(f, 0) {
		s += ".0"
	}
	return s
}
