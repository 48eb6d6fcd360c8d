// Package overpass looks up points of interest around a coordinate through
// the OpenStreetMap Overpass API.
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"travelogue/pkg/config"
	"travelogue/pkg/logging"
	"travelogue/pkg/model"
	"travelogue/pkg/request"
)

// ErrUnavailable wraps every failure to obtain a usable answer from the API.
var ErrUnavailable = errors.New("overpass unavailable")

// Tags queried, in category priority order.
var Tags = []string{"amenity", "leisure", "natural", "tourism", "historic"}

// Requester is the subset of request.Client used here.
type Requester interface {
	PostWithHeaders(ctx context.Context, u string, body []byte, headers map[string]string) ([]byte, error)
}

// Client queries the Overpass API.
type Client struct {
	req     Requester
	url     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewClient creates a client from configuration.
func NewClient(req Requester, cfg *config.OverpassConfig) *Client {
	timeout := cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		req:     req,
		url:     cfg.URL,
		timeout: timeout,
		logger:  slog.With("component", "overpass"),
	}
}

// QueryPOIs returns the named features within radius meters of (lat, lon), in
// the order the API returned them. It makes a single attempt; callers own
// retries. Answers are never cached: every call reaches the API.
//
// The request deadline is the one set with request.WithTimeout, or the query
// timeout plus a grace period. It starts once the request leaves the queue.
func (c *Client) QueryPOIs(ctx context.Context, lat, lon, radius float64) ([]model.POI, error) {
	query := BuildQuery(lat, lon, radius, c.timeout)
	form := url.Values{"data": {query}}.Encode()

	ctx = request.WithProvider(request.WithAttempts(ctx, 1), "overpass")
	if _, ok := request.TimeoutFrom(ctx); !ok {
		ctx = request.WithTimeout(ctx, c.timeout+5*time.Second)
	}

	logging.Trace(c.logger, "Overpass query", "lat", lat, "lon", lon, "radius", radius, "query", query)
	body, err := c.req.PostWithHeaders(ctx, c.url, []byte(form), map[string]string{
		"Content-Type": "application/x-www-form-urlencoded",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	pois, err := ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return pois, nil
}

// BuildQuery renders the Overpass QL union of node queries for every tag in Tags.
func BuildQuery(lat, lon, radius float64, timeout time.Duration) string {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[out:json][timeout:%d];\n(\n", secs)
	for _, tag := range Tags {
		fmt.Fprintf(&b, "  node[\"%s\"](around:%g,%g,%g);\n", tag, radius, lat, lon)
	}
	b.WriteString(");\nout body;\n")
	return b.String()
}

type response struct {
	Elements []struct {
		Type string            `json:"type"`
		ID   int64             `json:"id"`
		Tags map[string]string `json:"tags"`
	} `json:"elements"`
}

// ParseResponse converts an Overpass JSON answer into POIs.
func ParseResponse(data []byte) ([]model.POI, error) {
	var resp response
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	pois := make([]model.POI, 0, len(resp.Elements))
	for _, el := range resp.Elements {
		name := el.Tags["name"]
		if name == "" {
			name = model.UnnamedPOI
		}
		pois = append(pois, model.POI{Name: name, Category: Category(el.Tags)})
	}
	return pois, nil
}

// Category returns the first non-empty tag value in priority order.
func Category(tags map[string]string) string {
	for _, t := range Tags {
		if v := tags[t]; v != "" {
			return v
		}
	}
	return ""
}
