package api

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"travelogue/pkg/config"
	"travelogue/pkg/metrics"
)

// Handlers groups the endpoint handlers mounted by NewServer.
type Handlers struct {
	Routes    *RouteHandler
	Narrative *NarrativeHandler
	Health    *HealthHandler
	Stats     *StatsHandler
}

// NewHandler builds the routed handler with CORS and request metrics applied.
func NewHandler(h Handlers, corsOrigins []string) http.Handler {
	mux := http.NewServeMux()

	// 1. Health & meta
	mux.Handle("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/heartbeat", handleHeartbeat)
	mux.HandleFunc("GET /api/version", handleVersion)
	if h.Stats != nil {
		mux.Handle("GET /api/stats", h.Stats)
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	// 2. Routes & waypoints
	mux.HandleFunc("POST /api/routes", h.Routes.HandleCreate)
	mux.HandleFunc("GET /api/routes", h.Routes.HandleList)
	mux.HandleFunc("GET /api/routes/{id}", h.Routes.HandleGet)
	mux.HandleFunc("PATCH /api/routes/{id}", h.Routes.HandleUpdate)
	mux.HandleFunc("POST /api/routes/{id}/finalise", h.Routes.HandleFinalise)
	mux.HandleFunc("GET /api/routes/{id}/waypoints", h.Routes.HandleListWaypoints)
	mux.HandleFunc("POST /api/waypoints", h.Routes.HandleSubmitWaypoint)

	// 3. Generation & evaluation
	mux.HandleFunc("POST /api/generate/{id}", h.Narrative.HandleGenerate)
	mux.HandleFunc("POST /api/evaluate/{id}", h.Narrative.HandleEvaluate)
	mux.HandleFunc("GET /api/routes/{id}/evaluations", h.Narrative.HandleListEvaluations)
	mux.HandleFunc("GET /api/evaluations/verdict", h.Narrative.HandleVerdict)

	return withCORS(corsOrigins, withMetrics(mux))
}

// NewServer creates and configures the HTTP server.
func NewServer(cfg *config.ServerConfig, h Handlers) *http.Server {
	return &http.Server{
		Addr:         cfg.Address,
		Handler:      NewHandler(h, cfg.CORSOrigins),
		ReadTimeout:  cfg.ReadTimeout.Std(),
		WriteTimeout: cfg.WriteTimeout.Std(),
		IdleTimeout:  60 * time.Second,
	}
}

// withCORS answers preflight requests and tags responses for allowed origins.
func withCORS(origins []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && (slices.Contains(origins, "*") || slices.Contains(origins, origin))
		if allowed {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if allowed {
				h := w.Header()
				h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					h.Set("Access-Control-Allow-Headers", reqHeaders)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withMetrics records every request under its route pattern.
func withMetrics(mux *http.ServeMux) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		mux.ServeHTTP(rec, r)

		_, pattern := mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		elapsed := time.Since(start)
		metrics.RecordHTTPRequest(pattern, r.Method, strconv.Itoa(rec.status), elapsed.Seconds())
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "took", elapsed)
	})
}
