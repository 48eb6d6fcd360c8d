package api

import (
	"net/http"
	"runtime"
	"sync"

	"travelogue/pkg/tracker"
)

// StatsHandler reports per-provider request counters and process diagnostics.
type StatsHandler struct {
	tracker     *tracker.Tracker
	llmFallback []string

	mu     sync.Mutex
	maxMem uint64
}

// NewStatsHandler creates a StatsHandler. fallback lists the LLM chain in order.
func NewStatsHandler(t *tracker.Tracker, fallback []string) *StatsHandler {
	return &StatsHandler{tracker: t, llmFallback: fallback}
}

// ProviderStatsDTO is one provider's counters plus its cache hit rate.
type ProviderStatsDTO struct {
	CacheHits     int64 `json:"cacheHits"`
	CacheMisses   int64 `json:"cacheMisses"`
	APISuccess    int64 `json:"apiSuccess"`
	APIZeroResult int64 `json:"apiZero"`
	APIFailures   int64 `json:"apiErrors"`
	HitRate       int64 `json:"hitRate"`
}

// Diagnostics describes the server process.
type Diagnostics struct {
	MemoryMB    uint64 `json:"memoryMb"`
	MemoryMaxMB uint64 `json:"memoryMaxMb"`
	Goroutines  int    `json:"goroutines"`
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Diagnostics Diagnostics                 `json:"diagnostics"`
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	LLMFallback []string                    `json:"llmFallback"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Diagnostics: h.diagnostics(),
		Providers:   make(map[string]ProviderStatsDTO),
		LLMFallback: h.llmFallback,
	}

	for provider, stats := range h.tracker.Snapshot() {
		totalCache := stats.CacheHits + stats.CacheMisses
		hitRate := int64(0)
		if totalCache > 0 {
			hitRate = (stats.CacheHits * 100) / totalCache
		}
		resp.Providers[provider] = ProviderStatsDTO{
			CacheHits:     stats.CacheHits,
			CacheMisses:   stats.CacheMisses,
			APISuccess:    stats.APISuccess,
			APIZeroResult: stats.APIZeroResult,
			APIFailures:   stats.APIFailures,
			HitRate:       hitRate,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatsHandler) diagnostics() Diagnostics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.mu.Lock()
	if m.Alloc > h.maxMem {
		h.maxMem = m.Alloc
	}
	peak := h.maxMem
	h.mu.Unlock()

	return Diagnostics{
		MemoryMB:    bToMb(m.Alloc),
		MemoryMaxMB: bToMb(peak),
		Goroutines:  runtime.NumGoroutine(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
