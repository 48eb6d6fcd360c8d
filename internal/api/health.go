package api

import (
	"net/http"

	"travelogue/pkg/probe"
	"travelogue/pkg/version"
)

// HealthHandler reports dependency reachability.
type HealthHandler struct {
	probes []probe.Probe
}

// NewHealthHandler creates a HealthHandler running probes on every request.
func NewHealthHandler(probes ...probe.Probe) *HealthHandler {
	return &HealthHandler{probes: probes}
}

type healthResponse struct {
	probe.Report
	Service string `json:"service"`
	Version string `json:"version"`
}

// ServeHTTP handles GET /api/health. A failed critical probe answers 503.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rep := probe.NewReport(probe.Run(r.Context(), h.probes))
	status := http.StatusOK
	if rep.Status == "down" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, healthResponse{Report: rep, Service: "travelogue", Version: version.Version})
}

func handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct{}{})
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version.Version})
}
