package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"travelogue/pkg/evaluation"
	"travelogue/pkg/model"
	"travelogue/pkg/narrator"
	"travelogue/pkg/verdict"
)

// Generator produces a travelogue for a route.
type Generator interface {
	Generate(ctx context.Context, routeID string) narrator.Result
}

// Evaluator runs the evaluation pipeline.
type Evaluator interface {
	Evaluate(ctx context.Context, routeID, journal string) (*model.Evaluation, error)
	Verdict(ctx context.Context, threshold float64) (model.VerdictResult, error)
}

// EvaluationLister lists stored evaluations.
type EvaluationLister interface {
	ListEvaluations(ctx context.Context, routeID string) ([]*model.Evaluation, error)
}

// NarrativeHandler serves generation, evaluation and verdict endpoints.
type NarrativeHandler struct {
	gen   Generator
	eval  Evaluator
	evals EvaluationLister
}

// NewNarrativeHandler creates a new NarrativeHandler.
func NewNarrativeHandler(gen Generator, eval Evaluator, evals EvaluationLister) *NarrativeHandler {
	return &NarrativeHandler{gen: gen, eval: eval, evals: evals}
}

// GenerateResponse is the body of POST /api/generate/{id}.
type GenerateResponse struct {
	RouteID    string `json:"routeId"`
	Status     string `json:"status"` // completed or failed
	Travelogue string `json:"travelogue"`
	Model      string `json:"model,omitempty"`
}

// HandleGenerate handles POST /api/generate/{id}.
func (h *NarrativeHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res := h.gen.Generate(r.Context(), id)

	switch res.Status {
	case narrator.StatusSuccess:
		writeJSON(w, http.StatusOK, GenerateResponse{RouteID: id, Status: "completed", Travelogue: res.Text, Model: res.Model})
	case narrator.StatusNotFound:
		writeError(w, http.StatusNotFound, "Route not found")
	default:
		writeJSON(w, http.StatusBadGateway, GenerateResponse{RouteID: id, Status: "failed", Travelogue: res.Narrative()})
	}
}

type evaluateRequest struct {
	RouteID      string `json:"routeId"`
	HumanJournal string `json:"humanJournal" validate:"required"`
}

// HandleEvaluate handles POST /api/evaluate/{id}.
func (h *NarrativeHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id := r.PathValue("id")
	if req.RouteID != "" && req.RouteID != id {
		writeError(w, http.StatusBadRequest, "routeId does not match the path")
		return
	}

	e, err := h.eval.Evaluate(r.Context(), id, req.HumanJournal)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, e)
	case errors.Is(err, evaluation.ErrRouteNotFound):
		writeError(w, http.StatusNotFound, "Route not found")
	case errors.Is(err, evaluation.ErrEmptyJournal):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, evaluation.ErrGenerationFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		slog.Error("API: evaluation failed", "route", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// HandleListEvaluations handles GET /api/routes/{id}/evaluations.
func (h *NarrativeHandler) HandleListEvaluations(w http.ResponseWriter, r *http.Request) {
	evals, err := h.evals.ListEvaluations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err, "Route not found")
		return
	}
	if evals == nil {
		evals = []*model.Evaluation{}
	}
	writeJSON(w, http.StatusOK, evals)
}

// insufficientResponse is the 422 body for a population too small to test.
type insufficientResponse struct {
	Detail     string `json:"detail"`
	MinSamples int    `json:"minSamples"`
}

// HandleVerdict handles GET /api/evaluations/verdict?threshold=.
func (h *NarrativeHandler) HandleVerdict(w http.ResponseWriter, r *http.Request) {
	var threshold float64
	if s := r.URL.Query().Get("threshold"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 || v > 1 {
			writeError(w, http.StatusBadRequest, "threshold must be a number in (0, 1]")
			return
		}
		threshold = v
	}

	res, err := h.eval.Verdict(r.Context(), threshold)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, verdict.ErrInsufficientData):
		writeJSON(w, http.StatusUnprocessableEntity, insufficientResponse{Detail: err.Error(), MinSamples: verdict.MinSamples})
	default:
		slog.Error("API: verdict failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
