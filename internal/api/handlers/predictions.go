package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"twinguard-lab/internal/simulation"
	"twinguard-lab/pkg/logger"
)

// PredictionsHandler handles failure prediction endpoints
type PredictionsHandler struct {
	sim    *simulation.Context
	logger *logger.Logger
}

// NewPredictionsHandler creates a new PredictionsHandler
func NewPredictionsHandler(sim *simulation.Context, log *logger.Logger) *PredictionsHandler {
	return &PredictionsHandler{
		sim:    sim,
		logger: log.WithComponent("predictions-api"),
	}
}

// OutcomeRequest is the payload for POST /api/v1/predictions/{id}/outcome
type OutcomeRequest struct {
	Occurred bool   `json:"occurred"`
	Outcome  string `json:"outcome,omitempty"`
}

// List handles GET /api/v1/predictions
func (h *PredictionsHandler) List(w http.ResponseWriter, r *http.Request) {
	predictions := h.sim.Predictions()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":       len(predictions),
		"predictions": predictions,
	})
}

// Active handles GET /api/v1/predictions/active
func (h *PredictionsHandler) Active(w http.ResponseWriter, r *http.Request) {
	predictions := h.sim.ActivePredictions()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":       len(predictions),
		"predictions": predictions,
	})
}

// GenerateAll handles POST /api/v1/predictions/generate. The whole twin
// is re-scored and the predictions created are returned.
func (h *PredictionsHandler) GenerateAll(w http.ResponseWriter, r *http.Request) {
	predictions := h.sim.GenerateAllPredictions()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":       len(predictions),
		"predictions": predictions,
	})
}

// GenerateForNode handles POST /api/v1/nodes/{id}/predict
func (h *PredictionsHandler) GenerateForNode(w http.ResponseWriter, r *http.Request) {
	prediction, err := h.sim.GeneratePrediction(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, prediction)
}

// Get handles GET /api/v1/predictions/{id}
func (h *PredictionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid prediction id")
		return
	}
	prediction, err := h.sim.PredictionByID(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, prediction)
}

// RecordOutcome handles POST /api/v1/predictions/{id}/outcome. Recording
// is idempotent: a second call returns the already resolved prediction.
func (h *PredictionsHandler) RecordOutcome(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid prediction id")
		return
	}

	var req OutcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prediction, err := h.sim.RecordPredictionOutcome(id, req.Occurred, req.Outcome)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, prediction)
}

// Accuracy handles GET /api/v1/predictions/accuracy
func (h *PredictionsHandler) Accuracy(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.sim.AccuracyStats())
}
