package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"twinguard-lab/internal/simulation"
	"twinguard-lab/pkg/logger"
)

// CascadeHandler handles cascading failure endpoints
type CascadeHandler struct {
	sim    *simulation.Context
	logger *logger.Logger
}

// NewCascadeHandler creates a new CascadeHandler
func NewCascadeHandler(sim *simulation.Context, log *logger.Logger) *CascadeHandler {
	return &CascadeHandler{
		sim:    sim,
		logger: log.WithComponent("cascade-api"),
	}
}

// TriggerRequest is the payload for POST /api/v1/cascade/trigger
type TriggerRequest struct {
	OriginNodeID string  `json:"origin_node_id"`
	Severity     float64 `json:"severity"`
}

// Trigger handles POST /api/v1/cascade/trigger
func (h *CascadeHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	var req TriggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.sim.TriggerCascade(req.OriginNodeID, req.Severity)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.logger.Info().
		Str("origin", req.OriginNodeID).
		Int("affected", len(result.AffectedNodes)).
		Msg("cascade triggered")
	respondJSON(w, http.StatusOK, result)
}

// PredictPath handles GET /api/v1/cascade/predict?origin=node&severity=0.8.
// It is read-only: the graph is not mutated.
func (h *CascadeHandler) PredictPath(w http.ResponseWriter, r *http.Request) {
	origin := r.URL.Query().Get("origin")
	if origin == "" {
		respondError(w, http.StatusBadRequest, "origin query parameter is required")
		return
	}

	severity := 0.8
	if raw := r.URL.Query().Get("severity"); raw != "" {
		s, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid severity")
			return
		}
		severity = s
	}

	path, err := h.sim.PredictCascadePath(origin, severity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"origin":   origin,
		"severity": severity,
		"path":     path,
	})
}
