package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/mitigation"
	"twinguard-lab/internal/simulation"
	"twinguard-lab/pkg/logger"
)

// MitigationsHandler handles mitigation recommendation and execution endpoints
type MitigationsHandler struct {
	sim    *simulation.Context
	logger *logger.Logger
}

// NewMitigationsHandler creates a new MitigationsHandler
func NewMitigationsHandler(sim *simulation.Context, log *logger.Logger) *MitigationsHandler {
	return &MitigationsHandler{
		sim:    sim,
		logger: log.WithComponent("mitigations-api"),
	}
}

// ExecuteActionRequest is the payload for POST /api/v1/mitigations/execute
type ExecuteActionRequest struct {
	NodeID string `json:"node_id"`
	Action string `json:"action"`
}

// BatchRequest is the payload for POST /api/v1/mitigations/batch
type BatchRequest struct {
	Items []ExecuteActionRequest `json:"items"`
}

// List handles GET /api/v1/mitigations, with an optional node filter
func (h *MitigationsHandler) List(w http.ResponseWriter, r *http.Request) {
	var recs []*models.MitigationRecommendation
	if nodeID := r.URL.Query().Get("node_id"); nodeID != "" {
		recs = h.sim.RecommendationsForNode(nodeID)
	} else {
		recs = h.sim.Recommendations()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":           len(recs),
		"recommendations": recs,
	})
}

// Pending handles GET /api/v1/mitigations/pending
func (h *MitigationsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	recs := h.sim.PendingRecommendations()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":           len(recs),
		"recommendations": recs,
	})
}

// Get handles GET /api/v1/mitigations/{id}
func (h *MitigationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid recommendation id")
		return
	}
	rec, err := h.sim.RecommendationByID(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Approve handles POST /api/v1/mitigations/{id}/approve
func (h *MitigationsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid recommendation id")
		return
	}
	rec, err := h.sim.ApproveRecommendation(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// ExecuteRecommendation handles POST /api/v1/mitigations/{id}/execute
func (h *MitigationsHandler) ExecuteRecommendation(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid recommendation id")
		return
	}
	result, err := h.sim.ExecuteRecommendation(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.logger.Info().
		Str("recommendation_id", id.String()).
		Str("node_id", result.NodeID).
		Str("action", string(result.Action)).
		Msg("recommendation executed")
	respondJSON(w, http.StatusOK, result)
}

// ExecuteAction handles POST /api/v1/mitigations/execute for ad hoc actions
func (h *MitigationsHandler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	var req ExecuteActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, err := h.sim.ExecuteAction(req.NodeID, models.ActionType(req.Action))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	h.logger.Info().
		Str("node_id", req.NodeID).
		Str("action", req.Action).
		Msg("action executed")
	respondJSON(w, http.StatusOK, result)
}

// Batch handles POST /api/v1/mitigations/batch
func (h *MitigationsHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, "items must not be empty")
		return
	}

	items := make([]mitigation.BatchItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, mitigation.BatchItem{
			NodeID: it.NodeID,
			Action: models.ActionType(it.Action),
		})
	}
	respondJSON(w, http.StatusOK, h.sim.ExecuteBatch(items))
}

// Auto handles POST /api/v1/mitigations/auto: run the best automatable
// action on every critical node.
func (h *MitigationsHandler) Auto(w http.ResponseWriter, r *http.Request) {
	batch := h.sim.AutoMitigate()
	h.logger.Info().
		Int("succeeded", batch.Succeeded).
		Int("failed", batch.Failed).
		Msg("auto mitigation run")
	respondJSON(w, http.StatusOK, batch)
}
