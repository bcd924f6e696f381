package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/simulation"
	"twinguard-lab/pkg/logger"
)

// ThreatsHandler handles threat injection endpoints
type ThreatsHandler struct {
	sim    *simulation.Context
	logger *logger.Logger
}

// NewThreatsHandler creates a new ThreatsHandler
func NewThreatsHandler(sim *simulation.Context, log *logger.Logger) *ThreatsHandler {
	return &ThreatsHandler{
		sim:    sim,
		logger: log.WithComponent("threats-api"),
	}
}

// InjectCyberRequest is the payload for POST /api/v1/threats/cyber
type InjectCyberRequest struct {
	TargetNodeID    string  `json:"target_node_id"`
	AttackType      string  `json:"attack_type"`
	Severity        float64 `json:"severity"`
	DurationMinutes int     `json:"duration_minutes"`
}

// InjectRequest is the payload for POST /api/v1/threats
type InjectRequest struct {
	Type            string  `json:"type"`
	TargetNodeID    string  `json:"target_node_id,omitempty"`
	Region          string  `json:"region,omitempty"`
	Severity        float64 `json:"severity"`
	DurationMinutes int     `json:"duration_minutes"`
}

// List handles GET /api/v1/threats
func (h *ThreatsHandler) List(w http.ResponseWriter, r *http.Request) {
	threats := h.sim.Threats()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(threats),
		"threats": threats,
	})
}

// Active handles GET /api/v1/threats/active
func (h *ThreatsHandler) Active(w http.ResponseWriter, r *http.Request) {
	threats := h.sim.ActiveThreats()
	respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(threats),
		"threats": threats,
	})
}

// Get handles GET /api/v1/threats/{id}
func (h *ThreatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid threat id")
		return
	}
	threat, ok := h.sim.ThreatByID(id)
	if !ok {
		respondError(w, http.StatusNotFound, "threat not found")
		return
	}
	respondJSON(w, http.StatusOK, threat)
}

// InjectCyber handles POST /api/v1/threats/cyber
func (h *ThreatsHandler) InjectCyber(w http.ResponseWriter, r *http.Request) {
	var req InjectCyberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	threat, err := h.sim.InjectCyberAttack(
		req.TargetNodeID,
		models.CyberAttackSubtype(req.AttackType),
		req.Severity,
		time.Duration(req.DurationMinutes)*time.Minute,
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.logger.Info().
		Str("threat_id", threat.ID.String()).
		Str("target", req.TargetNodeID).
		Str("attack_type", req.AttackType).
		Msg("cyber attack injected")
	respondJSON(w, http.StatusCreated, threat)
}

// Inject handles POST /api/v1/threats for physical failures and load spikes
func (h *ThreatsHandler) Inject(w http.ResponseWriter, r *http.Request) {
	var req InjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	threat, err := h.sim.InjectThreat(
		models.ThreatType(req.Type),
		req.TargetNodeID,
		req.Region,
		req.Severity,
		time.Duration(req.DurationMinutes)*time.Minute,
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	h.logger.Info().
		Str("threat_id", threat.ID.String()).
		Str("type", req.Type).
		Msg("threat injected")
	respondJSON(w, http.StatusCreated, threat)
}

// End handles POST /api/v1/threats/{id}/end
func (h *ThreatsHandler) End(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid threat id")
		return
	}
	threat, err := h.sim.EndThreat(id)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, threat)
}

// EndAll handles POST /api/v1/threats/end-all
func (h *ThreatsHandler) EndAll(w http.ResponseWriter, r *http.Request) {
	ended := h.sim.EndAllThreats()
	respondJSON(w, http.StatusOK, map[string]int{"ended": ended})
}
