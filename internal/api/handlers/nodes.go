package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/infrastructure/cache"
	"twinguard-lab/internal/simulation"
	"twinguard-lab/pkg/logger"
)

// NodesHandler handles twin graph read endpoints
type NodesHandler struct {
	sim    *simulation.Context
	cache  *cache.RedisCache
	logger *logger.Logger
}

// NewNodesHandler creates a new NodesHandler. cache may be nil.
func NewNodesHandler(sim *simulation.Context, c *cache.RedisCache, log *logger.Logger) *NodesHandler {
	return &NodesHandler{
		sim:    sim,
		cache:  c,
		logger: log.WithComponent("nodes-api"),
	}
}

// List handles GET /api/v1/nodes with optional region or category filters.
// The unfiltered list is the dashboard hot path and is served from Redis
// when a fresh copy exists.
func (h *NodesHandler) List(w http.ResponseWriter, r *http.Request) {
	var nodes []*models.DigitalTwinNode
	switch {
	case r.URL.Query().Get("region") != "":
		nodes = h.sim.NodesByRegion(r.URL.Query().Get("region"))
	case r.URL.Query().Get("category") != "":
		nodes = h.sim.NodesByCategory(models.Category(r.URL.Query().Get("category")))
	default:
		if h.cache != nil {
			if cached, err := h.cache.GetCachedNodes(r.Context()); err == nil && cached != nil {
				respondJSON(w, http.StatusOK, map[string]any{
					"count": len(cached),
					"nodes": cached,
				})
				return
			}
		}
		nodes = h.sim.Nodes()
		if h.cache != nil {
			if err := h.cache.CacheNodes(r.Context(), nodes, stateCacheTTL); err != nil {
				h.logger.Debug().Err(err).Msg("node cache write failed")
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(nodes),
		"nodes": nodes,
	})
}

// Get handles GET /api/v1/nodes/{id}
func (h *NodesHandler) Get(w http.ResponseWriter, r *http.Request) {
	node, err := h.sim.NodeByID(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, node)
}

// Risk handles GET /api/v1/nodes/{id}/risk with the full component breakdown
func (h *NodesHandler) Risk(w http.ResponseWriter, r *http.Request) {
	score, err := h.sim.NodeRisk(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, score)
}

// Neighbors handles GET /api/v1/nodes/{id}/neighbors
func (h *NodesHandler) Neighbors(w http.ResponseWriter, r *http.Request) {
	ids, err := h.sim.Neighbors(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"neighbors": ids})
}

// Dependencies handles GET /api/v1/nodes/{id}/dependencies
func (h *NodesHandler) Dependencies(w http.ResponseWriter, r *http.Request) {
	ids, err := h.sim.Dependencies(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"dependencies": ids})
}

// Dependents handles GET /api/v1/nodes/{id}/dependents
func (h *NodesHandler) Dependents(w http.ResponseWriter, r *http.Request) {
	ids, err := h.sim.Dependents(chi.URLParam(r, "id"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"dependents": ids})
}

// Critical handles GET /api/v1/nodes/critical
func (h *NodesHandler) Critical(w http.ResponseWriter, r *http.Request) {
	nodes := h.sim.CriticalNodes()
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(nodes),
		"nodes": nodes,
	})
}

// Compromised handles GET /api/v1/nodes/compromised
func (h *NodesHandler) Compromised(w http.ResponseWriter, r *http.Request) {
	nodes := h.sim.CompromisedNodes()
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(nodes),
		"nodes": nodes,
	})
}

// ClearIsolation handles POST /api/v1/nodes/{id}/clear-isolation
func (h *NodesHandler) ClearIsolation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sim.ClearIsolation(id); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"node_id": id, "status": "isolation cleared"})
}

// Edges handles GET /api/v1/edges
func (h *NodesHandler) Edges(w http.ResponseWriter, r *http.Request) {
	edges := h.sim.Edges()
	respondJSON(w, http.StatusOK, map[string]any{
		"count": len(edges),
		"edges": edges,
	})
}
