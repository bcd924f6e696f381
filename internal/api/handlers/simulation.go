package handlers

import (
	"net/http"
	"strconv"
	"time"

	"twinguard-lab/internal/infrastructure/cache"
	"twinguard-lab/internal/infrastructure/database/repository"
	"twinguard-lab/internal/simulation"
	"twinguard-lab/pkg/logger"
)

// stateCacheTTL keeps cached state fresher than one tick
const stateCacheTTL = 2 * time.Second

// SimulationHandler handles simulation lifecycle and state endpoints
type SimulationHandler struct {
	sim          *simulation.Context
	orchestrator *simulation.Orchestrator
	cache        *cache.RedisCache
	snapshots    *repository.SnapshotRepository
	logger       *logger.Logger
}

// NewSimulationHandler creates a new SimulationHandler
func NewSimulationHandler(sim *simulation.Context, orch *simulation.Orchestrator, c *cache.RedisCache, snaps *repository.SnapshotRepository, log *logger.Logger) *SimulationHandler {
	return &SimulationHandler{
		sim:          sim,
		orchestrator: orch,
		cache:        c,
		snapshots:    snaps,
		logger:       log.WithComponent("simulation-api"),
	}
}

// Status handles GET /api/v1/simulation/status. Served from Redis when the
// cached copy is fresh.
func (h *SimulationHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		if state, err := h.cache.GetCachedSystemState(r.Context()); err == nil && state != nil {
			respondJSON(w, http.StatusOK, state)
			return
		}
	}

	state := h.sim.SystemState()
	if h.cache != nil {
		if err := h.cache.CacheSystemState(r.Context(), state, stateCacheTTL); err != nil {
			h.logger.Debug().Err(err).Msg("state cache write failed")
		}
	}
	respondJSON(w, http.StatusOK, state)
}

// Start handles POST /api/v1/simulation/start
func (h *SimulationHandler) Start(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Start(); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "running"})
}

// Stop handles POST /api/v1/simulation/stop
func (h *SimulationHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Stop(); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

// Reset handles POST /api/v1/simulation/reset. Only allowed while stopped.
func (h *SimulationHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.Reset(); err != nil {
		respondDomainError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.InvalidateTwin(r.Context()); err != nil {
			h.logger.Debug().Err(err).Msg("cache invalidation failed")
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// Step handles POST /api/v1/simulation/step: advance exactly one tick
// while the loop is stopped. Useful for debugging and scripted scenarios.
func (h *SimulationHandler) Step(w http.ResponseWriter, r *http.Request) {
	if h.orchestrator.Running() {
		respondError(w, http.StatusConflict, "cannot step while the simulation loop is running")
		return
	}
	report := h.sim.Step(time.Now().UTC())
	respondJSON(w, http.StatusOK, report.State)
}

// History handles GET /api/v1/simulation/history?limit=N from the
// snapshot store.
func (h *SimulationHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		respondError(w, http.StatusNotImplemented, "snapshot persistence is not enabled")
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	snaps, err := h.snapshots.ListSnapshots(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"count":     len(snaps),
		"snapshots": snaps,
	})
}
