package handlers

import (
	"twinguard-lab/internal/infrastructure/cache"
	"twinguard-lab/internal/infrastructure/database/repository"
	"twinguard-lab/internal/simulation"
	"twinguard-lab/internal/streaming"
	"twinguard-lab/pkg/logger"
)

// Handlers holds all API handlers
type Handlers struct {
	Health      *HealthHandler
	Simulation  *SimulationHandler
	Nodes       *NodesHandler
	Threats     *ThreatsHandler
	Cascade     *CascadeHandler
	Predictions *PredictionsHandler
	Mitigations *MitigationsHandler
	Streaming   *StreamingHandler
}

// Dependencies holds dependencies for handlers. Cache, Snapshots, Events,
// Bus and Hub are optional and may be nil.
type Dependencies struct {
	Sim          *simulation.Context
	Orchestrator *simulation.Orchestrator
	Cache        *cache.RedisCache
	Snapshots    *repository.SnapshotRepository
	Events       *repository.EventRepository
	Bus          *streaming.EventBus
	Hub          *streaming.WebSocketHub
	Logger       *logger.Logger
}

// NewHandlers creates all handlers
func NewHandlers(deps Dependencies) *Handlers {
	return &Handlers{
		Health:      NewHealthHandler(deps.Cache, deps.Snapshots, deps.Logger),
		Simulation:  NewSimulationHandler(deps.Sim, deps.Orchestrator, deps.Cache, deps.Snapshots, deps.Logger),
		Nodes:       NewNodesHandler(deps.Sim, deps.Cache, deps.Logger),
		Threats:     NewThreatsHandler(deps.Sim, deps.Logger),
		Cascade:     NewCascadeHandler(deps.Sim, deps.Logger),
		Predictions: NewPredictionsHandler(deps.Sim, deps.Logger),
		Mitigations: NewMitigationsHandler(deps.Sim, deps.Logger),
		Streaming:   NewStreamingHandler(deps.Bus, deps.Hub, deps.Events, deps.Logger),
	}
}
