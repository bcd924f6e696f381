// Package cascade implements failure propagation across the twin graph.
//
// The advisory path prediction and the mutative trigger share one traversal
// and one Params set, so the decay and floor constants cannot diverge
// between what is displayed and what is applied.
package cascade

import (
	"fmt"
	"time"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/twin"
	"twinguard-lab/pkg/logger"
)

// Params are the propagation constants shared by prediction and trigger
type Params struct {
	Decay   float64 // per-hop severity multiplier, (0,1]
	Floor   float64 // propagation stops below this severity
	MaxHops int
}

// DefaultParams mirror the configuration defaults
func DefaultParams() Params {
	return Params{Decay: 0.7, Floor: 0.05, MaxHops: 6}
}

// Fraction of delivered severity applied as risk and health penalties
const (
	riskPenaltyFactor   = 0.6
	healthPenaltyFactor = 0.3
)

// Engine traverses the dependency graph to predict or apply cascades
type Engine struct {
	params Params
	logger *logger.Logger
}

// NewEngine creates a cascade engine with the given propagation parameters
func NewEngine(params Params, log *logger.Logger) *Engine {
	return &Engine{
		params: params,
		logger: log.WithComponent("cascade"),
	}
}

// Params returns the engine's propagation parameters
func (e *Engine) Params() Params { return e.params }

// visit is one step of the shared breadth-first traversal
type visit struct {
	nodeID   string
	severity float64
	hops     int
}

// PredictPath walks the cascade without mutating anything and returns the
// ordered node ids the failure would reach. Used for prediction display.
func (e *Engine) PredictPath(g *twin.Graph, originID string, severity float64) ([]string, error) {
	if err := e.validate(g, originID, severity); err != nil {
		return nil, err
	}
	var path []string
	e.walk(g, originID, severity, func(n *models.DigitalTwinNode, delivered float64) {
		path = append(path, n.ID)
	})
	return path, nil
}

// Trigger walks the cascade and applies the decayed severity at every
// reached node as a risk and health penalty, clamped to valid ranges.
// Inputs are validated before any mutation, so the operation either fully
// applies or fully rejects. Safe to call repeatedly.
func (e *Engine) Trigger(g *twin.Graph, originID string, severity float64) (*models.CascadeResult, error) {
	if err := e.validate(g, originID, severity); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	result := &models.CascadeResult{
		OriginID:    originID,
		Severity:    severity,
		TriggeredAt: now,
	}

	e.walk(g, originID, severity, func(n *models.DigitalTwinNode, delivered float64) {
		n.RiskScore = clamp01(n.RiskScore + delivered*riskPenaltyFactor)
		n.Health = clamp01(n.Health - delivered*healthPenaltyFactor)
		n.UpdatedAt = now
		g.RefreshStatus(n)

		result.AffectedNodes = append(result.AffectedNodes, n.ID)
		result.PropagationPath = append(result.PropagationPath, n.ID)
		result.ImpactScore += delivered
	})

	e.logger.Info().
		Str("origin", originID).
		Float64("severity", severity).
		Int("affected", len(result.AffectedNodes)).
		Float64("impact", result.ImpactScore).
		Msg("cascade triggered")

	return result, nil
}

// walk runs the shared breadth-first traversal. apply is called once per
// reached node with the severity delivered there. Propagation continues
// through a node's active outgoing edges while the decayed severity stays
// above the floor and the hop limit is not exceeded. Isolated nodes and
// inactive edges block.
func (e *Engine) walk(g *twin.Graph, originID string, severity float64, apply func(*models.DigitalTwinNode, float64)) {
	visited := map[string]bool{}
	queue := []visit{{nodeID: originID, severity: severity, hops: 0}}

	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]

		if visited[v.nodeID] {
			continue
		}
		node, ok := g.Node(v.nodeID)
		if !ok || node.IsIsolated() {
			continue
		}
		visited[v.nodeID] = true

		apply(node, v.severity)

		if v.hops >= e.params.MaxHops {
			continue
		}
		for _, edge := range g.OutgoingEdges(v.nodeID) {
			if !edge.IsActive {
				continue
			}
			next := v.severity * edge.Weight * e.params.Decay
			if next < e.params.Floor {
				continue
			}
			queue = append(queue, visit{nodeID: edge.To, severity: next, hops: v.hops + 1})
		}
	}
}

func (e *Engine) validate(g *twin.Graph, originID string, severity float64) error {
	if severity <= 0 || severity > 1 {
		return fmt.Errorf("%w: severity must be in (0,1], got %.3f", models.ErrValidationFailed, severity)
	}
	if _, ok := g.Node(originID); !ok {
		return fmt.Errorf("%w: %s", models.ErrNodeNotFound, originID)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
