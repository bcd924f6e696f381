package mitigation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/twin"
)

// Execute applies one action to one node. Inputs are validated before any
// mutation, so a rejected call leaves the graph untouched. On success every
// open recommendation for the same node and action is marked completed.
func (m *Manager) Execute(g *twin.Graph, nodeID string, action models.ActionType, now time.Time) (*models.MitigationResult, error) {
	spec, known := catalog[action]
	if !known {
		return nil, fmt.Errorf("%w: unknown action %q", models.ErrValidationFailed, action)
	}
	node, ok := g.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	if !spec.applicable(node.Category) {
		return nil, fmt.Errorf("%w: action %s does not apply to %s nodes", models.ErrInvalidOperation, action, node.Category)
	}

	before := node.RiskScore
	m.apply(g, node, action, now)
	node.RiskScore = clamp01(node.RiskScore - spec.riskReduction)
	node.UpdatedAt = now
	g.RefreshStatus(node)

	m.completeMatching(nodeID, action, now)

	m.logger.WithNodeID(nodeID).Info().
		Str("action", string(action)).
		Float64("risk_before", before).
		Float64("risk_after", node.RiskScore).
		Msg("mitigation executed")

	return &models.MitigationResult{
		NodeID:     nodeID,
		Action:     action,
		RiskBefore: before,
		RiskAfter:  node.RiskScore,
		ExecutedAt: now,
	}, nil
}

// apply performs the action's typed side effects on the node and its edges
func (m *Manager) apply(g *twin.Graph, node *models.DigitalTwinNode, action models.ActionType, now time.Time) {
	switch action {
	case models.ActionIsolate:
		node.Status = models.StatusIsolated
		g.SetEdgesActive(node.ID, false)

	case models.ActionLoadShed:
		node.LoadRatio = clamp01(node.LoadRatio * 0.6)
		node.CurrentLoad = node.LoadRatio * node.RatedCapacity
		node.PowerDraw *= 0.7

	case models.ActionReroute:
		// Shift load off this node by standing up its dependents' backups
		for _, depID := range node.Dependents {
			g.ActivateBackupEdges(depID)
		}
		node.LoadRatio = clamp01(node.LoadRatio * 0.8)
		node.CurrentLoad = node.LoadRatio * node.RatedCapacity

	case models.ActionActivateBackup:
		g.ActivateBackupEdges(node.ID)
		node.Health = clamp01(node.Health + 0.05)

	case models.ActionEnableCooling:
		node.Temperature = maxF(node.Temperature-15, 20)

	case models.ActionCyberLockdown:
		node.CyberStatus = models.CyberIsolated
		node.TamperSignal *= 0.3
		node.PacketLoss = clamp01(node.PacketLoss * 0.5)

	case models.ActionCredentialReset:
		node.FailedAuthCount = 0
		node.LastAuthTime = now
		node.CyberHealth = clamp01(node.CyberHealth + 0.10)
		node.TamperSignal *= 0.5

	case models.ActionDispatchCrew:
		node.MaintenanceDebt = clamp01(node.MaintenanceDebt * 0.3)
		node.Health = clamp01(node.Health + 0.10)
	}
}

// ExecuteRecommendation runs one stored recommendation through its
// lifecycle. Approval-gated actions must be approved first; automatable
// ones may run straight from pending.
func (m *Manager) ExecuteRecommendation(g *twin.Graph, id uuid.UUID, now time.Time) (*models.MitigationResult, error) {
	rec, ok := m.recommendations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRecommendationNotFound, id)
	}
	switch rec.Status {
	case models.RecommendationApproved:
	case models.RecommendationPending:
		if rec.RequiresApproval {
			return nil, fmt.Errorf("%w: recommendation %s requires approval", models.ErrInvalidOperation, id)
		}
	default:
		return nil, fmt.Errorf("%w: recommendation %s is %s", models.ErrInvalidOperation, id, rec.Status)
	}

	rec.Status = models.RecommendationExecuting
	result, err := m.Execute(g, rec.NodeID, rec.Action, now)
	if err != nil {
		rec.Status = models.RecommendationFailed
		t := now
		rec.CompletedAt = &t
		return nil, err
	}
	// Execute already completed matching open recommendations, this one
	// included.
	return result, nil
}

// BatchItem is one node/action pair in a batch execution
type BatchItem struct {
	NodeID string            `json:"node_id"`
	Action models.ActionType `json:"action"`
}

// ExecuteBatch folds Execute over the items. A failed item is recorded and
// skipped; the rest of the batch still runs.
func (m *Manager) ExecuteBatch(g *twin.Graph, items []BatchItem, now time.Time) *models.BatchMitigationResult {
	batch := &models.BatchMitigationResult{}
	for _, item := range items {
		result, err := m.Execute(g, item.NodeID, item.Action, now)
		if err != nil {
			batch.Failed++
			batch.Errors = append(batch.Errors, fmt.Sprintf("%s/%s: %v", item.NodeID, item.Action, err))
			m.logger.WithNodeID(item.NodeID).Warn().Str("action", string(item.Action)).Err(err).Msg("batch item failed")
			continue
		}
		batch.Succeeded++
		batch.Results = append(batch.Results, *result)
	}
	return batch
}

// AutoMitigate sweeps the critical nodes and executes the best automatable,
// approval-free action for each. Isolated nodes are left alone; isolation
// is an operator decision.
func (m *Manager) AutoMitigate(g *twin.Graph, now time.Time) *models.BatchMitigationResult {
	var items []BatchItem
	for _, node := range g.CriticalNodes() {
		if node.Status == models.StatusIsolated {
			continue
		}
		if action, ok := autoActionFor(node); ok {
			items = append(items, BatchItem{NodeID: node.ID, Action: action})
		}
	}
	return m.ExecuteBatch(g, items, now)
}

// autoActionFor picks the first automatable, approval-free action whose
// failure-mode ranking matches what the node's metrics suggest.
func autoActionFor(node *models.DigitalTwinNode) (models.ActionType, bool) {
	mode := models.FailureOverload
	if node.CyberStatus == models.CyberCompromised {
		mode = models.FailureCyberIntrusion
	} else if node.Health < 0.3 {
		mode = models.FailureEquipmentWear
	}
	for _, action := range SuggestedActions(mode) {
		spec := catalog[action]
		if spec.automatable && !spec.requiresApproval && spec.applicable(node.Category) {
			return action, true
		}
	}
	// Every mode keeps at least one universal fallback
	return models.ActionActivateBackup, true
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

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
