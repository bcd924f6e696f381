package mitigation

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/twin"
	"twinguard-lab/pkg/logger"
)

// Manager owns the recommendation store and executes actions against the
// graph. Like the graph itself it does no locking; the simulation context
// serializes access.
type Manager struct {
	logger *logger.Logger

	recommendations map[uuid.UUID]*models.MitigationRecommendation
	byNode          map[string][]uuid.UUID
}

// NewManager creates an empty mitigation manager
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		logger:          log.WithComponent("mitigation"),
		recommendations: make(map[uuid.UUID]*models.MitigationRecommendation),
		byNode:          make(map[string][]uuid.UUID),
	}
}

// Reset discards all recommendations
func (m *Manager) Reset() {
	m.recommendations = make(map[uuid.UUID]*models.MitigationRecommendation)
	m.byNode = make(map[string][]uuid.UUID)
}

// Advise proposes recommendations for the given active predictions. Each
// prediction yields at most two actions applicable to the node's category,
// and an action already open for a node is never proposed twice. Returns
// the recommendations created this call.
func (m *Manager) Advise(g *twin.Graph, predictions []*models.EnhancedPrediction, now time.Time) []*models.MitigationRecommendation {
	var created []*models.MitigationRecommendation

	for _, p := range predictions {
		if p.Status != models.PredictionActive {
			continue
		}
		node, ok := g.Node(p.NodeID)
		if !ok {
			m.logger.Warn().Str("node_id", p.NodeID).Msg("prediction references unknown node, skipping")
			continue
		}

		proposed := 0
		for _, action := range SuggestedActions(p.Type) {
			if proposed >= 2 {
				break
			}
			spec := catalog[action]
			if !spec.applicable(node.Category) || m.hasOpen(p.NodeID, action) {
				continue
			}

			predID := p.ID
			rec := &models.MitigationRecommendation{
				ID:           uuid.New(),
				NodeID:       p.NodeID,
				PredictionID: &predID,

				Action:                action,
				Priority:              priorityFor(p.Probability),
				ExpectedRiskReduction: spec.riskReduction,
				EstimatedTimeMinutes:  spec.minutes,
				RequiresApproval:      spec.requiresApproval,
				Automatable:           spec.automatable,
				DependsOn:             append([]models.ActionType(nil), spec.dependsOn...),

				Status:    models.RecommendationPending,
				CreatedAt: now,
			}
			m.add(rec)
			created = append(created, rec)
			proposed++
		}
	}

	if len(created) > 0 {
		m.logger.Info().Int("count", len(created)).Msg("recommendations created")
	}
	return created
}

// Approve moves a pending recommendation to approved so it can be executed
func (m *Manager) Approve(id uuid.UUID) (*models.MitigationRecommendation, error) {
	rec, ok := m.recommendations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRecommendationNotFound, id)
	}
	if rec.Status != models.RecommendationPending {
		return nil, fmt.Errorf("%w: cannot approve recommendation in status %s", models.ErrInvalidOperation, rec.Status)
	}
	rec.Status = models.RecommendationApproved
	return rec.Clone(), nil
}

// Recommendations returns copies of every recommendation, highest priority
// first, then newest.
func (m *Manager) Recommendations() []*models.MitigationRecommendation {
	out := make([]*models.MitigationRecommendation, 0, len(m.recommendations))
	for _, r := range m.recommendations {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := models.PriorityRank(out[i].Priority), models.PriorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// PendingRecommendations returns copies of the non-terminal recommendations
func (m *Manager) PendingRecommendations() []*models.MitigationRecommendation {
	var out []*models.MitigationRecommendation
	for _, r := range m.Recommendations() {
		if !r.Status.Terminal() {
			out = append(out, r)
		}
	}
	return out
}

// RecommendationByID returns a copy of one recommendation
func (m *Manager) RecommendationByID(id uuid.UUID) (*models.MitigationRecommendation, error) {
	rec, ok := m.recommendations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrRecommendationNotFound, id)
	}
	return rec.Clone(), nil
}

// RecommendationsForNode returns copies of a node's recommendations
func (m *Manager) RecommendationsForNode(nodeID string) []*models.MitigationRecommendation {
	var out []*models.MitigationRecommendation
	for _, id := range m.byNode[nodeID] {
		out = append(out, m.recommendations[id].Clone())
	}
	return out
}

func (m *Manager) add(rec *models.MitigationRecommendation) {
	m.recommendations[rec.ID] = rec
	m.byNode[rec.NodeID] = append(m.byNode[rec.NodeID], rec.ID)
}

// hasOpen reports whether a non-terminal recommendation for this node and
// action already exists.
func (m *Manager) hasOpen(nodeID string, action models.ActionType) bool {
	for _, id := range m.byNode[nodeID] {
		r := m.recommendations[id]
		if r.Action == action && !r.Status.Terminal() {
			return true
		}
	}
	return false
}

// completeMatching closes every open recommendation for the node/action
// pair after a successful execution.
func (m *Manager) completeMatching(nodeID string, action models.ActionType, now time.Time) {
	for _, id := range m.byNode[nodeID] {
		r := m.recommendations[id]
		if r.Action == action && !r.Status.Terminal() {
			r.Status = models.RecommendationCompleted
			t := now
			r.CompletedAt = &t
		}
	}
}
