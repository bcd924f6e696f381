package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/mitigation"
	"twinguard-lab/internal/twin"
)

// Generate creates or refreshes failure predictions from the most recent
// scores. A node whose composite crosses the threshold gets at most one
// active prediction; while it stays above the threshold the prediction's
// probability, horizon and risk snapshot are refreshed in place. Returns
// the predictions created this call.
func (e *Engine) Generate(g *twin.Graph, now time.Time) []*models.EnhancedPrediction {
	var created []*models.EnhancedPrediction

	for _, id := range g.NodeIDs() {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		score, ok := e.lastScore[id]
		if !ok {
			continue
		}

		if existing := e.activeFor(id); existing != nil {
			if score.Overall >= e.predictionThreshold {
				e.refresh(existing, score)
			}
			continue
		}
		if score.Overall < e.predictionThreshold {
			continue
		}

		p := e.buildPrediction(g, n, score, now)
		e.predictions[p.ID] = p
		e.byNode[id] = p.ID
		created = append(created, p)

		e.logger.Info().
			Str("node_id", id).
			Str("type", string(p.Type)).
			Float64("probability", p.Probability).
			Float64("hours_to_event", p.HoursToEvent).
			Msg("prediction generated")
	}
	return created
}

// GenerateFor scores one node on demand and creates or refreshes its
// prediction outside the tick loop. Returns the node's prediction plus
// whether this call created it; a node whose composite stays under the
// threshold yields nil.
func (e *Engine) GenerateFor(g *twin.Graph, nodeID string, exposure float64, now time.Time) (*models.EnhancedPrediction, bool, error) {
	n, ok := g.Node(nodeID)
	if !ok {
		return nil, false, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	score := e.Score(g, n, exposure)
	n.RiskScore = score.Overall
	g.RefreshStatus(n)

	if existing := e.activeFor(nodeID); existing != nil {
		if score.Overall >= e.predictionThreshold {
			e.refresh(existing, score)
		}
		return existing.Clone(), false, nil
	}
	if score.Overall < e.predictionThreshold {
		return nil, false, nil
	}

	p := e.buildPrediction(g, n, score, now)
	e.predictions[p.ID] = p
	e.byNode[nodeID] = p.ID

	e.logger.Info().
		Str("node_id", nodeID).
		Str("type", string(p.Type)).
		Float64("probability", p.Probability).
		Msg("prediction generated on demand")
	return p.Clone(), true, nil
}

func (e *Engine) buildPrediction(g *twin.Graph, n *models.DigitalTwinNode, score models.RiskScore, now time.Time) *models.EnhancedPrediction {
	failure := e.dominantFailureType(score.Components)

	var signals []string
	var contributing []string
	for _, f := range score.LeadingFactors {
		signals = append(signals, fmt.Sprintf("%s contributing %.2f", f.Name, f.Contribution))
		contributing = append(contributing, f.Name)
	}

	// Cascade preview only matters when the failure would spread
	var path []string
	if len(n.Dependents) > 0 {
		if p, err := e.cascade.PredictPath(g, n.ID, score.Overall); err == nil {
			path = p
		}
	}

	return &models.EnhancedPrediction{
		ID:     uuid.New(),
		NodeID: n.ID,
		Type:   failure,

		Probability:  score.Probability,
		Confidence:   confidenceFrom(score.ConfidenceInterval),
		HoursToEvent: score.TimeToFailureHours,
		Severity:     score.Severity,

		Risk: score,

		Reasoning: models.PredictionReasoning{
			Summary: fmt.Sprintf("%s trending toward %s: composite risk %.2f, %s",
				n.Name, describeFailure(failure), score.Overall, score.Trend),
			Signals: signals,
		},
		ContributingFactors: contributing,
		SuggestedActions:    mitigation.SuggestedActions(failure),
		CascadePath:         path,

		Status:        models.PredictionActive,
		CreatedAt:     now,
		PredictedTime: now.Add(e.horizon),
	}
}

// refresh updates the live fields of an active prediction without touching
// its identity, classification or horizon.
func (e *Engine) refresh(p *models.EnhancedPrediction, score models.RiskScore) {
	p.Probability = score.Probability
	p.Confidence = confidenceFrom(score.ConfidenceInterval)
	p.HoursToEvent = score.TimeToFailureHours
	p.Severity = score.Severity
	p.Risk = score
}

// Sweep resolves active predictions whose horizon has passed without the
// forecast failure occurring. They count as inaccurate.
func (e *Engine) Sweep(now time.Time) int {
	expired := 0
	for _, p := range e.predictions {
		if p.Status != models.PredictionActive || now.Before(p.PredictedTime) {
			continue
		}
		e.resolve(p, models.PredictionExpired, false, "horizon elapsed without failure", now)
		expired++
	}
	if expired > 0 {
		e.logger.Debug().Int("count", expired).Msg("predictions expired")
	}
	return expired
}

// MarkNodeFailed resolves the node's active prediction as occurred. Called
// when a node actually drops offline; the forecast counts as accurate.
func (e *Engine) MarkNodeFailed(nodeID string, now time.Time) {
	if p := e.activeFor(nodeID); p != nil {
		e.resolve(p, models.PredictionOccurred, true, "node failed within horizon", now)
	}
}

// MarkMitigated resolves the node's active prediction after a successful
// mitigation. An averted failure still counts as an accurate forecast.
func (e *Engine) MarkMitigated(nodeID string, now time.Time) {
	if p := e.activeFor(nodeID); p != nil {
		e.resolve(p, models.PredictionMitigated, true, "mitigated before failure", now)
	}
}

// RecordOutcome resolves a prediction by id with an observed outcome.
// Idempotent: a prediction already resolved is returned unchanged and the
// accuracy counters are not incremented again.
func (e *Engine) RecordOutcome(id uuid.UUID, occurred bool, outcome string, now time.Time) (*models.EnhancedPrediction, error) {
	p, ok := e.predictions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrPredictionNotFound, id)
	}
	if p.Status.Resolved() {
		return p.Clone(), nil
	}
	status := models.PredictionExpired
	if occurred {
		status = models.PredictionOccurred
	}
	e.resolve(p, status, occurred, outcome, now)
	return p.Clone(), nil
}

// resolve transitions a prediction to a terminal state exactly once and
// feeds the accuracy counters.
func (e *Engine) resolve(p *models.EnhancedPrediction, status models.PredictionStatus, accurate bool, outcome string, now time.Time) {
	p.Status = status
	p.WasAccurate = &accurate
	p.ActualOutcome = outcome
	t := now
	p.ResolvedAt = &t
	if e.byNode[p.NodeID] == p.ID {
		delete(e.byNode, p.NodeID)
	}
	e.stats.record(p.Type, status, accurate)
}

// Predictions returns copies of every prediction, newest first
func (e *Engine) Predictions() []*models.EnhancedPrediction {
	out := make([]*models.EnhancedPrediction, 0, len(e.predictions))
	for _, p := range e.predictions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// ActivePredictions returns copies of the unresolved predictions, newest first
func (e *Engine) ActivePredictions() []*models.EnhancedPrediction {
	var out []*models.EnhancedPrediction
	for _, p := range e.Predictions() {
		if p.Status == models.PredictionActive {
			out = append(out, p)
		}
	}
	return out
}

// PredictionByID returns a copy of one prediction
func (e *Engine) PredictionByID(id uuid.UUID) (*models.EnhancedPrediction, error) {
	p, ok := e.predictions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrPredictionNotFound, id)
	}
	return p.Clone(), nil
}

// ActiveForNode returns a copy of the node's active prediction, if any
func (e *Engine) ActiveForNode(nodeID string) (*models.EnhancedPrediction, bool) {
	p := e.activeFor(nodeID)
	if p == nil {
		return nil, false
	}
	return p.Clone(), true
}

// AccuracyStats returns the running outcome counters
func (e *Engine) AccuracyStats() models.AccuracyStats {
	return e.stats.snapshot()
}

func (e *Engine) activeFor(nodeID string) *models.EnhancedPrediction {
	id, ok := e.byNode[nodeID]
	if !ok {
		return nil
	}
	p, ok := e.predictions[id]
	if !ok || p.Status != models.PredictionActive {
		return nil
	}
	return p
}

// confidenceFrom maps interval width to a confidence figure: a tight
// interval means a steady signal.
func confidenceFrom(ci models.ConfidenceInterval) float64 {
	return clamp01(1 - (ci.Hi - ci.Lo))
}
