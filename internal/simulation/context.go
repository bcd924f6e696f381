// Package simulation composes the twin graph with the risk, cascade,
// threat and mitigation engines behind one facade. The context owns the
// single exclusive lock; every operation below takes it, so the engines
// themselves stay lock-free.
package simulation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"twinguard-lab/internal/cascade"
	"twinguard-lab/internal/config"
	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/mitigation"
	"twinguard-lab/internal/risk"
	"twinguard-lab/internal/threat"
	"twinguard-lab/internal/twin"
	"twinguard-lab/pkg/logger"
)

// EventPublisher receives simulation events as they happen. Implementations
// must not block; publishing happens while the simulation lock is held.
type EventPublisher interface {
	PublishState(state *models.SystemState)
	PublishThreatStarted(t *models.ThreatSimulation)
	PublishThreatExpired(t *models.ThreatSimulation)
	PublishCascade(r *models.CascadeResult)
	PublishPrediction(p *models.EnhancedPrediction)
	PublishMitigation(r *models.MitigationResult)
}

// Context is the synchronized facade over all simulation state
type Context struct {
	mu     sync.Mutex
	cfg    *config.Config
	logger *logger.Logger

	graph       *twin.Graph
	cascade     *cascade.Engine
	risk        *risk.Engine
	threats     *threat.Injector
	mitigations *mitigation.Manager

	publisher EventPublisher

	running bool
	tick    uint64
}

// NewContext builds the twin graph and wires all engines from config
func NewContext(cfg *config.Config, log *logger.Logger) (*Context, error) {
	g, err := twin.New(cfg.Twin.NodeCount, cfg.Twin.Seed)
	if err != nil {
		return nil, fmt.Errorf("building twin graph: %w", err)
	}

	casc := cascade.NewEngine(cascade.Params{
		Decay:   cfg.Cascade.Decay,
		Floor:   cfg.Cascade.Floor,
		MaxHops: cfg.Cascade.MaxHops,
	}, log)

	weights := risk.Weights{
		Physical:      cfg.Risk.PhysicalWeight,
		Cyber:         cfg.Risk.CyberWeight,
		Operational:   cfg.Risk.OperationalWeight,
		Environmental: cfg.Risk.EnvironmentalWeight,
		Cascading:     cfg.Risk.CascadingWeight,
	}

	c := &Context{
		cfg:         cfg,
		logger:      log.WithComponent("simulation"),
		graph:       g,
		cascade:     casc,
		risk:        risk.NewEngine(weights, cfg.Risk.PredictionThreshold, cfg.Risk.PredictionHorizon, casc, log),
		threats:     threat.NewInjector(cfg.Threat.DefaultDuration, cfg.Threat.MaxActive, log),
		mitigations: mitigation.NewManager(log),
	}

	c.logger.Info().
		Int("nodes", g.Size()).
		Int64("seed", g.Seed()).
		Msg("twin graph built")
	return c, nil
}

// SetPublisher attaches the event publisher. Call before the loop starts.
func (c *Context) SetPublisher(p EventPublisher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.publisher = p
}

// --- graph queries ---

// Nodes returns copies of every node
func (c *Context) Nodes() []*models.DigitalTwinNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Nodes()
}

// NodeByID returns a copy of one node
func (c *Context) NodeByID(id string) (*models.DigitalTwinNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.graph.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, id)
	}
	return n.Clone(), nil
}

// NodesByRegion returns copies of the nodes in a region
func (c *Context) NodesByRegion(region string) []*models.DigitalTwinNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.NodesByRegion(region)
}

// NodesByCategory returns copies of the nodes in a category
func (c *Context) NodesByCategory(category models.Category) []*models.DigitalTwinNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.NodesByCategory(category)
}

// CriticalNodes returns copies of the critical and offline nodes
func (c *Context) CriticalNodes() []*models.DigitalTwinNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.CriticalNodes()
}

// CompromisedNodes returns copies of the cyber-compromised nodes
func (c *Context) CompromisedNodes() []*models.DigitalTwinNode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.CompromisedNodes()
}

// Edges returns copies of every dependency edge
func (c *Context) Edges() []*models.DependencyEdge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Edges()
}

// Neighbors returns the ids of nodes connected to the given node
func (c *Context) Neighbors(nodeID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Neighbors(nodeID)
}

// Dependencies returns the ids the node depends on
func (c *Context) Dependencies(nodeID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Dependencies(nodeID)
}

// Dependents returns the ids depending on the node
func (c *Context) Dependents(nodeID string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.Dependents(nodeID)
}

// NodeRisk returns the latest composite risk breakdown for a node
func (c *Context) NodeRisk(nodeID string) (models.RiskScore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.graph.Node(nodeID); !ok {
		return models.RiskScore{}, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	score, ok := c.risk.LastScore(nodeID)
	if !ok {
		// Scored lazily before the first tick
		n, _ := c.graph.Node(nodeID)
		score = c.risk.Score(c.graph, n, c.threats.RegionExposure(n.Region))
	}
	return score, nil
}

// --- threats ---

// InjectCyberAttack starts a cyber attack against a node
func (c *Context) InjectCyberAttack(targetID string, subtype models.CyberAttackSubtype, severity float64, duration time.Duration) (*models.ThreatSimulation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.threats.InjectCyberAttack(c.graph, targetID, subtype, severity, duration, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	c.publishThreatStarted(t)
	return t, nil
}

// InjectThreat starts a physical failure or a region load spike
func (c *Context) InjectThreat(threatType models.ThreatType, targetID, region string, severity float64, duration time.Duration) (*models.ThreatSimulation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.threats.InjectThreat(c.graph, threatType, targetID, region, severity, duration, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	c.publishThreatStarted(t)
	return t, nil
}

// EndThreat deactivates one threat
func (c *Context) EndThreat(id uuid.UUID) (*models.ThreatSimulation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threats.EndThreat(id)
}

// EndAllThreats deactivates every active threat
func (c *Context) EndAllThreats() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threats.EndAll()
}

// Threats returns copies of all threats
func (c *Context) Threats() []*models.ThreatSimulation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threats.Threats()
}

// ActiveThreats returns copies of the active threats
func (c *Context) ActiveThreats() []*models.ThreatSimulation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threats.ActiveThreats()
}

// ThreatByID returns a copy of one threat
func (c *Context) ThreatByID(id uuid.UUID) (*models.ThreatSimulation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.threats.ThreatByID(id)
}

// --- cascade ---

// TriggerCascade applies a cascading failure from the origin node
func (c *Context) TriggerCascade(originID string, severity float64) (*models.CascadeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, err := c.cascade.Trigger(c.graph, originID, severity)
	if err != nil {
		return nil, err
	}
	if c.publisher != nil {
		c.publisher.PublishCascade(result)
	}
	return result, nil
}

// PredictCascadePath returns the nodes a cascade from the origin would reach
func (c *Context) PredictCascadePath(originID string, severity float64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cascade.PredictPath(c.graph, originID, severity)
}

// --- predictions ---

// Predictions returns copies of every prediction
func (c *Context) Predictions() []*models.EnhancedPrediction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.risk.Predictions()
}

// ActivePredictions returns copies of the unresolved predictions
func (c *Context) ActivePredictions() []*models.EnhancedPrediction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.risk.ActivePredictions()
}

// PredictionByID returns a copy of one prediction
func (c *Context) PredictionByID(id uuid.UUID) (*models.EnhancedPrediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.risk.PredictionByID(id)
}

// GeneratePrediction scores one node on demand and returns its failure
// prediction without advancing the simulation. A node whose risk stays
// under the generation threshold has no prediction to give and reports
// ErrPredictionNotFound.
func (c *Context) GeneratePrediction(nodeID string) (*models.EnhancedPrediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.graph.Node(nodeID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	p, created, err := c.risk.GenerateFor(c.graph, nodeID, c.threats.RegionExposure(n.Region), time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: node %s risk is below the prediction threshold", models.ErrPredictionNotFound, nodeID)
	}
	if created && c.publisher != nil {
		c.publisher.PublishPrediction(p)
	}
	return p, nil
}

// GenerateAllPredictions re-scores every node and generates predictions
// for those crossing the threshold, without advancing the tick counter.
// Returns the predictions created this call.
func (c *Context) GenerateAllPredictions() []*models.EnhancedPrediction {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.risk.ScoreAll(c.graph, c.threats.RegionExposure)
	created := c.risk.Generate(c.graph, time.Now().UTC())

	out := make([]*models.EnhancedPrediction, 0, len(created))
	for _, p := range created {
		if c.publisher != nil {
			c.publisher.PublishPrediction(p)
		}
		out = append(out, p.Clone())
	}
	return out
}

// RecordPredictionOutcome resolves a prediction with an observed outcome
func (c *Context) RecordPredictionOutcome(id uuid.UUID, occurred bool, outcome string) (*models.EnhancedPrediction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.risk.RecordOutcome(id, occurred, outcome, time.Now().UTC())
}

// AccuracyStats returns the running prediction accuracy counters
func (c *Context) AccuracyStats() models.AccuracyStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.risk.AccuracyStats()
}

// --- mitigations ---

// Recommendations returns copies of every recommendation
func (c *Context) Recommendations() []*models.MitigationRecommendation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mitigations.Recommendations()
}

// PendingRecommendations returns copies of the open recommendations
func (c *Context) PendingRecommendations() []*models.MitigationRecommendation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mitigations.PendingRecommendations()
}

// RecommendationByID returns a copy of one recommendation
func (c *Context) RecommendationByID(id uuid.UUID) (*models.MitigationRecommendation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mitigations.RecommendationByID(id)
}

// RecommendationsForNode returns copies of a node's recommendations
func (c *Context) RecommendationsForNode(nodeID string) []*models.MitigationRecommendation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mitigations.RecommendationsForNode(nodeID)
}

// ApproveRecommendation moves a pending recommendation to approved
func (c *Context) ApproveRecommendation(id uuid.UUID) (*models.MitigationRecommendation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mitigations.Approve(id)
}

// ExecuteAction runs one mitigation action against one node
func (c *Context) ExecuteAction(nodeID string, action models.ActionType) (*models.MitigationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, err := c.mitigations.Execute(c.graph, nodeID, action, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	c.afterMitigation(result)
	return result, nil
}

// ExecuteRecommendation runs one stored recommendation
func (c *Context) ExecuteRecommendation(id uuid.UUID) (*models.MitigationResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, err := c.mitigations.ExecuteRecommendation(c.graph, id, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	c.afterMitigation(result)
	return result, nil
}

// ExecuteBatch folds ExecuteAction over the items, continuing past failures
func (c *Context) ExecuteBatch(items []mitigation.BatchItem) *models.BatchMitigationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := c.mitigations.ExecuteBatch(c.graph, items, time.Now().UTC())
	for idx := range batch.Results {
		c.afterMitigation(&batch.Results[idx])
	}
	return batch
}

// AutoMitigate executes the best automatable action on every critical node
func (c *Context) AutoMitigate() *models.BatchMitigationResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	batch := c.mitigations.AutoMitigate(c.graph, time.Now().UTC())
	for idx := range batch.Results {
		c.afterMitigation(&batch.Results[idx])
	}
	return batch
}

// ClearIsolation releases a node's sticky isolated status
func (c *Context) ClearIsolation(nodeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.graph.ClearIsolation(nodeID)
}

// afterMitigation publishes the result and resolves the node's active
// prediction once the risk has dropped back under the generation threshold.
func (c *Context) afterMitigation(result *models.MitigationResult) {
	if result.RiskAfter < c.cfg.Risk.PredictionThreshold {
		c.risk.MarkMitigated(result.NodeID, result.ExecutedAt)
	}
	if c.publisher != nil {
		c.publisher.PublishMitigation(result)
	}
}

// --- system state ---

// SystemState returns the aggregate view of the twin. Available in any
// orchestrator state.
func (c *Context) SystemState() *models.SystemState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.systemStateLocked(time.Now().UTC())
}

func (c *Context) systemStateLocked(now time.Time) *models.SystemState {
	state := &models.SystemState{
		StatusCounts:      make(map[models.NodeStatus]int),
		CyberStatusCounts: make(map[models.CyberStatus]int),
		Running:           c.running,
		Tick:              c.tick,
		Timestamp:         now,
	}

	var healthSum, riskSum float64
	for _, id := range c.graph.NodeIDs() {
		n, ok := c.graph.Node(id)
		if !ok {
			continue
		}
		state.TotalNodes++
		state.StatusCounts[n.Status]++
		state.CyberStatusCounts[n.CyberStatus]++
		healthSum += n.Health
		riskSum += n.RiskScore
		if n.RiskScore > state.MaxRisk {
			state.MaxRisk = n.RiskScore
			state.MaxRiskNodeID = n.ID
		}
	}
	if state.TotalNodes > 0 {
		state.AverageHealth = healthSum / float64(state.TotalNodes)
		state.AverageRisk = riskSum / float64(state.TotalNodes)
	}

	state.ActiveThreats = len(c.threats.ActiveThreats())
	state.ActivePredictions = len(c.risk.ActivePredictions())
	state.PendingRecommendations = len(c.mitigations.PendingRecommendations())
	return state
}

func (c *Context) publishThreatStarted(t *models.ThreatSimulation) {
	if c.publisher != nil {
		c.publisher.PublishThreatStarted(t)
	}
}
