// Package risk computes composite per-node risk scores and maintains the
// prediction surface: generation, expiry, outcome bookkeeping and the
// running accuracy counters.
package risk

import (
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"twinguard-lab/internal/cascade"
	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/twin"
	"twinguard-lab/pkg/logger"
)

// Weights are the fixed component weights of the composite score.
// They must sum to 1.0 so that overall = sum(w_i * component_i).
type Weights struct {
	Physical      float64
	Cyber         float64
	Operational   float64
	Environmental float64
	Cascading     float64
}

// DefaultWeights mirror the configuration defaults
func DefaultWeights() Weights {
	return Weights{Physical: 0.30, Cyber: 0.25, Operational: 0.15, Environmental: 0.10, Cascading: 0.20}
}

// trend hysteresis: score deltas inside this band count as stable
const trendBand = 0.02

// Engine scores nodes and owns the prediction store
type Engine struct {
	weights             Weights
	predictionThreshold float64
	horizon             time.Duration
	cascade             *cascade.Engine
	logger              *logger.Logger

	prevScore  map[string]float64
	volatility map[string]float64 // EWMA of per-tick score deltas
	lastScore  map[string]models.RiskScore

	predictions map[uuid.UUID]*models.EnhancedPrediction
	byNode      map[string]uuid.UUID // active prediction per node
	stats       accumulator
}

// NewEngine creates a risk engine. horizon bounds how long a prediction
// stays active before it expires unresolved.
func NewEngine(weights Weights, predictionThreshold float64, horizon time.Duration, casc *cascade.Engine, log *logger.Logger) *Engine {
	return &Engine{
		weights:             weights,
		predictionThreshold: predictionThreshold,
		horizon:             horizon,
		cascade:             casc,
		logger:              log.WithComponent("risk"),
		prevScore:           make(map[string]float64),
		volatility:          make(map[string]float64),
		lastScore:           make(map[string]models.RiskScore),
		predictions:         make(map[uuid.UUID]*models.EnhancedPrediction),
		byNode:              make(map[string]uuid.UUID),
		stats:               newAccumulator(),
	}
}

// Reset discards all scoring history and predictions
func (e *Engine) Reset() {
	e.prevScore = make(map[string]float64)
	e.volatility = make(map[string]float64)
	e.lastScore = make(map[string]models.RiskScore)
	e.predictions = make(map[uuid.UUID]*models.EnhancedPrediction)
	e.byNode = make(map[string]uuid.UUID)
	e.stats = newAccumulator()
}

// Score computes the composite risk score for one node. exposure is the
// region-level threat pressure in [0,1], supplied by the caller. The node
// is not mutated; the caller assigns Overall to the node and refreshes
// status afterwards.
func (e *Engine) Score(g *twin.Graph, n *models.DigitalTwinNode, exposure float64) models.RiskScore {
	comp := models.RiskComponents{
		Physical:      e.physicalComponent(n),
		Cyber:         e.cyberComponent(n),
		Operational:   clamp01(n.MaintenanceDebt),
		Environmental: clamp01(exposure),
		Cascading:     e.cascadingComponent(g, n),
	}

	overall := clamp01(
		e.weights.Physical*comp.Physical +
			e.weights.Cyber*comp.Cyber +
			e.weights.Operational*comp.Operational +
			e.weights.Environmental*comp.Environmental +
			e.weights.Cascading*comp.Cascading,
	)

	prev, seen := e.prevScore[n.ID]
	delta := 0.0
	trend := models.TrendStable
	if seen {
		delta = overall - prev
		switch {
		case delta > trendBand:
			trend = models.TrendIncreasing
		case delta < -trendBand:
			trend = models.TrendDecreasing
		}
	}
	vol := e.volatility[n.ID]*0.7 + math.Abs(delta)*0.3
	e.volatility[n.ID] = vol
	e.prevScore[n.ID] = overall

	// Interval widens with metric volatility
	margin := 0.04 + vol*2
	score := models.RiskScore{
		Overall:            overall,
		Probability:        overall,
		Severity:           severityFor(overall, len(n.Dependents)),
		TimeToFailureHours: timeToFailure(overall, delta),
		ConfidenceInterval: models.ConfidenceInterval{
			Lo: clamp01(overall - margin),
			Hi: clamp01(overall + margin),
		},
		Trend:          trend,
		Components:     comp,
		LeadingFactors: e.leadingFactors(comp),
	}
	e.lastScore[n.ID] = score
	return score
}

// ScoreAll re-scores every node, assigning the composite to the node and
// re-deriving its status. A panic while scoring one node is caught and
// logged; that node keeps its previous score for the tick.
func (e *Engine) ScoreAll(g *twin.Graph, exposureFor func(region string) float64) {
	for _, id := range g.NodeIDs() {
		n, ok := g.Node(id)
		if !ok {
			continue
		}
		e.scoreNodeSafe(g, n, exposureFor)
	}
}

func (e *Engine) scoreNodeSafe(g *twin.Graph, n *models.DigitalTwinNode, exposureFor func(region string) float64) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().Str("node_id", n.ID).Interface("panic", r).Msg("scoring failed, node unchanged this tick")
		}
	}()
	exposure := 0.0
	if exposureFor != nil {
		exposure = exposureFor(n.Region)
	}
	score := e.Score(g, n, exposure)
	n.RiskScore = score.Overall
	g.RefreshStatus(n)
}

// LastScore returns the most recent composite score for a node
func (e *Engine) LastScore(nodeID string) (models.RiskScore, bool) {
	s, ok := e.lastScore[nodeID]
	return s, ok
}

func (e *Engine) physicalComponent(n *models.DigitalTwinNode) float64 {
	loadStress := clamp01((n.LoadRatio - 0.5) / 0.5)
	overTemp := 0.0
	if n.ThermalLimit > 0 {
		overTemp = clamp01((n.Temperature/n.ThermalLimit - 0.6) / 0.4)
	}
	voltDev := clamp01(math.Abs(n.Voltage-1.0) / 0.15)
	freqDev := clamp01(math.Abs(n.Frequency-50.0) / 2.5)
	return clamp01(0.30*loadStress + 0.25*overTemp + 0.15*voltDev + 0.10*freqDev + 0.20*(1-n.Health))
}

func (e *Engine) cyberComponent(n *models.DigitalTwinNode) float64 {
	latStress := clamp01(n.LatencyMS / 500)
	authStress := clamp01(float64(n.FailedAuthCount) / 10)
	return clamp01(0.30*(1-n.CyberHealth) + 0.25*n.TamperSignal + 0.15*clamp01(n.PacketLoss*3) + 0.15*latStress + 0.15*authStress)
}

// cascadingComponent is the fraction of dependencies currently critical,
// offline or isolated.
func (e *Engine) cascadingComponent(g *twin.Graph, n *models.DigitalTwinNode) float64 {
	if len(n.Dependencies) == 0 {
		return 0
	}
	failed := 0
	for _, depID := range n.Dependencies {
		dep, ok := g.Node(depID)
		if !ok {
			continue
		}
		switch dep.Status {
		case models.StatusCritical, models.StatusOffline, models.StatusIsolated:
			failed++
		}
	}
	return float64(failed) / float64(len(n.Dependencies))
}

// leadingFactors ranks the weighted component contributions, largest first
func (e *Engine) leadingFactors(c models.RiskComponents) []models.RiskFactor {
	factors := []models.RiskFactor{
		{Name: "physical", Contribution: e.weights.Physical * c.Physical, Detail: "load, thermal and electrical stress"},
		{Name: "cyber", Contribution: e.weights.Cyber * c.Cyber, Detail: "network degradation and intrusion signals"},
		{Name: "operational", Contribution: e.weights.Operational * c.Operational, Detail: "maintenance backlog"},
		{Name: "environmental", Contribution: e.weights.Environmental * c.Environmental, Detail: "regional threat exposure"},
		{Name: "cascading", Contribution: e.weights.Cascading * c.Cascading, Detail: "failed upstream dependencies"},
	}
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Contribution > factors[j].Contribution
	})
	if len(factors) > 3 {
		factors = factors[:3]
	}
	return factors
}

// severityFor scales the composite by how many nodes depend on this one
func severityFor(overall float64, dependents int) float64 {
	fanout := math.Min(1, float64(dependents)/5)
	return clamp01(overall * (0.6 + 0.4*fanout))
}

// timeToFailure shrinks as the score and its upward velocity grow
func timeToFailure(overall, delta float64) float64 {
	base := (1 - overall) * 48
	if delta > 0 {
		base /= 1 + delta*20
	}
	return clampF(base, 0.5, 168)
}

func clamp01(v float64) float64 { return clampF(v, 0, 1) }

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// dominantFailureType classifies the failure mode from the largest
// weighted component.
func (e *Engine) dominantFailureType(c models.RiskComponents) models.FailureType {
	type wc struct {
		t models.FailureType
		v float64
	}
	ranked := []wc{
		{models.FailureOverload, e.weights.Physical * c.Physical},
		{models.FailureCyberIntrusion, e.weights.Cyber * c.Cyber},
		{models.FailureEquipmentWear, e.weights.Operational * c.Operational},
		{models.FailureEnvironmental, e.weights.Environmental * c.Environmental},
		{models.FailureCascade, e.weights.Cascading * c.Cascading},
	}
	best := ranked[0]
	for _, r := range ranked[1:] {
		if r.v > best.v {
			best = r
		}
	}
	return best.t
}

func describeFailure(t models.FailureType) string {
	switch t {
	case models.FailureOverload:
		return "physical overload"
	case models.FailureCyberIntrusion:
		return "cyber intrusion"
	case models.FailureEquipmentWear:
		return "equipment wear-out"
	case models.FailureEnvironmental:
		return "environmental stress"
	case models.FailureCascade:
		return "upstream cascade"
	default:
		return string(t)
	}
}
