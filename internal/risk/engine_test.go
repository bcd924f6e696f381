package risk

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twinguard-lab/internal/cascade"
	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/twin"
	"twinguard-lab/pkg/logger"
)

func newTestEngine() *Engine {
	casc := cascade.NewEngine(cascade.DefaultParams(), logger.Nop())
	return NewEngine(DefaultWeights(), 0.5, time.Hour, casc, logger.Nop())
}

func newTestGraph(t *testing.T) *twin.Graph {
	t.Helper()
	g, err := twin.New(50, 12345)
	require.NoError(t, err)
	return g
}

// stressNode drives a node's metrics hot enough to cross the 0.5
// prediction threshold under the default weights.
func stressNode(t *testing.T, g *twin.Graph, id string) *models.DigitalTwinNode {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok)
	n.Health = 0.1
	n.LoadRatio = 1.0
	n.Temperature = n.ThermalLimit
	n.CyberHealth = 0.1
	n.TamperSignal = 0.9
	n.PacketLoss = 0.5
	n.LatencyMS = 500
	n.FailedAuthCount = 10
	n.MaintenanceDebt = 1.0
	return n
}

func TestDefaultWeightsSumToOne(t *testing.T) {
	w := DefaultWeights()
	assert.InDelta(t, 1.0, w.Physical+w.Cyber+w.Operational+w.Environmental+w.Cascading, 1e-9)
}

func TestScoreIsWeightedSumOfComponents(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	n, ok := g.Node("node-010")
	require.True(t, ok)

	score := e.Score(g, n, 0.4)
	c := score.Components
	w := DefaultWeights()

	expected := w.Physical*c.Physical + w.Cyber*c.Cyber + w.Operational*c.Operational +
		w.Environmental*c.Environmental + w.Cascading*c.Cascading
	assert.InDelta(t, expected, score.Overall, 1e-9)
	assert.Equal(t, 0.4, c.Environmental, "exposure feeds the environmental component directly")

	for _, v := range []float64{c.Physical, c.Cyber, c.Operational, c.Environmental, c.Cascading, score.Overall} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
}

func TestScoreTrendDetection(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	n, ok := g.Node("node-005")
	require.True(t, ok)

	first := e.Score(g, n, 0)
	assert.Equal(t, models.TrendStable, first.Trend, "no history yet")

	second := e.Score(g, n, 0)
	assert.Equal(t, models.TrendStable, second.Trend, "unchanged metrics stay inside the band")

	stressNode(t, g, n.ID)
	third := e.Score(g, n, 0)
	assert.Equal(t, models.TrendIncreasing, third.Trend)

	// Time to failure shrinks when risk climbs fast
	assert.Less(t, third.TimeToFailureHours, second.TimeToFailureHours)
	assert.GreaterOrEqual(t, third.TimeToFailureHours, 0.5)
	assert.LessOrEqual(t, third.TimeToFailureHours, 168.0)
}

func TestVolatilityWidensConfidenceInterval(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)

	steady, ok := g.Node("node-001")
	require.True(t, ok)
	jumpy, ok2 := g.Node("node-002")
	require.True(t, ok2)

	var steadyScore, jumpyScore models.RiskScore
	for i := 0; i < 6; i++ {
		steadyScore = e.Score(g, steady, 0)

		// Alternate the jumpy node between calm and stressed
		if i%2 == 0 {
			jumpy.LoadRatio = 1.0
			jumpy.Health = 0.2
		} else {
			jumpy.LoadRatio = 0.3
			jumpy.Health = 0.95
		}
		jumpyScore = e.Score(g, jumpy, 0)
	}

	steadyWidth := steadyScore.ConfidenceInterval.Hi - steadyScore.ConfidenceInterval.Lo
	jumpyWidth := jumpyScore.ConfidenceInterval.Hi - jumpyScore.ConfidenceInterval.Lo
	assert.Greater(t, jumpyWidth, steadyWidth)
}

func TestSeverityScalesWithFanout(t *testing.T) {
	assert.Greater(t, severityFor(0.8, 5), severityFor(0.8, 0))
	assert.InDelta(t, 0.8, severityFor(0.8, 10), 1e-9, "fanout saturates at five dependents")
}

func TestLeadingFactorsRankedAndCapped(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	n := stressNode(t, g, "node-020")

	score := e.Score(g, n, 0.5)
	require.Len(t, score.LeadingFactors, 3)
	for i := 1; i < len(score.LeadingFactors); i++ {
		assert.GreaterOrEqual(t,
			score.LeadingFactors[i-1].Contribution,
			score.LeadingFactors[i].Contribution)
	}
}

func TestScoreAllAssignsRiskAndStatus(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	stressNode(t, g, "node-010")

	e.ScoreAll(g, nil)

	n, ok := g.Node("node-010")
	require.True(t, ok)
	assert.Greater(t, n.RiskScore, 0.5)
	assert.NotEqual(t, models.StatusOnline, n.Status)

	_, found := e.LastScore("node-010")
	assert.True(t, found)
}

func TestGenerateOnePredictionPerNode(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	stressNode(t, g, "node-010")
	now := time.Unix(1700000000, 0).UTC()

	e.ScoreAll(g, nil)
	created := e.Generate(g, now)
	require.Len(t, created, 1)
	p := created[0]
	assert.Equal(t, "node-010", p.NodeID)
	assert.Equal(t, models.PredictionActive, p.Status)
	assert.GreaterOrEqual(t, p.Probability, 0.5)
	assert.NotEmpty(t, p.SuggestedActions)
	assert.NotEmpty(t, p.Reasoning.Summary)

	// Still above threshold: refreshed in place, not duplicated
	e.ScoreAll(g, nil)
	again := e.Generate(g, now.Add(time.Minute))
	assert.Empty(t, again)
	assert.Len(t, e.ActivePredictions(), 1)
}

func TestGenerateBelowThresholdCreatesNothing(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)

	e.ScoreAll(g, nil)
	created := e.Generate(g, time.Unix(1700000000, 0).UTC())
	assert.Empty(t, created, "a fresh healthy topology should not predict failures")
}

func TestSweepExpiresPastHorizon(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	stressNode(t, g, "node-010")
	now := time.Unix(1700000000, 0).UTC()

	e.ScoreAll(g, nil)
	created := e.Generate(g, now)
	require.Len(t, created, 1)

	assert.Zero(t, e.Sweep(now.Add(30*time.Minute)), "inside the horizon nothing expires")

	expired := e.Sweep(now.Add(2 * time.Hour))
	assert.Equal(t, 1, expired)

	stats := e.AccuracyStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.Accurate)
	assert.Equal(t, 1, stats.Expired)
}

func TestMarkNodeFailedCountsAccurate(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	stressNode(t, g, "node-010")
	now := time.Unix(1700000000, 0).UTC()

	e.ScoreAll(g, nil)
	require.Len(t, e.Generate(g, now), 1)

	e.MarkNodeFailed("node-010", now.Add(10*time.Minute))

	stats := e.AccuracyStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Accurate)
	assert.Equal(t, 1, stats.Occurred)
	assert.Equal(t, 1.0, stats.Accuracy)

	// Node without an active prediction: no-op
	e.MarkNodeFailed("node-010", now.Add(11*time.Minute))
	assert.Equal(t, 1, e.AccuracyStats().Total)
}

func TestMarkMitigatedCountsAccurate(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	stressNode(t, g, "node-010")
	now := time.Unix(1700000000, 0).UTC()

	e.ScoreAll(g, nil)
	created := e.Generate(g, now)
	require.Len(t, created, 1)

	e.MarkMitigated("node-010", now.Add(5*time.Minute))

	p, err := e.PredictionByID(created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.PredictionMitigated, p.Status)
	require.NotNil(t, p.WasAccurate)
	assert.True(t, *p.WasAccurate)
}

func TestRecordOutcomeIsIdempotent(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	stressNode(t, g, "node-010")
	now := time.Unix(1700000000, 0).UTC()

	e.ScoreAll(g, nil)
	created := e.Generate(g, now)
	require.Len(t, created, 1)
	id := created[0].ID

	first, err := e.RecordOutcome(id, true, "transformer tripped", now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.PredictionOccurred, first.Status)

	// Second resolution returns the settled prediction and counts nothing
	second, err := e.RecordOutcome(id, false, "changed my mind", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, models.PredictionOccurred, second.Status)
	assert.Equal(t, "transformer tripped", second.ActualOutcome)

	stats := e.AccuracyStats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Occurred)
}

func TestRecordOutcomeUnknownID(t *testing.T) {
	e := newTestEngine()
	_, err := e.RecordOutcome(uuid.New(), true, "", time.Now())
	assert.ErrorIs(t, err, models.ErrPredictionNotFound)
}

func TestResetClearsState(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	stressNode(t, g, "node-010")
	now := time.Unix(1700000000, 0).UTC()

	e.ScoreAll(g, nil)
	require.NotEmpty(t, e.Generate(g, now))

	e.Reset()
	assert.Empty(t, e.Predictions())
	assert.Zero(t, e.AccuracyStats().Total)
	_, found := e.LastScore("node-010")
	assert.False(t, found)
}
