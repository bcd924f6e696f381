package cascade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/twin"
	"twinguard-lab/pkg/logger"
)

func newTestEngine() *Engine {
	return NewEngine(DefaultParams(), logger.Nop())
}

func newTestGraph(t *testing.T) *twin.Graph {
	t.Helper()
	g, err := twin.New(150, 12345)
	require.NoError(t, err)
	return g
}

// originWithDependents finds a node whose failure would actually spread
func originWithDependents(t *testing.T, g *twin.Graph) string {
	t.Helper()
	best := ""
	fanout := 0
	for _, n := range g.Nodes() {
		if len(n.Dependents) > fanout {
			best = n.ID
			fanout = len(n.Dependents)
		}
	}
	require.NotEmpty(t, best)
	return best
}

func TestTriggerValidation(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)

	_, err := e.Trigger(g, "node-001", 0)
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = e.Trigger(g, "node-001", 1.5)
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = e.Trigger(g, "no-such-node", 0.8)
	assert.ErrorIs(t, err, models.ErrNodeNotFound)
}

func TestTriggerAppliesDecayedPenalties(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	origin := originWithDependents(t, g)

	node, ok := g.Node(origin)
	require.True(t, ok)
	riskBefore := node.RiskScore
	healthBefore := node.Health

	result, err := e.Trigger(g, origin, 0.9)
	require.NoError(t, err)

	assert.Equal(t, origin, result.OriginID)
	require.NotEmpty(t, result.AffectedNodes)
	assert.Equal(t, origin, result.AffectedNodes[0], "origin is hit first and hardest")
	assert.Greater(t, result.ImpactScore, 0.0)

	// Origin takes the undecayed hit
	assert.InDelta(t, riskBefore+0.9*0.6, node.RiskScore, 1e-9)
	assert.InDelta(t, healthBefore-0.9*0.3, node.Health, 1e-9)
}

func TestTriggerVisitsEachNodeOnce(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	origin := originWithDependents(t, g)

	result, err := e.Trigger(g, origin, 1.0)
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, id := range result.AffectedNodes {
		assert.False(t, seen[id], "node %s hit twice in one cascade", id)
		seen[id] = true
	}
}

func TestPredictPathDoesNotMutate(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	origin := originWithDependents(t, g)

	before := g.Nodes()
	path, err := e.PredictPath(g, origin, 0.9)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	assert.Equal(t, origin, path[0])

	assert.Equal(t, before, g.Nodes(), "prediction must leave the graph untouched")
}

func TestPredictPathMatchesTriggerPath(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	origin := originWithDependents(t, g)

	path, err := e.PredictPath(g, origin, 0.9)
	require.NoError(t, err)

	result, err := e.Trigger(g, origin, 0.9)
	require.NoError(t, err)

	assert.Equal(t, path, result.PropagationPath,
		"predicted and applied cascades share one traversal")
}

func TestIsolatedOriginBlocksCascade(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	origin := originWithDependents(t, g)

	node, ok := g.Node(origin)
	require.True(t, ok)
	node.Status = models.StatusIsolated

	result, err := e.Trigger(g, origin, 0.9)
	require.NoError(t, err)
	assert.Empty(t, result.AffectedNodes)
	assert.Zero(t, result.ImpactScore)
}

func TestInactiveEdgesBlockPropagation(t *testing.T) {
	e := newTestEngine()
	g := newTestGraph(t)
	origin := originWithDependents(t, g)

	// Cut every edge leaving the origin: the cascade stops there
	g.SetEdgesActive(origin, false)

	result, err := e.Trigger(g, origin, 1.0)
	require.NoError(t, err)
	assert.Equal(t, []string{origin}, result.AffectedNodes)
}

func TestSeverityDecaysBelowFloor(t *testing.T) {
	// With an aggressive decay nothing past the origin clears the floor
	e := NewEngine(Params{Decay: 0.01, Floor: 0.05, MaxHops: 6}, logger.Nop())
	g := newTestGraph(t)
	origin := originWithDependents(t, g)

	result, err := e.Trigger(g, origin, 1.0)
	require.NoError(t, err)
	assert.Equal(t, []string{origin}, result.AffectedNodes)
}

func TestMaxHopsLimitsReach(t *testing.T) {
	g := newTestGraph(t)
	origin := originWithDependents(t, g)

	// No decay: hop limit is the only stop condition
	wide := NewEngine(Params{Decay: 1.0, Floor: 0.0001, MaxHops: 6}, logger.Nop())
	narrow := NewEngine(Params{Decay: 1.0, Floor: 0.0001, MaxHops: 1}, logger.Nop())

	widePath, err := wide.PredictPath(g, origin, 1.0)
	require.NoError(t, err)
	narrowPath, err := narrow.PredictPath(g, origin, 1.0)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(widePath), len(narrowPath))
}
