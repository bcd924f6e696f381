package mitigation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/twin"
	"twinguard-lab/pkg/logger"
)

func newTestManager() *Manager {
	return NewManager(logger.Nop())
}

func newTestGraph(t *testing.T) *twin.Graph {
	t.Helper()
	g, err := twin.New(50, 12345)
	require.NoError(t, err)
	return g
}

func nodeOfCategory(t *testing.T, g *twin.Graph, cat models.Category) *models.DigitalTwinNode {
	t.Helper()
	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		if n.Category == cat {
			return n
		}
	}
	t.Fatalf("no node of category %s in test graph", cat)
	return nil
}

func activePrediction(nodeID string, probability float64, failure models.FailureType) *models.EnhancedPrediction {
	return &models.EnhancedPrediction{
		ID:          uuid.New(),
		NodeID:      nodeID,
		Type:        failure,
		Probability: probability,
		Status:      models.PredictionActive,
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
	}
}

func TestSuggestedActionsCoverEveryFailureMode(t *testing.T) {
	for _, ft := range models.FailureTypes() {
		actions := SuggestedActions(ft)
		require.NotEmpty(t, actions, "failure mode %s has no playbook", ft)
		for _, a := range actions {
			_, known := catalog[a]
			assert.True(t, known, "%s proposes uncataloged action %s", ft, a)
		}
	}
}

func TestPriorityFromProbability(t *testing.T) {
	assert.Equal(t, models.PriorityImmediate, priorityFor(0.90))
	assert.Equal(t, models.PriorityHigh, priorityFor(0.75))
	assert.Equal(t, models.PriorityMedium, priorityFor(0.60))
	assert.Equal(t, models.PriorityLow, priorityFor(0.50))
}

func TestAdviseProposesApplicableActions(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	n := nodeOfCategory(t, g, models.CategoryPower)
	p := activePrediction(n.ID, 0.9, models.FailureOverload)

	created := m.Advise(g, []*models.EnhancedPrediction{p}, now)
	require.Len(t, created, 2, "at most two proposals per prediction")

	for _, rec := range created {
		assert.Equal(t, n.ID, rec.NodeID)
		assert.Equal(t, models.RecommendationPending, rec.Status)
		assert.Equal(t, models.PriorityImmediate, rec.Priority)
		require.NotNil(t, rec.PredictionID)
		assert.Equal(t, p.ID, *rec.PredictionID)
		assert.True(t, catalog[rec.Action].applicable(n.Category))
	}
}

func TestAdviseSkipsCategoryMismatch(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	// Load shedding and cooling apply to power and datacenter only, so a
	// water node's overload playbook falls through to reroute.
	n := nodeOfCategory(t, g, models.CategoryWater)
	p := activePrediction(n.ID, 0.6, models.FailureOverload)

	created := m.Advise(g, []*models.EnhancedPrediction{p}, now)
	require.Len(t, created, 1)
	assert.Equal(t, models.ActionReroute, created[0].Action)
}

func TestAdviseDedupesOpenActions(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	// A water node's overload playbook has exactly one applicable action,
	// so the dedupe leaves the second call with nothing to propose.
	n := nodeOfCategory(t, g, models.CategoryWater)
	p := activePrediction(n.ID, 0.9, models.FailureOverload)

	first := m.Advise(g, []*models.EnhancedPrediction{p}, now)
	require.Len(t, first, 1)

	second := m.Advise(g, []*models.EnhancedPrediction{p}, now.Add(time.Minute))
	assert.Empty(t, second)

	// Completing the open recommendation frees the action for re-proposal
	_, err := m.Execute(g, n.ID, first[0].Action, now.Add(2*time.Minute))
	require.NoError(t, err)
	third := m.Advise(g, []*models.EnhancedPrediction{p}, now.Add(3*time.Minute))
	require.Len(t, third, 1)
	assert.Equal(t, first[0].Action, third[0].Action)
}

func TestAdviseIgnoresResolvedPredictions(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)

	p := activePrediction("node-001", 0.9, models.FailureOverload)
	p.Status = models.PredictionExpired

	created := m.Advise(g, []*models.EnhancedPrediction{p}, time.Unix(1700000000, 0).UTC())
	assert.Empty(t, created)
}

func TestApproveLifecycle(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	n := nodeOfCategory(t, g, models.CategoryPower)
	p := activePrediction(n.ID, 0.9, models.FailureCyberIntrusion)
	created := m.Advise(g, []*models.EnhancedPrediction{p}, now)
	require.NotEmpty(t, created)

	rec, err := m.Approve(created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationApproved, rec.Status)

	// Approving twice is an invalid transition
	_, err = m.Approve(created[0].ID)
	assert.ErrorIs(t, err, models.ErrInvalidOperation)

	_, err = m.Approve(uuid.New())
	assert.ErrorIs(t, err, models.ErrRecommendationNotFound)
}

func TestExecuteValidatesBeforeMutating(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()
	before := g.Nodes()

	_, err := m.Execute(g, "node-001", "unplug_it", now)
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = m.Execute(g, "no-such-node", models.ActionLoadShed, now)
	assert.ErrorIs(t, err, models.ErrNodeNotFound)

	// Category mismatch: cooling on a water node
	water := nodeOfCategory(t, g, models.CategoryWater)
	_, err = m.Execute(g, water.ID, models.ActionEnableCooling, now)
	assert.ErrorIs(t, err, models.ErrInvalidOperation)

	assert.Equal(t, before, g.Nodes(), "rejected executions must not touch the graph")
}

func TestExecuteLoadShed(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	n := nodeOfCategory(t, g, models.CategoryPower)
	n.RiskScore = 0.8
	loadBefore := n.LoadRatio

	result, err := m.Execute(g, n.ID, models.ActionLoadShed, now)
	require.NoError(t, err)

	assert.Equal(t, 0.8, result.RiskBefore)
	assert.InDelta(t, 0.55, result.RiskAfter, 1e-9)
	assert.InDelta(t, loadBefore*0.6, n.LoadRatio, 1e-9)
	assert.InDelta(t, n.LoadRatio*n.RatedCapacity, n.CurrentLoad, 1e-9)
}

func TestExecuteIsolateCutsEdges(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	// Any node takes isolate; pick one with edges
	var target *models.DigitalTwinNode
	for _, id := range g.NodeIDs() {
		n, _ := g.Node(id)
		if len(n.Dependencies) > 0 {
			target = n
			break
		}
	}
	require.NotNil(t, target)

	_, err := m.Execute(g, target.ID, models.ActionIsolate, now)
	require.NoError(t, err)

	assert.Equal(t, models.StatusIsolated, target.Status)
	for _, e := range g.IncomingEdges(target.ID) {
		assert.False(t, e.IsActive)
	}
	for _, e := range g.OutgoingEdges(target.ID) {
		assert.False(t, e.IsActive)
	}
}

func TestExecuteCyberLockdown(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	n, ok := g.Node("node-001")
	require.True(t, ok)
	n.TamperSignal = 0.9
	n.PacketLoss = 0.4

	_, err := m.Execute(g, n.ID, models.ActionCyberLockdown, now)
	require.NoError(t, err)

	assert.Equal(t, models.CyberIsolated, n.CyberStatus)
	assert.InDelta(t, 0.27, n.TamperSignal, 1e-9)
	assert.InDelta(t, 0.2, n.PacketLoss, 1e-9)
}

func TestExecuteCredentialReset(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	n, ok := g.Node("node-001")
	require.True(t, ok)
	n.FailedAuthCount = 9
	healthBefore := n.CyberHealth

	_, err := m.Execute(g, n.ID, models.ActionCredentialReset, now)
	require.NoError(t, err)

	assert.Zero(t, n.FailedAuthCount)
	assert.Equal(t, now, n.LastAuthTime)
	assert.InDelta(t, minF(healthBefore+0.10, 1.0), n.CyberHealth, 1e-9)
}

func TestExecuteCompletesMatchingRecommendations(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	n := nodeOfCategory(t, g, models.CategoryPower)
	p := activePrediction(n.ID, 0.9, models.FailureOverload)
	created := m.Advise(g, []*models.EnhancedPrediction{p}, now)
	require.NotEmpty(t, created)

	_, err := m.Execute(g, n.ID, created[0].Action, now.Add(time.Minute))
	require.NoError(t, err)

	rec, err := m.RecommendationByID(created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.RecommendationCompleted, rec.Status)
	require.NotNil(t, rec.CompletedAt)
}

func TestExecuteRecommendationApprovalGate(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	n := nodeOfCategory(t, g, models.CategoryPower)
	// Cyber intrusion playbook leads with lockdown, which needs approval
	p := activePrediction(n.ID, 0.9, models.FailureCyberIntrusion)
	created := m.Advise(g, []*models.EnhancedPrediction{p}, now)
	require.NotEmpty(t, created)

	var gated *models.MitigationRecommendation
	for _, rec := range created {
		if rec.RequiresApproval {
			gated = rec
			break
		}
	}
	require.NotNil(t, gated)

	_, err := m.ExecuteRecommendation(g, gated.ID, now)
	assert.ErrorIs(t, err, models.ErrInvalidOperation, "pending approval-gated action must not run")

	_, err = m.Approve(gated.ID)
	require.NoError(t, err)
	result, err := m.ExecuteRecommendation(g, gated.ID, now)
	require.NoError(t, err)
	assert.Equal(t, n.ID, result.NodeID)
}

func TestExecuteBatchContinuesPastFailures(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	n := nodeOfCategory(t, g, models.CategoryPower)
	batch := m.ExecuteBatch(g, []BatchItem{
		{NodeID: "no-such-node", Action: models.ActionLoadShed},
		{NodeID: n.ID, Action: models.ActionLoadShed},
	}, now)

	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Errors, 1)
	assert.Contains(t, batch.Errors[0], "no-such-node")
}

func TestAutoMitigateReducesCriticalCount(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	// Drive a handful of nodes critical
	for _, id := range []string{"node-001", "node-010", "node-020"} {
		n, ok := g.Node(id)
		require.True(t, ok)
		n.RiskScore = 0.9
		g.RefreshStatus(n)
	}
	criticalBefore := len(g.CriticalNodes())
	require.Equal(t, 3, criticalBefore)

	batch := m.AutoMitigate(g, now)
	assert.Equal(t, 3, batch.Succeeded)
	assert.Zero(t, batch.Failed)

	assert.LessOrEqual(t, len(g.CriticalNodes()), criticalBefore,
		"auto mitigation must never create new critical nodes")
}

func TestAutoMitigateLeavesIsolatedAlone(t *testing.T) {
	m := newTestManager()
	g := newTestGraph(t)
	now := time.Unix(1700000000, 0).UTC()

	n, ok := g.Node("node-001")
	require.True(t, ok)
	n.RiskScore = 0.9
	n.Status = models.StatusIsolated

	batch := m.AutoMitigate(g, now)
	assert.Zero(t, batch.Succeeded)
	assert.Zero(t, batch.Failed)
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
