package twin

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twinguard-lab/internal/domain/models"
)

func TestNewRejectsNonPositiveNodeCount(t *testing.T) {
	_, err := New(0, 12345)
	require.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = New(-5, 12345)
	require.ErrorIs(t, err, models.ErrValidationFailed)
}

func TestTopologyIsDeterministic(t *testing.T) {
	a, err := New(150, 12345)
	require.NoError(t, err)
	b, err := New(150, 12345)
	require.NoError(t, err)

	require.Equal(t, a.Size(), b.Size())
	assert.Equal(t, a.Nodes(), b.Nodes())
	assert.Equal(t, a.Edges(), b.Edges())
}

func TestTopologyVariesWithSeed(t *testing.T) {
	a, err := New(150, 12345)
	require.NoError(t, err)
	b, err := New(150, 54321)
	require.NoError(t, err)

	assert.NotEqual(t, a.Nodes(), b.Nodes())
}

func TestTopologyIsAcyclic(t *testing.T) {
	g, err := New(150, 12345)
	require.NoError(t, err)

	// Construction order is the topological order: every edge points from
	// an earlier node to a later one.
	position := map[string]int{}
	for i, id := range g.NodeIDs() {
		position[id] = i
	}
	for _, e := range g.Edges() {
		assert.Less(t, position[e.From], position[e.To],
			"edge %s must point forward in creation order", e.ID)
	}
}

func TestDependencyListsAreMutualInverses(t *testing.T) {
	g, err := New(150, 12345)
	require.NoError(t, err)

	for _, n := range g.Nodes() {
		for _, depID := range n.Dependencies {
			dep, ok := g.Node(depID)
			require.True(t, ok)
			assert.Contains(t, dep.Dependents, n.ID,
				"%s depends on %s, so %s must list it as a dependent", n.ID, depID, depID)
		}
		for _, depID := range n.Dependents {
			dep, ok := g.Node(depID)
			require.True(t, ok)
			assert.Contains(t, dep.Dependencies, n.ID)
		}
	}
}

func TestBackupEdgesStartInactive(t *testing.T) {
	g, err := New(150, 12345)
	require.NoError(t, err)

	backups := 0
	for _, e := range g.Edges() {
		if e.Type == models.EdgeBackup {
			backups++
			assert.False(t, e.IsActive, "backup edge %s must start inactive", e.ID)
		} else {
			assert.True(t, e.IsActive, "primary edge %s must start active", e.ID)
		}
	}
	assert.Greater(t, backups, 0, "a 150-node topology should carry some backup edges")
}

func TestInitialMetricsWithinBounds(t *testing.T) {
	g, err := New(150, 12345)
	require.NoError(t, err)

	for _, n := range g.Nodes() {
		assert.GreaterOrEqual(t, n.Health, 0.85)
		assert.LessOrEqual(t, n.Health, 1.0)
		assert.GreaterOrEqual(t, n.LoadRatio, 0.25)
		assert.LessOrEqual(t, n.LoadRatio, 0.70)
		assert.Equal(t, models.StatusOnline, n.Status)
		assert.Equal(t, models.CyberSecure, n.CyberStatus)
		assert.True(t, models.KnownRegion(n.Region))
	}
}

func TestRefreshStatusThresholds(t *testing.T) {
	g, err := New(10, 1)
	require.NoError(t, err)
	n, ok := g.Node("node-001")
	require.True(t, ok)

	cases := []struct {
		name   string
		health float64
		risk   float64
		want   models.NodeStatus
	}{
		{"online", 0.9, 0.2, models.StatusOnline},
		{"degraded above threshold", 0.9, 0.50, models.StatusDegraded},
		{"critical above threshold", 0.9, 0.80, models.StatusCritical},
		{"offline wins over risk", 0.01, 0.80, models.StatusOffline},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n.Health = tc.health
			n.RiskScore = tc.risk
			n.Status = models.StatusOnline
			g.RefreshStatus(n)
			assert.Equal(t, tc.want, n.Status)
		})
	}
}

func TestIsolationIsStickyUntilCleared(t *testing.T) {
	g, err := New(10, 1)
	require.NoError(t, err)
	n, ok := g.Node("node-005")
	require.True(t, ok)

	n.Status = models.StatusIsolated
	n.Health = 0.95
	n.RiskScore = 0.1
	g.RefreshStatus(n)
	assert.Equal(t, models.StatusIsolated, n.Status, "refresh must not release isolation")

	require.NoError(t, g.ClearIsolation(n.ID))
	assert.Equal(t, models.StatusOnline, n.Status)

	// Edges come back with the node
	for _, e := range g.OutgoingEdges(n.ID) {
		if e.Type != models.EdgeBackup {
			assert.True(t, e.IsActive)
		}
	}
}

func TestClearIsolationUnknownNode(t *testing.T) {
	g, err := New(10, 1)
	require.NoError(t, err)
	assert.ErrorIs(t, g.ClearIsolation("node-999"), models.ErrNodeNotFound)
}

func TestSetEdgesActive(t *testing.T) {
	g, err := New(50, 12345)
	require.NoError(t, err)

	// Pick a node with at least one edge
	var target string
	for _, n := range g.Nodes() {
		if len(n.Dependencies) > 0 {
			target = n.ID
			break
		}
	}
	require.NotEmpty(t, target)

	changed := g.SetEdgesActive(target, false)
	assert.Greater(t, changed, 0)
	for _, e := range g.IncomingEdges(target) {
		assert.False(t, e.IsActive)
	}

	// Second call is a no-op
	assert.Zero(t, g.SetEdgesActive(target, false))
}

func TestTickKeepsMetricsInBounds(t *testing.T) {
	g, err := New(150, 12345)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 200; i++ {
		g.Tick(now, nil)
		now = now.Add(time.Second)
	}

	for _, n := range g.Nodes() {
		assert.GreaterOrEqual(t, n.Health, 0.0)
		assert.LessOrEqual(t, n.Health, 1.0)
		assert.GreaterOrEqual(t, n.LoadRatio, 0.0)
		assert.LessOrEqual(t, n.LoadRatio, 1.0)
		assert.GreaterOrEqual(t, n.Voltage, 0.5)
		assert.LessOrEqual(t, n.Voltage, 1.2)
		assert.GreaterOrEqual(t, n.Frequency, 45.0)
		assert.LessOrEqual(t, n.Frequency, 55.0)
		assert.GreaterOrEqual(t, n.PacketLoss, 0.0)
		assert.LessOrEqual(t, n.PacketLoss, 1.0)
		assert.GreaterOrEqual(t, n.Temperature, 10.0)
		assert.LessOrEqual(t, n.Temperature, n.ThermalLimit*1.5)
	}
}

func TestTickBiasPushesMetricsUp(t *testing.T) {
	quiet, err := New(50, 777)
	require.NoError(t, err)
	stressed, err := New(50, 777)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	for i := 0; i < 50; i++ {
		quiet.Tick(now, nil)
		stressed.Tick(now, func(string) Bias { return Bias{Physical: 0.8, Cyber: 0.8} })
		now = now.Add(time.Second)
	}

	var quietLoad, stressedLoad, quietTamper, stressedTamper float64
	for _, n := range quiet.Nodes() {
		quietLoad += n.LoadRatio
		quietTamper += n.TamperSignal
	}
	for _, n := range stressed.Nodes() {
		stressedLoad += n.LoadRatio
		stressedTamper += n.TamperSignal
	}

	assert.Greater(t, stressedLoad, quietLoad, "physical bias should raise aggregate load")
	assert.Greater(t, stressedTamper, quietTamper, "cyber bias should raise aggregate tamper signal")
}

func TestOfflineNodesOnlyCool(t *testing.T) {
	g, err := New(10, 1)
	require.NoError(t, err)
	n, ok := g.Node("node-003")
	require.True(t, ok)

	n.Status = models.StatusOffline
	n.Temperature = 60
	loadBefore := n.LoadRatio

	g.Tick(time.Unix(1700000000, 0).UTC(), nil)

	assert.Equal(t, loadBefore, n.LoadRatio, "offline nodes must not drift load")
	assert.Equal(t, 59.5, n.Temperature)
}

func TestTickPropertyMetricsStayValid(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25

	properties := gopter.NewProperties(parameters)

	properties.Property("metrics stay in range under any bias", prop.ForAll(
		func(seed int64, physical, cyber float64, ticks int) bool {
			g, err := New(20, seed)
			if err != nil {
				return false
			}
			bias := Bias{Physical: physical, Cyber: cyber}
			now := time.Unix(1700000000, 0).UTC()
			for i := 0; i < ticks; i++ {
				g.Tick(now, func(string) Bias { return bias })
				now = now.Add(time.Second)
			}
			for _, n := range g.Nodes() {
				if n.Health < 0 || n.Health > 1 ||
					n.LoadRatio < 0 || n.LoadRatio > 1 ||
					n.PacketLoss < 0 || n.PacketLoss > 1 ||
					n.TamperSignal < 0 || n.TamperSignal > 1 ||
					n.CyberHealth < 0 || n.CyberHealth > 1 ||
					n.Voltage < 0.5 || n.Voltage > 1.2 ||
					n.Frequency < 45 || n.Frequency > 55 {
					return false
				}
			}
			return true
		},
		gen.Int64(),
		gen.Float64Range(0, 1),
		gen.Float64Range(0, 1),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t)
}
