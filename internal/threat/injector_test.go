package threat

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

func newTestInjector(maxActive int) *Injector {
	return NewInjector(30*time.Minute, maxActive, logger.Nop())
}

func newTestGraph(t *testing.T) *twin.Graph {
	t.Helper()
	g, err := twin.New(50, 12345)
	require.NoError(t, err)
	return g
}

func testNow() time.Time {
	return time.Unix(1700000000, 0).UTC()
}

func TestInjectCyberAttackValidation(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	_, err := inj.InjectCyberAttack(g, "node-001", "phishing", 0.8, 0, now)
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = inj.InjectCyberAttack(g, "node-001", models.CyberSubtypeMalware, 0, 0, now)
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = inj.InjectCyberAttack(g, "node-001", models.CyberSubtypeMalware, 1.1, 0, now)
	assert.ErrorIs(t, err, models.ErrValidationFailed)
}

func TestInjectUnknownTargetIsAcceptedNoOp(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	before := map[string]*models.DigitalTwinNode{}
	for _, n := range g.Nodes() {
		before[n.ID] = n
	}

	cyber, err := inj.InjectCyberAttack(g, "no-such-node", models.CyberSubtypeMalware, 0.8, 0, now)
	require.NoError(t, err)
	assert.True(t, cyber.Active)
	assert.Equal(t, "no-such-node", cyber.Target)
	assert.Empty(t, cyber.AffectedNodes)

	phys, err := inj.InjectThreat(g, models.ThreatPhysicalFailure, "no-such-node", "", 0.8, 0, now)
	require.NoError(t, err)
	assert.Empty(t, phys.AffectedNodes)
	assert.Len(t, inj.ActiveThreats(), 2)

	// The threats exist but touch nothing: no footprint and no bias
	for _, n := range g.Nodes() {
		bias := inj.BiasFor(n.ID, n.Region)
		assert.Zero(t, bias.Cyber)
		assert.Zero(t, bias.Physical)
		assert.Equal(t, before[n.ID].Health, n.Health)
		assert.Equal(t, before[n.ID].CyberHealth, n.CyberHealth)
		assert.Equal(t, before[n.ID].TamperSignal, n.TamperSignal)
	}
}

func TestInjectCyberAttackPerturbsTarget(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	n, ok := g.Node("node-010")
	require.True(t, ok)
	tamperBefore := n.TamperSignal
	healthBefore := n.CyberHealth

	threat, err := inj.InjectCyberAttack(g, n.ID, models.CyberSubtypeMalware, 0.8, 45*time.Minute, now)
	require.NoError(t, err)

	assert.Equal(t, models.ThreatCyberAttack, threat.Type)
	assert.Equal(t, string(models.CyberSubtypeMalware), threat.Subtype)
	assert.Equal(t, n.ID, threat.Target)
	assert.Equal(t, n.Region, threat.Region)
	assert.Equal(t, []string{n.ID}, threat.AffectedNodes)
	assert.True(t, threat.Active)
	assert.Equal(t, now.Add(45*time.Minute), threat.EndsAt)
	assert.InDelta(t, 0.3+0.8*0.5, threat.PropagationRate, 1e-9)

	assert.InDelta(t, clamp01(tamperBefore+0.8*0.4), n.TamperSignal, 1e-9)
	assert.InDelta(t, clamp01(healthBefore-0.8*0.3), n.CyberHealth, 1e-9)
}

func TestCyberSubtypeFootprints(t *testing.T) {
	now := testNow()

	cases := []struct {
		subtype models.CyberAttackSubtype
		check   func(t *testing.T, before, after *models.DigitalTwinNode)
	}{
		{models.CyberSubtypeDenialOfService, func(t *testing.T, before, after *models.DigitalTwinNode) {
			assert.Greater(t, after.PacketLoss, before.PacketLoss)
			assert.Greater(t, after.LatencyMS, before.LatencyMS)
		}},
		{models.CyberSubtypeCredentialStuffing, func(t *testing.T, before, after *models.DigitalTwinNode) {
			assert.Equal(t, before.FailedAuthCount+9, after.FailedAuthCount)
			assert.Equal(t, now, after.LastAuthTime)
		}},
		{models.CyberSubtypeTampering, func(t *testing.T, before, after *models.DigitalTwinNode) {
			assert.InDelta(t, clamp01(before.TamperSignal+0.75*0.6), after.TamperSignal, 1e-9)
		}},
	}

	for _, tc := range cases {
		t.Run(string(tc.subtype), func(t *testing.T) {
			inj := newTestInjector(0)
			g := newTestGraph(t)
			n, ok := g.Node("node-020")
			require.True(t, ok)
			before := n.Clone()

			_, err := inj.InjectCyberAttack(g, n.ID, tc.subtype, 0.75, 0, now)
			require.NoError(t, err)
			tc.check(t, before, n)
		})
	}
}

func TestInjectPhysicalFailure(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	n, ok := g.Node("node-015")
	require.True(t, ok)
	healthBefore := n.Health
	tempBefore := n.Temperature

	threat, err := inj.InjectThreat(g, models.ThreatPhysicalFailure, n.ID, "", 0.8, 0, now)
	require.NoError(t, err)

	assert.Equal(t, n.ID, threat.Target)
	assert.Equal(t, now.Add(30*time.Minute), threat.EndsAt, "zero duration falls back to the default")

	assert.InDelta(t, clamp01(healthBefore-0.8*0.35), n.Health, 1e-9)
	assert.InDelta(t, tempBefore+0.8*20, n.Temperature, 1e-9)
}

func TestInjectLoadSpikeHitsWholeRegion(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	loadBefore := map[string]float64{}
	for _, n := range g.Nodes() {
		loadBefore[n.ID] = n.LoadRatio
	}

	threat, err := inj.InjectThreat(g, models.ThreatLoadSpike, "", "north", 0.8, 0, now)
	require.NoError(t, err)

	assert.Empty(t, threat.Target)
	assert.Equal(t, "north", threat.Region)
	require.NotEmpty(t, threat.AffectedNodes)

	for _, id := range threat.AffectedNodes {
		n, ok := g.Node(id)
		require.True(t, ok)
		assert.Equal(t, "north", n.Region)
		// Region-wide pressure lands at half severity per node
		assert.InDelta(t, clamp01(loadBefore[id]+0.8*0.5*0.3), n.LoadRatio, 1e-9)
	}
	for _, n := range g.Nodes() {
		if n.Region != "north" {
			assert.Equal(t, loadBefore[n.ID], n.LoadRatio, "nodes outside the region must be untouched")
		}
	}
}

func TestInjectThreatValidation(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	_, err := inj.InjectThreat(g, models.ThreatLoadSpike, "", "atlantis", 0.8, 0, now)
	assert.ErrorIs(t, err, models.ErrValidationFailed)

	_, err = inj.InjectThreat(g, "earthquake", "node-001", "", 0.8, 0, now)
	assert.ErrorIs(t, err, models.ErrValidationFailed)
}

func TestActiveThreatCap(t *testing.T) {
	inj := newTestInjector(2)
	g := newTestGraph(t)
	now := testNow()

	a, err := inj.InjectCyberAttack(g, "node-001", models.CyberSubtypeMalware, 0.5, 0, now)
	require.NoError(t, err)
	_, err = inj.InjectCyberAttack(g, "node-002", models.CyberSubtypeMalware, 0.5, 0, now)
	require.NoError(t, err)

	_, err = inj.InjectCyberAttack(g, "node-003", models.CyberSubtypeMalware, 0.5, 0, now)
	assert.ErrorIs(t, err, models.ErrInvalidOperation, "cap reached")

	// Ending one frees a slot
	_, err = inj.EndThreat(a.ID)
	require.NoError(t, err)
	_, err = inj.InjectCyberAttack(g, "node-003", models.CyberSubtypeMalware, 0.5, 0, now)
	assert.NoError(t, err)
}

func TestBiasForSumsActiveThreats(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	n, ok := g.Node("node-010")
	require.True(t, ok)

	cyber, err := inj.InjectCyberAttack(g, n.ID, models.CyberSubtypeMalware, 0.8, 0, now)
	require.NoError(t, err)
	_, err = inj.InjectThreat(g, models.ThreatPhysicalFailure, n.ID, "", 0.6, 0, now)
	require.NoError(t, err)

	bias := inj.BiasFor(n.ID, n.Region)
	assert.InDelta(t, 0.8*(0.3+0.8*0.5), bias.Cyber, 1e-9)
	assert.InDelta(t, 0.6*(0.3+0.6*0.5), bias.Physical, 1e-9)

	// Other nodes feel nothing from targeted threats
	other := inj.BiasFor("node-011", n.Region)
	assert.Zero(t, other.Cyber)
	assert.Zero(t, other.Physical)

	// Ending the cyber attack removes its share
	_, err = inj.EndThreat(cyber.ID)
	require.NoError(t, err)
	bias = inj.BiasFor(n.ID, n.Region)
	assert.Zero(t, bias.Cyber)
}

func TestBiasForLoadSpikeIsRegionalAndDamped(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	_, err := inj.InjectThreat(g, models.ThreatLoadSpike, "", "east", 0.9, 0, now)
	require.NoError(t, err)

	inRegion := inj.BiasFor("whatever", "east")
	assert.InDelta(t, 0.9*(0.3+0.9*0.5)*0.6, inRegion.Physical, 1e-9)
	assert.Zero(t, inRegion.Cyber)

	outside := inj.BiasFor("whatever", "west")
	assert.Zero(t, outside.Physical)
}

func TestBiasForClampsAtOne(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	for i := 0; i < 3; i++ {
		_, err := inj.InjectCyberAttack(g, "node-005", models.CyberSubtypeTampering, 1.0, 0, now)
		require.NoError(t, err)
	}

	n, _ := g.Node("node-005")
	bias := inj.BiasFor(n.ID, n.Region)
	assert.Equal(t, 1.0, bias.Cyber)
}

func TestRegionExposure(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	assert.Zero(t, inj.RegionExposure("north"))

	_, err := inj.InjectThreat(g, models.ThreatLoadSpike, "", "north", 0.6, 0, now)
	require.NoError(t, err)
	assert.InDelta(t, 0.3, inj.RegionExposure("north"), 1e-9)
	assert.Zero(t, inj.RegionExposure("south"))

	_, err = inj.InjectThreat(g, models.ThreatLoadSpike, "", "north", 0.8, 0, now)
	require.NoError(t, err)
	assert.InDelta(t, 0.7, inj.RegionExposure("north"), 1e-9)
}

func TestExpireDueStopsBiasOnly(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	n, ok := g.Node("node-010")
	require.True(t, ok)
	_, err := inj.InjectCyberAttack(g, n.ID, models.CyberSubtypeMalware, 0.8, 10*time.Minute, now)
	require.NoError(t, err)
	damagedHealth := n.CyberHealth

	assert.Empty(t, inj.ExpireDue(now.Add(5*time.Minute)), "not due yet")

	expired := inj.ExpireDue(now.Add(11 * time.Minute))
	require.Len(t, expired, 1)
	assert.False(t, expired[0].Active)

	// Bias is gone but the damage already done stays on the node
	bias := inj.BiasFor(n.ID, n.Region)
	assert.Zero(t, bias.Cyber)
	assert.Equal(t, damagedHealth, n.CyberHealth)

	// Second sweep finds nothing
	assert.Empty(t, inj.ExpireDue(now.Add(12*time.Minute)))
}

func TestEndThreat(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	threat, err := inj.InjectCyberAttack(g, "node-001", models.CyberSubtypeMalware, 0.5, 0, now)
	require.NoError(t, err)

	ended, err := inj.EndThreat(threat.ID)
	require.NoError(t, err)
	assert.False(t, ended.Active)
	assert.Empty(t, inj.ActiveThreats())

	// Ending twice is harmless
	again, err := inj.EndThreat(threat.ID)
	require.NoError(t, err)
	assert.False(t, again.Active)

	_, err = inj.EndThreat(uuid.New())
	assert.ErrorIs(t, err, models.ErrInvalidOperation)
}

func TestEndAll(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	for _, id := range []string{"node-001", "node-002", "node-003"} {
		_, err := inj.InjectCyberAttack(g, id, models.CyberSubtypeMalware, 0.5, 0, now)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, inj.EndAll())
	assert.Empty(t, inj.ActiveThreats())
	assert.Len(t, inj.Threats(), 3, "ended threats stay in the history")
	assert.Zero(t, inj.EndAll())
}

func TestThreatsSortedOldestFirst(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)
	now := testNow()

	_, err := inj.InjectCyberAttack(g, "node-001", models.CyberSubtypeMalware, 0.5, 0, now.Add(2*time.Minute))
	require.NoError(t, err)
	_, err = inj.InjectCyberAttack(g, "node-002", models.CyberSubtypeMalware, 0.5, 0, now)
	require.NoError(t, err)
	_, err = inj.InjectCyberAttack(g, "node-003", models.CyberSubtypeMalware, 0.5, 0, now.Add(time.Minute))
	require.NoError(t, err)

	threats := inj.Threats()
	require.Len(t, threats, 3)
	assert.Equal(t, "node-002", threats[0].Target)
	assert.Equal(t, "node-003", threats[1].Target)
	assert.Equal(t, "node-001", threats[2].Target)
}

func TestThreatByID(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)

	threat, err := inj.InjectCyberAttack(g, "node-001", models.CyberSubtypeMalware, 0.5, 0, testNow())
	require.NoError(t, err)

	got, ok := inj.ThreatByID(threat.ID)
	require.True(t, ok)
	assert.Equal(t, threat.ID, got.ID)

	_, ok = inj.ThreatByID(uuid.New())
	assert.False(t, ok)
}

func TestResetDiscardsEverything(t *testing.T) {
	inj := newTestInjector(0)
	g := newTestGraph(t)

	_, err := inj.InjectCyberAttack(g, "node-001", models.CyberSubtypeMalware, 0.5, 0, testNow())
	require.NoError(t, err)

	inj.Reset()
	assert.Empty(t, inj.Threats())
}
