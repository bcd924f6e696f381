// Package threat injects time-bounded shocks into the twin: cyber attacks
// against a node, physical failures, and region-wide load spikes. An active
// threat contributes drift bias to its affected nodes every tick; when it
// expires only the bias stops, and the nodes recover through normal metric
// decay.
package threat

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/internal/twin"
	"twinguard-lab/pkg/logger"
)

var cyberSubtypes = map[models.CyberAttackSubtype]bool{
	models.CyberSubtypeMalware:            true,
	models.CyberSubtypeDenialOfService:    true,
	models.CyberSubtypeCredentialStuffing: true,
	models.CyberSubtypeTampering:          true,
}

// Injector owns the threat store. No locking of its own; the simulation
// context serializes access.
type Injector struct {
	logger          *logger.Logger
	defaultDuration time.Duration
	maxActive       int

	threats map[uuid.UUID]*models.ThreatSimulation
}

// NewInjector creates a threat injector. maxActive caps concurrently
// active threats; zero means no cap.
func NewInjector(defaultDuration time.Duration, maxActive int, log *logger.Logger) *Injector {
	return &Injector{
		logger:          log.WithComponent("threat"),
		defaultDuration: defaultDuration,
		maxActive:       maxActive,
		threats:         make(map[uuid.UUID]*models.ThreatSimulation),
	}
}

// Reset discards all threats
func (i *Injector) Reset() {
	i.threats = make(map[uuid.UUID]*models.ThreatSimulation)
}

// InjectCyberAttack starts a cyber attack against one node. The node takes
// an immediate severity-proportional hit to its cyber metrics; the rest of
// the damage accrues through tick bias while the attack stays active.
func (i *Injector) InjectCyberAttack(g *twin.Graph, targetID string, subtype models.CyberAttackSubtype, severity float64, duration time.Duration, now time.Time) (*models.ThreatSimulation, error) {
	if !cyberSubtypes[subtype] {
		return nil, fmt.Errorf("%w: unknown cyber attack subtype %q", models.ErrValidationFailed, subtype)
	}
	if err := i.validate(severity); err != nil {
		return nil, err
	}

	t := i.newThreat(models.ThreatCyberAttack, string(subtype), severity, duration, now)
	t.Target = targetID
	log := i.logger.WithThreatID(t.ID.String())

	// An unknown target is accepted but scopes the attack to nothing:
	// no footprint, no bias, just an entry in the threat store.
	if node, ok := g.Node(targetID); ok {
		t.Region = node.Region
		t.AffectedNodes = []string{targetID}
		i.perturbCyber(node, subtype, severity, now)
		g.RefreshStatus(node)
	} else {
		log.Warn().Str("target", targetID).Msg("unknown target, cyber attack affects no nodes")
	}
	i.threats[t.ID] = t

	log.Info().
		Str("target", targetID).
		Str("subtype", string(subtype)).
		Float64("severity", severity).
		Int("affected", len(t.AffectedNodes)).
		Msg("cyber attack injected")
	return t.Clone(), nil
}

// InjectThreat starts a physical failure against one node or a load spike
// across a region. Physical failures need a target; load spikes need a
// known region.
func (i *Injector) InjectThreat(g *twin.Graph, threatType models.ThreatType, targetID, region string, severity float64, duration time.Duration, now time.Time) (*models.ThreatSimulation, error) {
	if err := i.validate(severity); err != nil {
		return nil, err
	}

	t := i.newThreat(threatType, "", severity, duration, now)
	log := i.logger.WithThreatID(t.ID.String())

	switch threatType {
	case models.ThreatPhysicalFailure:
		t.Target = targetID
		// Same accept-as-no-op rule as cyber attacks: an unknown target
		// leaves the threat scoped to no nodes.
		if node, ok := g.Node(targetID); ok {
			t.Region = node.Region
			t.AffectedNodes = []string{targetID}
			i.perturbPhysical(node, severity, now)
			g.RefreshStatus(node)
		} else {
			log.Warn().Str("target", targetID).Msg("unknown target, threat affects no nodes")
		}

	case models.ThreatLoadSpike:
		if !models.KnownRegion(region) {
			return nil, fmt.Errorf("%w: unknown region %q", models.ErrValidationFailed, region)
		}
		t.Region = region
		for _, node := range regionLiveNodes(g, region) {
			t.AffectedNodes = append(t.AffectedNodes, node.ID)
			// Region-wide pressure lands softer per node than a direct hit
			i.perturbLoad(node, severity*0.5, now)
			g.RefreshStatus(node)
		}

	default:
		return nil, fmt.Errorf("%w: unknown threat type %q", models.ErrValidationFailed, threatType)
	}

	i.threats[t.ID] = t
	log.Info().
		Str("type", string(threatType)).
		Str("target", t.Target).
		Str("region", t.Region).
		Float64("severity", severity).
		Int("affected", len(t.AffectedNodes)).
		Msg("threat injected")
	return t.Clone(), nil
}

func (i *Injector) newThreat(threatType models.ThreatType, subtype string, severity float64, duration time.Duration, now time.Time) *models.ThreatSimulation {
	if duration <= 0 {
		duration = i.defaultDuration
	}
	return &models.ThreatSimulation{
		ID:              uuid.New(),
		Type:            threatType,
		Subtype:         subtype,
		Severity:        severity,
		Active:          true,
		StartedAt:       now,
		EndsAt:          now.Add(duration),
		PropagationRate: 0.3 + severity*0.5,
	}
}

func (i *Injector) validate(severity float64) error {
	if severity <= 0 || severity > 1 {
		return fmt.Errorf("%w: severity must be in (0,1], got %.3f", models.ErrValidationFailed, severity)
	}
	if i.maxActive > 0 && i.activeCount() >= i.maxActive {
		return fmt.Errorf("%w: active threat limit %d reached", models.ErrInvalidOperation, i.maxActive)
	}
	return nil
}

// perturbCyber applies the immediate footprint of a cyber attack
func (i *Injector) perturbCyber(n *models.DigitalTwinNode, subtype models.CyberAttackSubtype, severity float64, now time.Time) {
	switch subtype {
	case models.CyberSubtypeMalware:
		n.TamperSignal = clamp01(n.TamperSignal + severity*0.4)
		n.CyberHealth = clamp01(n.CyberHealth - severity*0.3)
	case models.CyberSubtypeDenialOfService:
		n.PacketLoss = clamp01(n.PacketLoss + severity*0.4)
		n.LatencyMS = clampF(n.LatencyMS+severity*600, 1, 2000)
	case models.CyberSubtypeCredentialStuffing:
		n.FailedAuthCount += int(severity * 12)
		n.LastAuthTime = now
	case models.CyberSubtypeTampering:
		n.TamperSignal = clamp01(n.TamperSignal + severity*0.6)
	}
	n.UpdatedAt = now
}

// perturbPhysical applies the immediate footprint of a physical failure
func (i *Injector) perturbPhysical(n *models.DigitalTwinNode, severity float64, now time.Time) {
	n.Health = clamp01(n.Health - severity*0.35)
	n.Temperature = clampF(n.Temperature+severity*20, 10, n.ThermalLimit*1.5)
	n.Voltage = clampF(n.Voltage-severity*0.1, 0.5, 1.2)
	n.UpdatedAt = now
}

// perturbLoad applies the immediate footprint of a load spike
func (i *Injector) perturbLoad(n *models.DigitalTwinNode, severity float64, now time.Time) {
	n.LoadRatio = clamp01(n.LoadRatio + severity*0.3)
	n.CurrentLoad = n.LoadRatio * n.RatedCapacity
	n.UpdatedAt = now
}

// BiasFor sums the drift pressure every active threat puts on one node.
// Used by the tick loop.
func (i *Injector) BiasFor(nodeID, region string) twin.Bias {
	var bias twin.Bias
	for _, t := range i.threats {
		if !t.Active || !i.affects(t, nodeID, region) {
			continue
		}
		pressure := t.Severity * t.PropagationRate
		switch t.Type {
		case models.ThreatCyberAttack:
			bias.Cyber += pressure
		case models.ThreatPhysicalFailure:
			bias.Physical += pressure
		case models.ThreatLoadSpike:
			bias.Physical += pressure * 0.6
		}
	}
	bias.Physical = clamp01(bias.Physical)
	bias.Cyber = clamp01(bias.Cyber)
	return bias
}

func (i *Injector) affects(t *models.ThreatSimulation, nodeID, region string) bool {
	if t.Target != "" {
		return t.Target == nodeID
	}
	return t.Region == region
}

// RegionExposure is the environmental risk pressure on a region in [0,1]:
// the combined severity of the active threats touching it.
func (i *Injector) RegionExposure(region string) float64 {
	exposure := 0.0
	for _, t := range i.threats {
		if t.Active && t.Region == region {
			exposure += t.Severity * 0.5
		}
	}
	return clamp01(exposure)
}

// ExpireDue deactivates threats whose window has elapsed and returns them.
// Only the bias stops; metric damage already done stays and recovers
// through tick decay.
func (i *Injector) ExpireDue(now time.Time) []*models.ThreatSimulation {
	var expired []*models.ThreatSimulation
	for _, t := range i.threats {
		if t.Active && t.Expired(now) {
			t.Active = false
			expired = append(expired, t.Clone())
			i.logger.WithThreatID(t.ID.String()).Info().Str("type", string(t.Type)).Msg("threat expired")
		}
	}
	return expired
}

// EndThreat deactivates one threat immediately
func (i *Injector) EndThreat(id uuid.UUID) (*models.ThreatSimulation, error) {
	t, ok := i.threats[id]
	if !ok {
		return nil, fmt.Errorf("%w: threat %s not found", models.ErrInvalidOperation, id)
	}
	if t.Active {
		t.Active = false
		i.logger.WithThreatID(id.String()).Info().Msg("threat ended")
	}
	return t.Clone(), nil
}

// EndAll deactivates every active threat and returns how many were active
func (i *Injector) EndAll() int {
	ended := 0
	for _, t := range i.threats {
		if t.Active {
			t.Active = false
			ended++
		}
	}
	if ended > 0 {
		i.logger.Info().Int("count", ended).Msg("all threats ended")
	}
	return ended
}

// ActiveThreats returns copies of the active threats, oldest first
func (i *Injector) ActiveThreats() []*models.ThreatSimulation {
	var out []*models.ThreatSimulation
	for _, t := range i.threats {
		if t.Active {
			out = append(out, t.Clone())
		}
	}
	sortThreats(out)
	return out
}

// Threats returns copies of every threat, active or not, oldest first
func (i *Injector) Threats() []*models.ThreatSimulation {
	out := make([]*models.ThreatSimulation, 0, len(i.threats))
	for _, t := range i.threats {
		out = append(out, t.Clone())
	}
	sortThreats(out)
	return out
}

// ThreatByID returns a copy of one threat
func (i *Injector) ThreatByID(id uuid.UUID) (*models.ThreatSimulation, bool) {
	t, ok := i.threats[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

func (i *Injector) activeCount() int {
	n := 0
	for _, t := range i.threats {
		if t.Active {
			n++
		}
	}
	return n
}

// regionLiveNodes returns the live (mutable) nodes of a region
func regionLiveNodes(g *twin.Graph, region string) []*models.DigitalTwinNode {
	var out []*models.DigitalTwinNode
	for _, id := range g.NodeIDs() {
		if n, ok := g.Node(id); ok && n.Region == region {
			out = append(out, n)
		}
	}
	return out
}

func sortThreats(ts []*models.ThreatSimulation) {
	sort.Slice(ts, func(a, b int) bool {
		if !ts[a].StartedAt.Equal(ts[b].StartedAt) {
			return ts[a].StartedAt.Before(ts[b].StartedAt)
		}
		return ts[a].ID.String() < ts[b].ID.String()
	})
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
