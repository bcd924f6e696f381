// Package twin owns the digital twin graph: the live set of infrastructure
// nodes and directed dependency edges, its deterministic construction, and
// the per-tick metric drift.
//
// The graph performs no locking of its own. All access is serialized by the
// simulation context, which owns the single exclusive lock.
package twin

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"twinguard-lab/internal/domain/models"
)

// Status thresholds. Status is a deterministic function of risk and health,
// never set ad hoc; isolated is sticky until explicitly cleared.
const (
	CriticalRiskThreshold  = 0.75
	DegradedRiskThreshold  = 0.45
	OfflineHealthThreshold = 0.05
)

// Cyber posture thresholds
const (
	compromisedTamperThreshold = 0.70
	warningTamperThreshold     = 0.35
	compromisedAuthFailures    = 8
	warningPacketLoss          = 0.30
)

// Graph is the single source of truth for node and edge state
type Graph struct {
	nodes map[string]*models.DigitalTwinNode
	edges map[string]*models.DependencyEdge
	out   map[string][]string // edge ids keyed by From
	in    map[string][]string // edge ids keyed by To
	order []string            // node ids in creation order, for deterministic iteration

	rng  *rand.Rand
	seed int64
}

// New builds a deterministic random topology. The same seed always produces
// the same graph, which is what makes scenario runs reproducible.
func New(nodeCount int, seed int64) (*Graph, error) {
	if nodeCount <= 0 {
		return nil, fmt.Errorf("%w: node count must be positive, got %d", models.ErrValidationFailed, nodeCount)
	}
	g := &Graph{
		nodes: make(map[string]*models.DigitalTwinNode, nodeCount),
		edges: make(map[string]*models.DependencyEdge),
		out:   make(map[string][]string),
		in:    make(map[string][]string),
		rng:   rand.New(rand.NewSource(seed)),
		seed:  seed,
	}
	g.generate(nodeCount)
	return g, nil
}

// Seed returns the seed the topology was generated from
func (g *Graph) Seed() int64 { return g.seed }

// Size returns the number of nodes
func (g *Graph) Size() int { return len(g.order) }

// Node returns the live node for in-core mutation. Callers must hold the
// simulation lock and must not retain the pointer past it.
func (g *Graph) Node(id string) (*models.DigitalTwinNode, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeIDs returns all node ids in creation order
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// Nodes returns deep copies of all nodes in creation order
func (g *Graph) Nodes() []*models.DigitalTwinNode {
	out := make([]*models.DigitalTwinNode, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id].Clone())
	}
	return out
}

// NodesByRegion returns deep copies of the nodes in a region
func (g *Graph) NodesByRegion(region string) []*models.DigitalTwinNode {
	var out []*models.DigitalTwinNode
	for _, id := range g.order {
		if n := g.nodes[id]; n.Region == region {
			out = append(out, n.Clone())
		}
	}
	return out
}

// NodesByCategory returns deep copies of the nodes in a category
func (g *Graph) NodesByCategory(category models.Category) []*models.DigitalTwinNode {
	var out []*models.DigitalTwinNode
	for _, id := range g.order {
		if n := g.nodes[id]; n.Category == category {
			out = append(out, n.Clone())
		}
	}
	return out
}

// CriticalNodes returns deep copies of nodes in critical or offline status
func (g *Graph) CriticalNodes() []*models.DigitalTwinNode {
	var out []*models.DigitalTwinNode
	for _, id := range g.order {
		if n := g.nodes[id]; n.Status == models.StatusCritical || n.Status == models.StatusOffline {
			out = append(out, n.Clone())
		}
	}
	return out
}

// CompromisedNodes returns deep copies of nodes with a compromised cyber posture
func (g *Graph) CompromisedNodes() []*models.DigitalTwinNode {
	var out []*models.DigitalTwinNode
	for _, id := range g.order {
		if n := g.nodes[id]; n.CyberStatus == models.CyberCompromised {
			out = append(out, n.Clone())
		}
	}
	return out
}

// Edges returns deep copies of all edges, ordered by id
func (g *Graph) Edges() []*models.DependencyEdge {
	ids := make([]string, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*models.DependencyEdge, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.edges[id].Clone())
	}
	return out
}

// Edge returns the live edge for in-core mutation
func (g *Graph) Edge(id string) (*models.DependencyEdge, bool) {
	e, ok := g.edges[id]
	return e, ok
}

// OutgoingEdges returns the live edges leaving a node, ordered by id.
// Failure effects flow along these edges to the node's dependents.
func (g *Graph) OutgoingEdges(nodeID string) []*models.DependencyEdge {
	return g.liveEdges(g.out[nodeID])
}

// IncomingEdges returns the live edges arriving at a node, ordered by id
func (g *Graph) IncomingEdges(nodeID string) []*models.DependencyEdge {
	return g.liveEdges(g.in[nodeID])
}

func (g *Graph) liveEdges(ids []string) []*models.DependencyEdge {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	out := make([]*models.DependencyEdge, 0, len(sorted))
	for _, id := range sorted {
		out = append(out, g.edges[id])
	}
	return out
}

// Neighbors returns the ids of all nodes connected to the given node
func (g *Graph) Neighbors(nodeID string) ([]string, error) {
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	return append([]string(nil), n.Connections...), nil
}

// Dependencies returns the ids of the nodes the given node depends on
func (g *Graph) Dependencies(nodeID string) ([]string, error) {
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	return append([]string(nil), n.Dependencies...), nil
}

// Dependents returns the ids of the nodes depending on the given node
func (g *Graph) Dependents(nodeID string) ([]string, error) {
	n, ok := g.nodes[nodeID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	return append([]string(nil), n.Dependents...), nil
}

// SetEdgesActive flips every edge touching the node; used by isolate and
// reroute mitigations. Returns the number of edges changed.
func (g *Graph) SetEdgesActive(nodeID string, active bool) int {
	changed := 0
	for _, id := range append(append([]string(nil), g.out[nodeID]...), g.in[nodeID]...) {
		e := g.edges[id]
		if e.IsActive != active {
			e.IsActive = active
			changed++
		}
	}
	return changed
}

// ActivateBackupEdges enables inactive backup edges arriving at the node,
// the reroute lever. Returns the number of edges activated.
func (g *Graph) ActivateBackupEdges(nodeID string) int {
	changed := 0
	for _, e := range g.IncomingEdges(nodeID) {
		if e.Type == models.EdgeBackup && !e.IsActive {
			e.IsActive = true
			changed++
		}
	}
	return changed
}

// RefreshStatus re-derives both status fields from current metrics.
// Isolated states are sticky and survive the refresh.
func (g *Graph) RefreshStatus(n *models.DigitalTwinNode) {
	if n.Status != models.StatusIsolated {
		switch {
		case n.Health < OfflineHealthThreshold:
			n.Status = models.StatusOffline
		case n.RiskScore > CriticalRiskThreshold:
			n.Status = models.StatusCritical
		case n.RiskScore > DegradedRiskThreshold:
			n.Status = models.StatusDegraded
		default:
			n.Status = models.StatusOnline
		}
	}
	if n.CyberStatus != models.CyberIsolated {
		switch {
		case n.TamperSignal > compromisedTamperThreshold || n.FailedAuthCount >= compromisedAuthFailures:
			n.CyberStatus = models.CyberCompromised
		case n.TamperSignal > warningTamperThreshold || n.PacketLoss > warningPacketLoss:
			n.CyberStatus = models.CyberWarning
		default:
			n.CyberStatus = models.CyberSecure
		}
	}
}

// ClearIsolation releases a sticky isolated status so thresholds apply again
func (g *Graph) ClearIsolation(nodeID string) error {
	n, ok := g.nodes[nodeID]
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrNodeNotFound, nodeID)
	}
	if n.Status == models.StatusIsolated {
		n.Status = models.StatusOnline
	}
	if n.CyberStatus == models.CyberIsolated {
		n.CyberStatus = models.CyberSecure
	}
	g.SetEdgesActive(nodeID, true)
	g.RefreshStatus(n)
	return nil
}

// addNode registers a node; topology generation only
func (g *Graph) addNode(n *models.DigitalTwinNode) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

// addEdge registers a directed edge and keeps the dependency/dependent
// lists mutual inverses.
func (g *Graph) addEdge(e *models.DependencyEdge) {
	g.edges[e.ID] = e
	g.out[e.From] = append(g.out[e.From], e.ID)
	g.in[e.To] = append(g.in[e.To], e.ID)

	from := g.nodes[e.From]
	to := g.nodes[e.To]
	if !contains(to.Dependencies, e.From) {
		to.Dependencies = append(to.Dependencies, e.From)
	}
	if !contains(from.Dependents, e.To) {
		from.Dependents = append(from.Dependents, e.To)
	}
	if !contains(from.Connections, e.To) {
		from.Connections = append(from.Connections, e.To)
	}
	if !contains(to.Connections, e.From) {
		to.Connections = append(to.Connections, e.From)
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 { return clamp(v, 0, 1) }

// touch stamps a node's update time
func touch(n *models.DigitalTwinNode, now time.Time) {
	n.UpdatedAt = now
}
