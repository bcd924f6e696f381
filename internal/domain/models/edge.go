package models

// EdgeType classifies what flows across a dependency edge
type EdgeType string

const (
	EdgePower   EdgeType = "power"
	EdgeData    EdgeType = "data"
	EdgeControl EdgeType = "control"
	EdgeBackup  EdgeType = "backup"
	EdgeThermal EdgeType = "thermal"
)

// DependencyEdge is a directed edge From -> To meaning To depends on From.
// Weight is the fraction of failure severity propagated along the edge.
// An inactive edge models an isolated or rerouted link and halts propagation.
type DependencyEdge struct {
	ID        string   `json:"id"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Type      EdgeType `json:"type"`
	Weight    float64  `json:"weight"` // [0,1]
	LatencyMS float64  `json:"latency_ms"`
	Bandwidth float64  `json:"bandwidth"`
	IsActive  bool     `json:"is_active"`
}

// Clone returns a copy safe to hand out past the simulation lock
func (e *DependencyEdge) Clone() *DependencyEdge {
	c := *e
	return &c
}
