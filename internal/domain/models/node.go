package models

import (
	"time"
)

// NodeType identifies the kind of infrastructure asset a twin node models
type NodeType string

const (
	NodeTypePowerPlant      NodeType = "power_plant"
	NodeTypeSubstation      NodeType = "substation"
	NodeTypeTransformer     NodeType = "transformer"
	NodeTypeCellTower       NodeType = "cell_tower"
	NodeTypeSwitchingCenter NodeType = "switching_center"
	NodeTypeFiberHub        NodeType = "fiber_hub"
	NodeTypePumpingStation  NodeType = "pumping_station"
	NodeTypeTreatmentPlant  NodeType = "treatment_plant"
	NodeTypeReservoir       NodeType = "reservoir"
	NodeTypeDataCenter      NodeType = "data_center"
	NodeTypeEdgePOP         NodeType = "edge_pop"
)

// Category groups node types by infrastructure sector
type Category string

const (
	CategoryPower      Category = "power"
	CategoryTelecom    Category = "telecom"
	CategoryWater      Category = "water"
	CategoryDataCenter Category = "datacenter"
)

// Categories lists all known categories in a stable order
func Categories() []Category {
	return []Category{CategoryPower, CategoryTelecom, CategoryWater, CategoryDataCenter}
}

// Regions lists the regions a twin can be generated over, in a stable order
func Regions() []string {
	return []string{"north", "south", "east", "west", "central"}
}

// KnownRegion reports whether the region is one the twin generates nodes in
func KnownRegion(region string) bool {
	for _, r := range Regions() {
		if r == region {
			return true
		}
	}
	return false
}

// NodeStatus is the operational state derived from risk/health thresholds.
// It is never set ad hoc; isolated is sticky until explicitly cleared.
type NodeStatus string

const (
	StatusOnline   NodeStatus = "online"
	StatusDegraded NodeStatus = "degraded"
	StatusCritical NodeStatus = "critical"
	StatusOffline  NodeStatus = "offline"
	StatusIsolated NodeStatus = "isolated"
)

// CyberStatus is the security posture of a node
type CyberStatus string

const (
	CyberSecure      CyberStatus = "secure"
	CyberWarning     CyberStatus = "warning"
	CyberCompromised CyberStatus = "compromised"
	CyberIsolated    CyberStatus = "isolated"
)

// Coordinates is a geographic position for map display
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// DigitalTwinNode is the live state of one simulated infrastructure asset.
// The twin graph is the single source of truth for this state; all mutation
// goes through the simulation context.
type DigitalTwinNode struct {
	// Identity
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Type        NodeType    `json:"type"`
	Category    Category    `json:"category"`
	Region      string      `json:"region"`
	Coordinates Coordinates `json:"coordinates"`

	// Physical metrics
	RiskScore   float64 `json:"risk_score"` // [0,1]
	Health      float64 `json:"health"`     // [0,1]
	LoadRatio   float64 `json:"load_ratio"` // [0,1]
	Temperature float64 `json:"temperature"`
	PowerDraw   float64 `json:"power_draw"`
	Voltage     float64 `json:"voltage"`   // per-unit, nominal 1.0
	Frequency   float64 `json:"frequency"` // Hz, nominal 50.0

	// Cyber metrics
	CyberHealth     float64   `json:"cyber_health"` // [0,1]
	PacketLoss      float64   `json:"packet_loss"`  // [0,1]
	LatencyMS       float64   `json:"latency_ms"`
	TamperSignal    float64   `json:"tamper_signal"` // [0,1]
	LastAuthTime    time.Time `json:"last_auth_time"`
	FailedAuthCount int       `json:"failed_auth_count"`

	// Operational proxy: accumulated maintenance backlog, [0,1]
	MaintenanceDebt float64 `json:"maintenance_debt"`

	// Status
	Status      NodeStatus  `json:"status"`
	CyberStatus CyberStatus `json:"cyber_status"`

	// Topology (node id lists; Dependencies/Dependents are mutual inverses)
	Connections  []string `json:"connections"`
	Dependencies []string `json:"dependencies"`
	Dependents   []string `json:"dependents"`

	// Capacity
	RatedCapacity float64 `json:"rated_capacity"`
	CurrentLoad   float64 `json:"current_load"`
	ThermalLimit  float64 `json:"thermal_limit"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy safe to hand out past the simulation lock
func (n *DigitalTwinNode) Clone() *DigitalTwinNode {
	c := *n
	c.Connections = append([]string(nil), n.Connections...)
	c.Dependencies = append([]string(nil), n.Dependencies...)
	c.Dependents = append([]string(nil), n.Dependents...)
	return &c
}

// IsIsolated reports whether the node is held out of the dependency graph
func (n *DigitalTwinNode) IsIsolated() bool {
	return n.Status == StatusIsolated
}
