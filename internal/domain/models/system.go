package models

import (
	"time"
)

// SystemState is the read-only aggregate view of the twin, published once
// per tick and safe to request in any orchestrator state.
type SystemState struct {
	TotalNodes        int                 `json:"total_nodes"`
	StatusCounts      map[NodeStatus]int  `json:"status_counts"`
	CyberStatusCounts map[CyberStatus]int `json:"cyber_status_counts"`

	AverageHealth float64 `json:"average_health"`
	AverageRisk   float64 `json:"average_risk"`
	MaxRisk       float64 `json:"max_risk"`
	MaxRiskNodeID string  `json:"max_risk_node_id,omitempty"`

	ActiveThreats          int `json:"active_threats"`
	ActivePredictions      int `json:"active_predictions"`
	PendingRecommendations int `json:"pending_recommendations"`

	Running   bool      `json:"running"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"timestamp"`
}

// CascadeResult is the outcome of a mutative cascade trigger
type CascadeResult struct {
	OriginID        string    `json:"origin_id"`
	Severity        float64   `json:"severity"`
	AffectedNodes   []string  `json:"affected_nodes"`
	ImpactScore     float64   `json:"impact_score"`
	PropagationPath []string  `json:"propagation_path"`
	TriggeredAt     time.Time `json:"triggered_at"`
}
