package models

import (
	"time"

	"github.com/google/uuid"
)

// ActionType is a closed set of mitigating actions. Dispatch over it is
// table-driven so adding an action is a compile-time-checked change.
type ActionType string

const (
	ActionIsolate         ActionType = "isolate"
	ActionLoadShed        ActionType = "load_shed"
	ActionReroute         ActionType = "reroute"
	ActionActivateBackup  ActionType = "activate_backup"
	ActionEnableCooling   ActionType = "enable_cooling"
	ActionCyberLockdown   ActionType = "cyber_lockdown"
	ActionCredentialReset ActionType = "credential_reset"
	ActionDispatchCrew    ActionType = "dispatch_crew"
)

// ActionTypes lists all mitigation actions in a stable order
func ActionTypes() []ActionType {
	return []ActionType{
		ActionIsolate,
		ActionLoadShed,
		ActionReroute,
		ActionActivateBackup,
		ActionEnableCooling,
		ActionCyberLockdown,
		ActionCredentialReset,
		ActionDispatchCrew,
	}
}

// Priority orders recommendations for the operator
type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// PriorityRank maps a priority to a sortable rank, lowest first
func PriorityRank(p Priority) int {
	switch p {
	case PriorityImmediate:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

// RecommendationStatus is the lifecycle state of a recommendation.
// completed and failed are terminal; a recommendation is never resurrected.
type RecommendationStatus string

const (
	RecommendationPending   RecommendationStatus = "pending"
	RecommendationApproved  RecommendationStatus = "approved"
	RecommendationExecuting RecommendationStatus = "executing"
	RecommendationCompleted RecommendationStatus = "completed"
	RecommendationFailed    RecommendationStatus = "failed"
)

// Terminal reports whether the status is final
func (s RecommendationStatus) Terminal() bool {
	return s == RecommendationCompleted || s == RecommendationFailed
}

// MitigationRecommendation is a ranked, possibly-automatable action proposal
// for a node, optionally tied to the prediction or incident that produced it.
type MitigationRecommendation struct {
	ID           uuid.UUID  `json:"id"`
	NodeID       string     `json:"node_id"`
	PredictionID *uuid.UUID `json:"prediction_id,omitempty"`

	Action                ActionType `json:"action"`
	Priority              Priority   `json:"priority"`
	ExpectedRiskReduction float64    `json:"expected_risk_reduction"`
	EstimatedTimeMinutes  int        `json:"estimated_time_minutes"`
	RequiresApproval      bool       `json:"requires_approval"`
	Automatable           bool       `json:"automatable"`

	// DependsOn is advisory ordering only; the executor does not enforce it
	DependsOn []ActionType `json:"depends_on,omitempty"`

	Status      RecommendationStatus `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
}

// Clone returns a copy safe to hand out past the simulation lock
func (r *MitigationRecommendation) Clone() *MitigationRecommendation {
	c := *r
	c.DependsOn = append([]ActionType(nil), r.DependsOn...)
	if r.PredictionID != nil {
		id := *r.PredictionID
		c.PredictionID = &id
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// MitigationResult records the effect of one executed action
type MitigationResult struct {
	NodeID     string     `json:"node_id"`
	Action     ActionType `json:"action"`
	RiskBefore float64    `json:"risk_before"`
	RiskAfter  float64    `json:"risk_after"`
	ExecutedAt time.Time  `json:"executed_at"`
}

// BatchMitigationResult aggregates a fold over single-node executions
type BatchMitigationResult struct {
	Succeeded int                `json:"succeeded"`
	Failed    int                `json:"failed"`
	Results   []MitigationResult `json:"results"`
	Errors    []string           `json:"errors,omitempty"`
}
