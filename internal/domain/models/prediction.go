package models

import (
	"time"

	"github.com/google/uuid"
)

// FailureType is the dominant failure mode a prediction forecasts.
// It is classified from the largest weighted risk component.
type FailureType string

const (
	FailureOverload       FailureType = "overload"
	FailureCyberIntrusion FailureType = "cyber_intrusion"
	FailureEquipmentWear  FailureType = "equipment_failure"
	FailureEnvironmental  FailureType = "environmental_stress"
	FailureCascade        FailureType = "cascade_failure"
)

// FailureTypes lists all failure modes in a stable order
func FailureTypes() []FailureType {
	return []FailureType{
		FailureOverload,
		FailureCyberIntrusion,
		FailureEquipmentWear,
		FailureEnvironmental,
		FailureCascade,
	}
}

// PredictionStatus is the lifecycle state of a prediction
type PredictionStatus string

const (
	PredictionActive    PredictionStatus = "active"
	PredictionMitigated PredictionStatus = "mitigated"
	PredictionExpired   PredictionStatus = "expired"
	PredictionOccurred  PredictionStatus = "occurred"
)

// Resolved reports whether the prediction has reached a terminal state
func (s PredictionStatus) Resolved() bool {
	return s == PredictionMitigated || s == PredictionExpired || s == PredictionOccurred
}

// PredictionReasoning is the structured explanation attached to a prediction
type PredictionReasoning struct {
	Summary string   `json:"summary"`
	Signals []string `json:"signals,omitempty"`
}

// EnhancedPrediction is a time-bounded forecast of a specific failure mode
// for a node, with tracked outcome accuracy. Once resolved it is immutable.
type EnhancedPrediction struct {
	ID     uuid.UUID   `json:"id"`
	NodeID string      `json:"node_id"`
	Type   FailureType `json:"type"`

	Probability  float64 `json:"probability"` // [0,1]
	Confidence   float64 `json:"confidence"`  // [0,1]
	HoursToEvent float64 `json:"hours_to_event"`
	Severity     float64 `json:"severity"` // [0,1]

	Risk RiskScore `json:"risk"`

	Reasoning           PredictionReasoning `json:"reasoning"`
	ContributingFactors []string            `json:"contributing_factors,omitempty"`
	SuggestedActions    []ActionType        `json:"suggested_actions,omitempty"`
	CascadePath         []string            `json:"cascade_path,omitempty"`

	Status        PredictionStatus `json:"status"`
	CreatedAt     time.Time        `json:"created_at"`
	PredictedTime time.Time        `json:"predicted_time"`

	// Outcome bookkeeping, set once when the prediction resolves
	WasAccurate   *bool      `json:"was_accurate,omitempty"`
	ActualOutcome string     `json:"actual_outcome,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}

// Clone returns a copy safe to hand out past the simulation lock
func (p *EnhancedPrediction) Clone() *EnhancedPrediction {
	c := *p
	c.Reasoning.Signals = append([]string(nil), p.Reasoning.Signals...)
	c.ContributingFactors = append([]string(nil), p.ContributingFactors...)
	c.SuggestedActions = append([]ActionType(nil), p.SuggestedActions...)
	c.CascadePath = append([]string(nil), p.CascadePath...)
	if p.WasAccurate != nil {
		v := *p.WasAccurate
		c.WasAccurate = &v
	}
	if p.ResolvedAt != nil {
		t := *p.ResolvedAt
		c.ResolvedAt = &t
	}
	return &c
}

// TypeAccuracy are the running outcome counters for one failure type
type TypeAccuracy struct {
	Total    int     `json:"total"`
	Accurate int     `json:"accurate"`
	Accuracy float64 `json:"accuracy"`
}

// AccuracyStats are the running outcome counters across all resolved
// predictions, partitioned by failure type. Counters are purely additive;
// accurate <= total always, accuracy = accurate/total (0 when total is 0).
type AccuracyStats struct {
	Total    int                          `json:"total"`
	Accurate int                          `json:"accurate"`
	Accuracy float64                      `json:"accuracy"`
	Occurred int                          `json:"occurred"`
	Expired  int                          `json:"expired"`
	ByType   map[FailureType]TypeAccuracy `json:"by_type"`
}
