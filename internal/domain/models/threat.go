package models

import (
	"time"

	"github.com/google/uuid"
)

// ThreatType is the kind of exogenous shock injected into the twin
type ThreatType string

const (
	ThreatCyberAttack     ThreatType = "cyber_attack"
	ThreatPhysicalFailure ThreatType = "physical_failure"
	ThreatLoadSpike       ThreatType = "load_spike"
)

// CyberAttackSubtype refines a cyber_attack threat
type CyberAttackSubtype string

const (
	CyberSubtypeMalware            CyberAttackSubtype = "malware"
	CyberSubtypeDenialOfService    CyberAttackSubtype = "denial_of_service"
	CyberSubtypeCredentialStuffing CyberAttackSubtype = "credential_stuffing"
	CyberSubtypeTampering          CyberAttackSubtype = "tampering"
)

// ThreatSimulation is a time-bounded perturbation applied to a subset of
// nodes. While active it biases node metric drift; expiry reverts the
// injected bias but never any cascade damage it caused.
type ThreatSimulation struct {
	ID       uuid.UUID  `json:"id"`
	Type     ThreatType `json:"type"`
	Subtype  string     `json:"subtype,omitempty"`
	Severity float64    `json:"severity"` // [0,1]

	// Target is a node id; empty means the threat is scoped by Region
	Target string `json:"target,omitempty"`
	Region string `json:"region,omitempty"`

	Active    bool      `json:"active"`
	StartedAt time.Time `json:"started_at"`
	EndsAt    time.Time `json:"ends_at"`

	PropagationRate float64  `json:"propagation_rate"`
	AffectedNodes   []string `json:"affected_nodes"`
}

// Clone returns a copy safe to hand out past the simulation lock
func (t *ThreatSimulation) Clone() *ThreatSimulation {
	c := *t
	c.AffectedNodes = append([]string(nil), t.AffectedNodes...)
	return &c
}

// Expired reports whether the threat's window has elapsed
func (t *ThreatSimulation) Expired(now time.Time) bool {
	return now.After(t.EndsAt)
}
