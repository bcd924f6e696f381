package streaming

import (
	"time"

	"github.com/google/uuid"

	"twinguard-lab/internal/domain/models"
)

// EventType represents the type of simulation event
type EventType string

const (
	EventTypeStateUpdate        EventType = "state_update"
	EventTypeThreatStarted      EventType = "threat_started"
	EventTypeThreatExpired      EventType = "threat_expired"
	EventTypeCascadeTriggered   EventType = "cascade_triggered"
	EventTypePredictionCreated  EventType = "prediction_created"
	EventTypeMitigationExecuted EventType = "mitigation_executed"
)

// Event is one real-time simulation update. Exactly one payload field is
// set, matching the event type.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Routing fields, denormalized from the payload
	NodeID   string  `json:"node_id,omitempty"`
	Region   string  `json:"region,omitempty"`
	Severity float64 `json:"severity,omitempty"`

	State      *models.SystemState        `json:"state,omitempty"`
	Threat     *models.ThreatSimulation   `json:"threat,omitempty"`
	Cascade    *models.CascadeResult      `json:"cascade,omitempty"`
	Prediction *models.EnhancedPrediction `json:"prediction,omitempty"`
	Mitigation *models.MitigationResult   `json:"mitigation,omitempty"`
}

func newEvent(eventType EventType) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// NewStateEvent wraps the per-tick aggregate state
func NewStateEvent(state *models.SystemState) *Event {
	e := newEvent(EventTypeStateUpdate)
	e.Severity = state.MaxRisk
	e.State = state
	return e
}

// NewThreatEvent wraps a threat lifecycle change
func NewThreatEvent(eventType EventType, t *models.ThreatSimulation) *Event {
	e := newEvent(eventType)
	e.NodeID = t.Target
	e.Region = t.Region
	e.Severity = t.Severity
	e.Threat = t
	return e
}

// NewCascadeEvent wraps a triggered cascade
func NewCascadeEvent(r *models.CascadeResult) *Event {
	e := newEvent(EventTypeCascadeTriggered)
	e.NodeID = r.OriginID
	e.Severity = r.Severity
	e.Cascade = r
	return e
}

// NewPredictionEvent wraps a newly generated failure prediction
func NewPredictionEvent(p *models.EnhancedPrediction) *Event {
	e := newEvent(EventTypePredictionCreated)
	e.NodeID = p.NodeID
	e.Severity = p.Severity
	e.Prediction = p
	return e
}

// NewMitigationEvent wraps an executed mitigation
func NewMitigationEvent(r *models.MitigationResult) *Event {
	e := newEvent(EventTypeMitigationExecuted)
	e.NodeID = r.NodeID
	e.Severity = r.RiskBefore
	e.Mitigation = r
	return e
}

// Subscription represents a client's filtering preferences. A nil
// subscription receives everything except state updates; those are the
// per-tick firehose and stay opt-in.
type Subscription struct {
	// Filter by event types (empty = all)
	Types []EventType `json:"types,omitempty"`

	// Filter by regions (empty = all)
	Regions []string `json:"regions,omitempty"`

	// Filter by node ids (empty = all)
	NodeIDs []string `json:"node_ids,omitempty"`

	// Drop events below this severity
	MinSeverity float64 `json:"min_severity,omitempty"`

	// Include per-tick state updates
	IncludeState bool `json:"include_state,omitempty"`
}

// Matches checks if an event passes the subscription filters
func (s *Subscription) Matches(event *Event) bool {
	if event.Type == EventTypeStateUpdate {
		return s != nil && s.IncludeState
	}
	if s == nil {
		return true
	}

	if len(s.Types) > 0 {
		found := false
		for _, t := range s.Types {
			if t == event.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(s.Regions) > 0 && event.Region != "" {
		found := false
		for _, r := range s.Regions {
			if r == event.Region {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(s.NodeIDs) > 0 && event.NodeID != "" {
		found := false
		for _, id := range s.NodeIDs {
			if id == event.NodeID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if event.Severity < s.MinSeverity {
		return false
	}

	return true
}
