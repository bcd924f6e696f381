package streaming

import (
	"context"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/pkg/logger"
)

// EventBusPublisher adapts the event bus and WebSocket hub to the
// simulation's publisher interface. Publishing happens while the
// simulation lock is held, so events are queued here and drained by a
// background worker; a full queue drops rather than blocks.
type EventBusPublisher struct {
	eventBus *EventBus
	wsHub    *WebSocketHub
	logger   *logger.Logger

	queue chan *Event
}

// NewEventBusPublisher creates a new publisher adapter. Call Run to start
// the drain worker.
func NewEventBusPublisher(eventBus *EventBus, wsHub *WebSocketHub, log *logger.Logger) *EventBusPublisher {
	return &EventBusPublisher{
		eventBus: eventBus,
		wsHub:    wsHub,
		logger:   log.WithComponent("publisher"),
		queue:    make(chan *Event, 1024),
	}
}

// Run drains the queue until the context is cancelled
func (p *EventBusPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.queue:
			if p.eventBus != nil {
				if err := p.eventBus.Publish(ctx, event); err != nil {
					p.logger.Warn().Err(err).Str("event_type", string(event.Type)).Msg("event publish failed")
				}
			}
			if p.wsHub != nil {
				p.wsHub.BroadcastEvent(event)
			}
		}
	}
}

func (p *EventBusPublisher) enqueue(event *Event) {
	select {
	case p.queue <- event:
	default:
		p.logger.Warn().Str("event_type", string(event.Type)).Msg("publish queue full, dropping event")
	}
}

// PublishState queues the per-tick aggregate state
func (p *EventBusPublisher) PublishState(state *models.SystemState) {
	p.enqueue(NewStateEvent(state))
}

// PublishThreatStarted queues a threat injection event
func (p *EventBusPublisher) PublishThreatStarted(t *models.ThreatSimulation) {
	p.enqueue(NewThreatEvent(EventTypeThreatStarted, t))
}

// PublishThreatExpired queues a threat expiry event
func (p *EventBusPublisher) PublishThreatExpired(t *models.ThreatSimulation) {
	p.enqueue(NewThreatEvent(EventTypeThreatExpired, t))
}

// PublishCascade queues a cascade trigger event
func (p *EventBusPublisher) PublishCascade(r *models.CascadeResult) {
	p.enqueue(NewCascadeEvent(r))
}

// PublishPrediction queues a prediction creation event
func (p *EventBusPublisher) PublishPrediction(pred *models.EnhancedPrediction) {
	p.enqueue(NewPredictionEvent(pred))
}

// PublishMitigation queues a mitigation execution event
func (p *EventBusPublisher) PublishMitigation(r *models.MitigationResult) {
	p.enqueue(NewMitigationEvent(r))
}
