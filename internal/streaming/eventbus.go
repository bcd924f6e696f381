package streaming

import (
	"context"
	"fmt"
	"sync"

	"twinguard-lab/pkg/logger"
)

// EventBus distributes simulation events to subscribers
type EventBus struct {
	nats   *NATSPublisher
	logger *logger.Logger

	mu          sync.RWMutex
	subscribers map[string]chan *Event
	nextID      int
}

// NewEventBus creates a new event bus. nats may be nil for local-only
// distribution.
func NewEventBus(nats *NATSPublisher, log *logger.Logger) *EventBus {
	return &EventBus{
		nats:        nats,
		logger:      log.WithComponent("event-bus"),
		subscribers: make(map[string]chan *Event),
	}
}

// Publish fans an event out to NATS and all local subscribers. A slow
// subscriber drops events rather than stalling the bus.
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	if eb.nats != nil && eb.nats.IsConnected() {
		if err := eb.nats.PublishEvent(ctx, event); err != nil {
			eb.logger.Warn().Err(err).Msg("failed to publish to NATS, using local broadcast only")
		}
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for id, ch := range eb.subscribers {
		select {
		case ch <- event:
		default:
			eb.logger.Debug().Str("subscriber", id).Msg("subscriber channel full, dropping event")
		}
	}

	return nil
}

// Subscribe creates a new local subscription and returns a channel for
// events plus an unsubscribe function. If NATS is connected, events from
// other instances are forwarded too.
func (eb *EventBus) Subscribe(ctx context.Context, sub *Subscription) (<-chan *Event, func()) {
	eb.mu.Lock()
	eb.nextID++
	id := fmt.Sprintf("sub-%d", eb.nextID)
	ch := make(chan *Event, 100)
	eb.subscribers[id] = ch
	eb.mu.Unlock()

	eb.logger.Debug().Str("subscriber_id", id).Msg("new subscriber")

	unsubscribe := func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()
		if _, ok := eb.subscribers[id]; ok {
			close(ch)
			delete(eb.subscribers, id)
			eb.logger.Debug().Str("subscriber_id", id).Msg("subscriber removed")
		}
	}

	if eb.nats != nil && eb.nats.IsConnected() {
		natsCh, err := eb.nats.Subscribe(ctx, sub)
		if err == nil {
			go eb.forward(ctx, id, natsCh)
		}
	}

	return ch, unsubscribe
}

// forward relays NATS events into one local subscriber. It stops once the
// subscriber is gone; delivery re-checks membership under the lock so an
// unsubscribe cannot race the send.
func (eb *EventBus) forward(ctx context.Context, id string, natsCh <-chan *Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-natsCh:
			if !ok {
				return
			}
			if !eb.deliver(id, event) {
				return
			}
		}
	}
}

// deliver sends to one subscriber if it is still registered, dropping on a
// full channel. Reports whether the subscriber still exists.
func (eb *EventBus) deliver(id string, event *Event) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	ch, ok := eb.subscribers[id]
	if !ok {
		return false
	}
	select {
	case ch <- event:
	default:
		eb.logger.Debug().Str("subscriber", id).Msg("subscriber channel full, dropping event")
	}
	return true
}

// SubscriberCount returns the number of active local subscribers
func (eb *EventBus) SubscriberCount() int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.subscribers)
}

// Close closes the event bus and the NATS connection
func (eb *EventBus) Close() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for id, ch := range eb.subscribers {
		close(ch)
		delete(eb.subscribers, id)
	}

	if eb.nats != nil {
		eb.nats.Close()
	}
}
