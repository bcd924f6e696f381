package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"twinguard-lab/internal/domain/models"
	"twinguard-lab/pkg/logger"
)

func threatEvent(region string, severity float64) *Event {
	return NewThreatEvent(EventTypeThreatStarted, &models.ThreatSimulation{
		Type:     models.ThreatCyberAttack,
		Target:   "node-007",
		Region:   region,
		Severity: severity,
	})
}

func TestNilSubscriptionSkipsStateUpdates(t *testing.T) {
	var sub *Subscription

	assert.True(t, sub.Matches(threatEvent("north", 0.8)))
	assert.False(t, sub.Matches(NewStateEvent(&models.SystemState{})),
		"the per-tick firehose is opt-in")
}

func TestIncludeStateOptsIn(t *testing.T) {
	state := NewStateEvent(&models.SystemState{MaxRisk: 0.4})

	assert.False(t, (&Subscription{}).Matches(state))
	assert.True(t, (&Subscription{IncludeState: true}).Matches(state))
}

func TestTypeFilter(t *testing.T) {
	sub := &Subscription{Types: []EventType{EventTypeCascadeTriggered}}

	assert.False(t, sub.Matches(threatEvent("north", 0.8)))
	assert.True(t, sub.Matches(NewCascadeEvent(&models.CascadeResult{OriginID: "node-001", Severity: 0.9})))
}

func TestRegionFilter(t *testing.T) {
	sub := &Subscription{Regions: []string{"north", "east"}}

	assert.True(t, sub.Matches(threatEvent("north", 0.8)))
	assert.False(t, sub.Matches(threatEvent("south", 0.8)))

	// Events without a region pass region filters
	cascade := NewCascadeEvent(&models.CascadeResult{OriginID: "node-001", Severity: 0.9})
	assert.True(t, sub.Matches(cascade))
}

func TestNodeFilter(t *testing.T) {
	sub := &Subscription{NodeIDs: []string{"node-007"}}

	assert.True(t, sub.Matches(threatEvent("north", 0.8)))

	other := NewMitigationEvent(&models.MitigationResult{NodeID: "node-009", RiskBefore: 0.8})
	assert.False(t, sub.Matches(other))
}

func TestMinSeverityFilter(t *testing.T) {
	sub := &Subscription{MinSeverity: 0.5}

	assert.True(t, sub.Matches(threatEvent("north", 0.8)))
	assert.False(t, sub.Matches(threatEvent("north", 0.3)))
	assert.True(t, sub.Matches(threatEvent("north", 0.5)), "threshold is inclusive")
}

func TestEventConstructorsDenormalizeRouting(t *testing.T) {
	threat := threatEvent("west", 0.7)
	assert.Equal(t, EventTypeThreatStarted, threat.Type)
	assert.Equal(t, "node-007", threat.NodeID)
	assert.Equal(t, "west", threat.Region)
	assert.Equal(t, 0.7, threat.Severity)
	assert.NotEmpty(t, threat.ID)

	pred := NewPredictionEvent(&models.EnhancedPrediction{NodeID: "node-003", Severity: 0.6})
	assert.Equal(t, "node-003", pred.NodeID)
	assert.Equal(t, 0.6, pred.Severity)

	state := NewStateEvent(&models.SystemState{MaxRisk: 0.9})
	assert.Equal(t, 0.9, state.Severity, "state events route on max risk")
}

func TestEventBusFanOut(t *testing.T) {
	bus := NewEventBus(nil, logger.Nop())
	defer bus.Close()

	ctx := context.Background()
	chA, unsubA := bus.Subscribe(ctx, nil)
	chB, _ := bus.Subscribe(ctx, nil)
	assert.Equal(t, 2, bus.SubscriberCount())

	event := threatEvent("north", 0.8)
	require.NoError(t, bus.Publish(ctx, event))

	for _, ch := range []<-chan *Event{chA, chB} {
		select {
		case got := <-ch:
			assert.Equal(t, event.ID, got.ID)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}

	unsubA()
	assert.Equal(t, 1, bus.SubscriberCount())
	_, open := <-chA
	assert.False(t, open, "unsubscribe closes the channel")

	// Unsubscribing twice is harmless
	unsubA()
	assert.Equal(t, 1, bus.SubscriberCount())
}

func TestEventBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewEventBus(nil, logger.Nop())
	defer bus.Close()

	ctx := context.Background()
	ch, _ := bus.Subscribe(ctx, nil)

	// Channel capacity is 100; the overflow must not block Publish
	for i := 0; i < 150; i++ {
		require.NoError(t, bus.Publish(ctx, threatEvent("north", 0.5)))
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 100, received)
}

func TestDeliverAfterUnsubscribeReportsGone(t *testing.T) {
	bus := NewEventBus(nil, logger.Nop())
	defer bus.Close()

	ch, unsub := bus.Subscribe(context.Background(), nil)

	event := threatEvent("north", 0.8)
	require.True(t, bus.deliver("sub-1", event))
	select {
	case got := <-ch:
		assert.Equal(t, event.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the event")
	}

	// After unsubscribe the channel is closed; a late broker delivery must
	// report the subscriber gone instead of sending into the closed channel
	unsub()
	assert.False(t, bus.deliver("sub-1", event))
}

func TestEventBusCloseClosesSubscribers(t *testing.T) {
	bus := NewEventBus(nil, logger.Nop())
	ch, _ := bus.Subscribe(context.Background(), nil)

	bus.Close()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, bus.SubscriberCount())
}
