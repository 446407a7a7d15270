package realtime

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_PublishDeliversToSubscriber(t *testing.T) {
	hub := New(zerolog.Nop(), nil)
	id, events := hub.Subscribe()
	defer hub.Unsubscribe(id)

	hub.RoomUpdate("room-1", 1500, nil)

	select {
	case event := <-events:
		assert.Equal(t, EventRoomUpdate, event.EventType)
		assert.Equal(t, "room-1", event.RoomID)
	case <-time.After(time.Second):
		t.Fatal("expected an event to be delivered")
	}
}

func TestHub_DropsOnFullBuffer(t *testing.T) {
	hub := New(zerolog.Nop(), nil)
	id, events := hub.Subscribe()
	defer hub.Unsubscribe(id)

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Publish(Event{EventType: EventTelemetryUpdate, RoomID: "room-1"})
	}

	count := 0
	for {
		select {
		case <-events:
			count++
		default:
			require.LessOrEqual(t, count, subscriberBuffer)
			return
		}
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := New(zerolog.Nop(), nil)
	id, events := hub.Subscribe()
	hub.Unsubscribe(id)

	_, ok := <-events
	assert.False(t, ok)
}

func TestHub_SubscriberCountTracksLifecycle(t *testing.T) {
	hub := New(zerolog.Nop(), nil)
	assert.Equal(t, 0, hub.SubscriberCount())
	id, _ := hub.Subscribe()
	assert.Equal(t, 1, hub.SubscriberCount())
	hub.Unsubscribe(id)
	assert.Equal(t, 0, hub.SubscriberCount())
}
