// Package realtime implements C6: the broadcast hub and CEO pulse
// snapshot aggregator (spec §4.6). The hub's fan-out/drop-on-full
// discipline is grounded on
// original_source/.../realtime/hub.rs's bounded tokio::broadcast
// channel, redomained onto Go's per-subscriber buffered channel idiom
// (Go has no built-in broadcast primitive) using the same non-blocking
// drop-on-full pattern the teacher's analytics/ingestion.go applies to
// its own bounded channel.
package realtime

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/SweetModels/sweet-models-enterprise/internal/identity"
)

// Event is a transient broadcast message (spec §3 RealtimeEvent). It
// is never persisted by the hub itself.
type Event struct {
	EventType string                 `json:"event_type"`
	RoomID    string                 `json:"room_id"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

const (
	EventRoomUpdate      = "ROOM_UPDATE"
	EventTelemetryUpdate = "TELEMETRY_UPDATE"
)

// subscriberBuffer is the capacity of each per-connection bounded
// channel; events published while it is full are dropped for that
// subscriber.
const subscriberBuffer = 64

// Hub is the central broadcast fan-out (spec §4.6).
type Hub struct {
	mu          sync.RWMutex
	subscribers map[identity.ID]chan Event
	logger      zerolog.Logger
	metrics     *Metrics
}

// New constructs a Hub. metrics may be nil, in which case no
// Prometheus instrumentation is recorded.
func New(logger zerolog.Logger, metrics *Metrics) *Hub {
	return &Hub{
		subscribers: make(map[identity.ID]chan Event),
		logger:      logger.With().Str("component", "realtime-hub").Logger(),
		metrics:     metrics,
	}
}

// Subscribe registers a new subscriber and returns its id and receive
// channel. Callers must call Unsubscribe when the connection closes.
func (h *Hub) Subscribe() (identity.ID, <-chan Event) {
	id := identity.NewID()
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.SubscriberCount.Set(float64(len(h.subscribers)))
	}
	return id, ch
}

// Unsubscribe removes and closes a subscriber's channel.
func (h *Hub) Unsubscribe(id identity.ID) {
	h.mu.Lock()
	ch, ok := h.subscribers[id]
	delete(h.subscribers, id)
	count := len(h.subscribers)
	h.mu.Unlock()
	if ok {
		close(ch)
	}
	if h.metrics != nil {
		h.metrics.SubscriberCount.Set(float64(count))
	}
}

// Publish fans an event out to every subscriber, non-blocking. When a
// subscriber's buffer is full the event is dropped for that subscriber
// with a warning log; the subscriber stays registered. Back-pressure is
// never propagated to the producer (spec §5 realtime fan-out rule).
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.metrics != nil {
		h.metrics.EventsPublished.WithLabelValues(event.EventType).Inc()
	}
	for id, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			h.logger.Warn().Str("subscriber_id", id.String()).Str("event_type", event.EventType).Msg("subscriber buffer full — event dropped")
			if h.metrics != nil {
				h.metrics.EventsDropped.WithLabelValues(event.EventType).Inc()
			}
		}
	}
}

// RoomUpdate publishes a ROOM_UPDATE event (spec §4.6 main use case).
func (h *Hub) RoomUpdate(roomID string, newTotal float64, members []interface{}) {
	h.Publish(Event{
		EventType: EventRoomUpdate,
		RoomID:    roomID,
		Data: map[string]interface{}{
			"new_total": newTotal,
			"members":   members,
		},
		Timestamp: time.Now().UTC().Unix(),
	})
}

// TelemetryUpdate publishes a TELEMETRY_UPDATE event verbatim from an
// external extension ingest (spec §4.6).
func (h *Hub) TelemetryUpdate(roomID string, data map[string]interface{}) {
	h.Publish(Event{
		EventType: EventTelemetryUpdate,
		RoomID:    roomID,
		Data:      data,
		Timestamp: time.Now().UTC().Unix(),
	})
}

// SubscriberCount reports the current subscriber count (used by Pulse).
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
