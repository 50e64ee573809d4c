package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for websocket heartbeat.
	PingInterval = 30
	PongWait     = 60

	sendBuffer = 256
)

// Hub maintains event_id -> set of subscribers and broadcasts messages.
// Subscribers are websocket clients and SSE streams; both receive the same
// envelopes. Redis pub/sub bridges instances: local broadcast + publish.
type Hub struct {
	rooms    map[uuid.UUID]map[string]chan WSMessage
	subs     map[uuid.UUID]func() // cancel Redis subscription per event
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher publishes to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishEventMessage(eventID uuid.UUID, kind string, payload []byte) error
}

// RedisSubscriber subscribes to event channels and invokes handler for
// incoming messages.
type RedisSubscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(kind string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a hub. redisPub and redisSub may be nil for single-instance
// runs and tests.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]chan WSMessage),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Subscribe registers a sink for an event's messages and returns it with an
// unsubscribe function. The first subscriber of an event opens the Redis
// subscription; the last one leaving closes it.
func (h *Hub) Subscribe(eventID uuid.UUID) (<-chan WSMessage, func()) {
	id := uuid.New().String()
	ch := make(chan WSMessage, sendBuffer)

	h.mu.Lock()
	if h.rooms[eventID] == nil {
		h.rooms[eventID] = make(map[string]chan WSMessage)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeEvent(eventID, func(kind string, payload []byte) {
				h.BroadcastLocal(eventID, kind, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[eventID] = cancel
			} else {
				h.logger.Warn("redis subscribe failed", zap.String("event_id", eventID.String()), zap.Error(err))
			}
		}
	}
	h.rooms[eventID][id] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber joined", zap.String("event_id", eventID.String()))
	return ch, func() { h.unsubscribe(eventID, id) }
}

func (h *Hub) unsubscribe(eventID uuid.UUID, id string) {
	h.mu.Lock()
	if room, ok := h.rooms[eventID]; ok {
		delete(room, id)
		if len(room) == 0 {
			delete(h.rooms, eventID)
			if cancel, ok := h.subs[eventID]; ok {
				cancel()
				delete(h.subs, eventID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("subscriber left", zap.String("event_id", eventID.String()))
}

// BroadcastLocal sends a message to this instance's subscribers only.
func (h *Hub) BroadcastLocal(eventID uuid.UUID, kind string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: kind, Data: data}

	h.mu.RLock()
	room := h.rooms[eventID]
	sinks := make([]chan WSMessage, 0, len(room))
	for _, ch := range room {
		sinks = append(sinks, ch)
	}
	h.mu.RUnlock()

	for _, ch := range sinks {
		select {
		case ch <- msg:
		default:
			// buffer full, skip
		}
	}
}

// Broadcast publishes to Redis only when a bridge is configured, so the
// subscriber callback delivers once for all instances including this one.
// Without Redis it falls back to a local broadcast.
func (h *Hub) Broadcast(eventID uuid.UUID, kind string, payload interface{}) {
	if h.redis != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		if err := h.redis.PublishEventMessage(eventID, kind, data); err == nil {
			return
		}
	}
	h.BroadcastLocal(eventID, kind, payload)
}

// AudienceCount returns the number of live subscribers for an event on this
// instance.
func (h *Hub) AudienceCount(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}
