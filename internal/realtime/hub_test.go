package realtime

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHubBroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	eventID := uuid.New()

	a, cancelA := hub.Subscribe(eventID)
	b, cancelB := hub.Subscribe(eventID)
	defer cancelA()
	defer cancelB()

	other, cancelOther := hub.Subscribe(uuid.New())
	defer cancelOther()

	hub.Broadcast(eventID, "chat_message", map[string]string{"content": "hello"})

	for _, ch := range []<-chan WSMessage{a, b} {
		msg := <-ch
		require.Equal(t, "chat_message", msg.Event)
		var payload map[string]string
		require.NoError(t, json.Unmarshal(msg.Data, &payload))
		require.Equal(t, "hello", payload["content"])
	}
	require.Empty(t, other)
}

func TestHubAudienceCount(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	eventID := uuid.New()

	require.Equal(t, 0, hub.AudienceCount(eventID))

	_, cancelA := hub.Subscribe(eventID)
	_, cancelB := hub.Subscribe(eventID)
	require.Equal(t, 2, hub.AudienceCount(eventID))

	cancelA()
	require.Equal(t, 1, hub.AudienceCount(eventID))
	cancelB()
	require.Equal(t, 0, hub.AudienceCount(eventID))
}

type fakeBridge struct {
	published []string
	handlers  map[uuid.UUID]func(kind string, payload []byte)
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{handlers: make(map[uuid.UUID]func(string, []byte))}
}

func (f *fakeBridge) PublishEventMessage(eventID uuid.UUID, kind string, payload []byte) error {
	f.published = append(f.published, kind)
	if h, ok := f.handlers[eventID]; ok {
		h(kind, payload)
	}
	return nil
}

func (f *fakeBridge) SubscribeEvent(eventID uuid.UUID, handler func(kind string, payload []byte)) (func(), error) {
	f.handlers[eventID] = handler
	return func() { delete(f.handlers, eventID) }, nil
}

func TestHubBroadcastDeliversOnceThroughBridge(t *testing.T) {
	bridge := newFakeBridge()
	hub := NewHub(zap.NewNop(), bridge, bridge)
	eventID := uuid.New()

	ch, cancel := hub.Subscribe(eventID)
	defer cancel()

	hub.Broadcast(eventID, "chat_message", map[string]string{"content": "once"})

	require.Equal(t, []string{"chat_message"}, bridge.published)
	msg := <-ch
	require.Equal(t, "chat_message", msg.Event)
	require.Empty(t, ch)
}
