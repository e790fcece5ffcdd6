package events

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

func testHub() *Hub {
	return NewHub(&HubConfig{
		BroadcastRedactions: true,
		BroadcastRequests:   true,
		BroadcastSystem:     true,
		BroadcastConns:      true,
	}, zap.NewNop())
}

func newTestClient(id string, buffer int) *Client {
	return &Client{
		ID:          id,
		Send:        make(chan Event, buffer),
		ConnectedAt: time.Now(),
		IP:          "127.0.0.1",
	}
}

func TestBroadcastEvictsStalledClients(t *testing.T) {
	hub := testHub()

	healthy := newTestClient("client-healthy", 8)
	stalled := newTestClient("client-stalled", 1)
	hub.registerClient(healthy)
	hub.registerClient(stalled)

	// Saturate the stalled client's buffer so the next broadcast cannot
	// enqueue to it.
	stalled.Send <- Event{Type: EventTypeSystemStatus, Timestamp: time.Now()}

	// Readers of hub stats run concurrently with the broadcast.
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			hub.GetStats()
		}
	}()

	hub.broadcastEvent(Event{Type: EventTypeRedaction, Timestamp: time.Now()})
	wg.Wait()

	if active := hub.GetStats().ActiveConnections; active != 1 {
		t.Errorf("Expected 1 active client after eviction, got %d", active)
	}

	// The stalled client's channel holds its pre-filled event and is then
	// closed by the eviction.
	<-stalled.Send
	if _, open := <-stalled.Send; open {
		t.Error("Stalled client's send channel was not closed")
	}

	found := false
	for len(healthy.Send) > 0 {
		if event := <-healthy.Send; event.Type == EventTypeRedaction {
			found = true
		}
	}
	if !found {
		t.Error("Healthy client did not receive the broadcast")
	}

	// A late unregister of the already evicted client must be a no-op.
	hub.unregisterClient(stalled)
	if active := hub.GetStats().ActiveConnections; active != 1 {
		t.Errorf("Late unregister changed active count to %d", active)
	}
}

func TestBroadcastEventRespectsConfig(t *testing.T) {
	hub := NewHub(&HubConfig{BroadcastRedactions: false}, zap.NewNop())

	hub.BroadcastEvent(Event{Type: EventTypeRedaction, Timestamp: time.Now()})
	if len(hub.broadcast) != 0 {
		t.Error("Disabled event type was enqueued")
	}

	hub.config.BroadcastRedactions = true
	hub.BroadcastEvent(Event{Type: EventTypeRedaction, Timestamp: time.Now()})
	if len(hub.broadcast) != 1 {
		t.Error("Enabled event type was not enqueued")
	}
}
