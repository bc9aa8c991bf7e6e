package internal

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub() *Hub {
	hub := NewHub(NewMetrics())
	go hub.Run()
	return hub
}

// test clients never need a real websocket: the hub only touches the send
// channel, the conn belongs to the pumps.
func addTestClient(hub *Hub, buffer int) *Client {
	client := &Client{hub: hub, send: make(chan []byte, buffer), id: "test"}
	hub.register <- client
	return client
}

func recvEvent(t *testing.T, client *Client) envelope {
	t.Helper()
	select {
	case payload, ok := <-client.send:
		require.True(t, ok, "send channel closed unexpectedly")
		var env envelope
		require.NoError(t, json.Unmarshal(payload, &env))
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return envelope{}
	}
}

func expectSilence(t *testing.T, client *Client) {
	t.Helper()
	select {
	case payload := <-client.send:
		t.Fatalf("expected no delivery, got %s", payload)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBroadcastAllReachesEveryConnection(t *testing.T) {
	hub := newTestHub()
	a := addTestClient(hub, 8)
	b := addTestClient(hub, 8)
	c := addTestClient(hub, 8)

	hub.BroadcastAll(EventSyncClear, nil)

	for _, client := range []*Client{a, b, c} {
		env := recvEvent(t, client)
		assert.Equal(t, EventSyncClear, env.Type)
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub := newTestHub()
	sender := addTestClient(hub, 8)
	other := addTestClient(hub, 8)

	hub.BroadcastExcept(sender, EventSyncUpdate, map[string]string{"id": "x"})

	env := recvEvent(t, other)
	assert.Equal(t, EventSyncUpdate, env.Type)
	expectSilence(t, sender)
}

func TestBroadcastDeliveryOrderIsFIFO(t *testing.T) {
	hub := newTestHub()
	client := addTestClient(hub, 16)

	for i := 0; i < 5; i++ {
		hub.BroadcastAll(EventSyncDelete, i)
	}
	for i := 0; i < 5; i++ {
		env := recvEvent(t, client)
		var got int
		require.NoError(t, json.Unmarshal(env.Data, &got))
		assert.Equal(t, i, got, "events must arrive in publish order")
	}
}

// one stalled connection must not block delivery to the rest; it gets
// dropped instead.
func TestSlowClientIsDroppedNotBlocking(t *testing.T) {
	hub := newTestHub()
	slow := addTestClient(hub, 1)
	healthy := addTestClient(hub, 8)

	// first event fills the slow client's buffer, second overflows it.
	hub.BroadcastAll(EventSyncClear, nil)
	hub.BroadcastAll(EventSyncClear, nil)

	recvEvent(t, healthy)
	recvEvent(t, healthy)

	require.Eventually(t, func() bool { return hub.size() == 1 },
		2*time.Second, 10*time.Millisecond, "slow client should be unregistered")

	// the dropped client's channel is closed after its buffered event.
	<-slow.send
	_, ok := <-slow.send
	assert.False(t, ok)
}

func TestUnregisterIsIdempotentInRunLoop(t *testing.T) {
	hub := newTestHub()
	client := addTestClient(hub, 1)

	hub.unregister <- client
	// a second unregister for the same client must be a no-op.
	hub.unregister <- client

	require.Eventually(t, func() bool { return hub.size() == 0 },
		2*time.Second, 10*time.Millisecond)
}
