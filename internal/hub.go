package internal

import (
	"encoding/json"
	"sync"

	"shareboard/internal/logging"
)

// Wire event types shared with the browser clients.
const (
	EventSyncUpdate  = "sync-update"
	EventSyncDelete  = "sync-delete"
	EventSyncClear   = "sync-clear"
	EventUsersUpdate = "users-update"
	EventUserJoin    = "user-join"
)

// envelope is the json frame exchanged over a live connection, both ways.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// outbound is one fan-out unit. A non-nil exclude skips that client, which
// is how connection-originated updates avoid echoing back to their sender.
type outbound struct {
	payload []byte
	exclude *Client
}

// the hub keeps the set of live connections and fans events out to them.
// Its run loop is the single dispatch point, so each connection sees events
// in the order they were published.
type Hub struct {
	mutex      sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	metrics    *Metrics
}

func NewHub(metrics *Metrics) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 256),
		metrics:    metrics,
	}
}

func (hub *Hub) size() int {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()
	return len(hub.clients)
}

// BroadcastAll publishes an event to every live connection, the originator
// included. REST-triggered content events use this so a second tab on the
// posting device updates too.
func (hub *Hub) BroadcastAll(eventType string, data any) {
	hub.publish(eventType, data, nil)
}

// BroadcastExcept publishes to everyone but the sender. Used for events that
// arrived over the sender's own connection: that client already reflects its
// change locally and must not receive an echo.
func (hub *Hub) BroadcastExcept(sender *Client, eventType string, data any) {
	hub.publish(eventType, data, sender)
}

func (hub *Hub) publish(eventType string, data any, exclude *Client) {
	env := envelope{Type: eventType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			logging.Log.Error("encode broadcast event", "type", eventType, "err", err)
			return
		}
		env.Data = raw
	}
	payload, err := json.Marshal(env)
	if err != nil {
		logging.Log.Error("encode broadcast envelope", "type", eventType, "err", err)
		return
	}
	hub.metrics.BroadcastEvents.WithLabelValues(eventType).Inc()
	hub.broadcast <- outbound{payload: payload, exclude: exclude}
}

func (hub *Hub) Run() {
	for {
		select {
		case client := <-hub.register:
			hub.mutex.Lock()
			hub.clients[client] = true
			hub.mutex.Unlock()
			hub.metrics.ActiveConnections.Inc()
		case client := <-hub.unregister:
			hub.mutex.Lock()
			if _, exists := hub.clients[client]; exists {
				delete(hub.clients, client)
				close(client.send)
				hub.metrics.ActiveConnections.Dec()
			}
			hub.mutex.Unlock()
		case message := <-hub.broadcast:
			// Fan out to every connected client except the excluded sender.
			// A client whose send buffer is full is dropped so one stalled
			// connection never blocks delivery to the rest.
			hub.mutex.Lock()
			for client := range hub.clients {
				if client == message.exclude {
					continue
				}
				select {
				case client.send <- message.payload:
				default:
					close(client.send)
					delete(hub.clients, client)
					hub.metrics.ActiveConnections.Dec()
					hub.metrics.DroppedSends.Inc()
					logging.Log.Warn("dropping slow connection", "connection", client.id)
				}
			}
			hub.mutex.Unlock()
		}
	}
}
