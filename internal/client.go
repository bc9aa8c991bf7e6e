package internal

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"shareboard/internal/logging"
)

// a client wraps a single websocket connection and a buffered send queue.
type Client struct {
	hub      *Hub
	presence *PresenceRegistry
	conn     *websocket.Conn
	send     chan []byte
	id       string // connection id, assigned at upgrade
	ip       string // normalized remote address
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 65536
)

func newClient(hub *Hub, presence *PresenceRegistry, conn *websocket.Conn, id, ip string) *Client {
	return &Client{
		hub:      hub,
		presence: presence,
		conn:     conn,
		send:     make(chan []byte, 256),
		id:       id,
		ip:       ip,
	}
}

// joinMessage is the payload of an inbound user-join frame.
type joinMessage struct {
	ID         string `json:"id"`
	DeviceInfo string `json:"deviceInfo"`
}

func (client *Client) readPump() {
	defer func() {
		// Unregister before announcing the departure so the closing
		// connection is never part of the fan-out set.
		client.hub.unregister <- client
		client.conn.Close()
		client.presence.Leave(client.id)
		client.hub.BroadcastAll(EventUsersUpdate, client.presence.Snapshot())
	}()
	client.conn.SetReadLimit(maxMsgSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, payload, err := client.conn.ReadMessage()
		if err != nil {
			// normal close or read error, the deferred cleanup runs.
			break
		}
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			logging.Log.Debug("ignoring malformed frame", "connection", client.id, "err", err)
			continue
		}
		client.handleMessage(env)
	}
}

func (client *Client) handleMessage(env envelope) {
	switch env.Type {
	case EventUserJoin:
		var join joinMessage
		if err := json.Unmarshal(env.Data, &join); err != nil {
			logging.Log.Debug("ignoring malformed join", "connection", client.id, "err", err)
			return
		}
		client.presence.Join(client.id, join.ID, join.DeviceInfo, client.ip)
		// presence events go to everyone, the joiner included, as a full
		// snapshot rather than a delta.
		client.hub.BroadcastAll(EventUsersUpdate, client.presence.Snapshot())
	case EventSyncUpdate:
		// Rebroadcast to the other connections only: the sender already
		// reflects its own change locally.
		client.hub.BroadcastExcept(client, EventSyncUpdate, json.RawMessage(env.Data))
	default:
		logging.Log.Debug("ignoring unknown frame type", "connection", client.id, "type", env.Type)
	}
}

func (client *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()
	for {
		select {
		case message, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the send channel; ask the peer to close.
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
