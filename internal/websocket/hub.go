// internal/websocket/hub.go
package websocket

import (
	"log"

	"aquahub/internal/data"
	"aquahub/internal/registry"

	"github.com/gorilla/websocket"
)

// Hub fans messages out to viewer connections, keyed by site. Connection
// membership lives in the registry; the hub only routes.
//
// Inbound dispatch callbacks are wired at startup. They run on the
// connection's read goroutine, so they must not block for long.
type Hub struct {
	registry *registry.Registry

	OnFrame      func(conn *registry.Connection, frame *data.CameraFramePayload)
	OnJoin       func(conn *registry.Connection, sessionID string)
	OnDisconnect func(conn *registry.Connection)
}

func NewHub(reg *registry.Registry) *Hub {
	return &Hub{registry: reg}
}

// Attach registers an upgraded socket with the hub and starts its pumps. The
// client learns its connection id from the welcome message; viewers need it
// to open pairing sessions over REST.
func (h *Hub) Attach(conn *websocket.Conn, role registry.Role, siteID string) *Client {
	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
	}
	client.reg = h.registry.Register(role, siteID, client)

	go client.WritePump()
	go client.ReadPump()

	client.Enqueue(data.MarshalWelcome(client.reg.ID, siteID))
	log.Printf("WebSocket %s connected: %s site=%s", role, client.reg.ID, siteID)
	return client
}

func (h *Hub) detach(c *Client) {
	h.registry.Unregister(c.reg.ID)
	log.Printf("WebSocket %s disconnected: %s (dropped %d)", c.reg.Role, c.reg.ID, c.Dropped())
	if h.OnDisconnect != nil {
		h.OnDisconnect(c.reg)
	}
}

// deliver marshals once and enqueues per viewer. Each viewer's queue is
// bounded and evicts oldest on overflow, so delivery to one connection never
// blocks another.
func (h *Hub) deliver(siteID string, msg []byte) {
	for _, viewer := range h.registry.ViewersBySite(siteID) {
		viewer.Send.Enqueue(msg)
	}
}

func (h *Hub) BroadcastPrediction(siteID string, p data.Prediction) {
	h.deliver(siteID, data.MarshalPrediction(p))
}

func (h *Hub) BroadcastLiveStream(siteID string, image string, p data.Prediction) {
	h.deliver(siteID, data.MarshalLiveStream(image, p))
}

func (h *Hub) BroadcastAlert(siteID string, a data.Alert) {
	h.deliver(siteID, data.MarshalAlert(a))
}

// SendTo delivers a message to one connection by id.
func (h *Hub) SendTo(connID string, msg []byte) bool {
	conn, ok := h.registry.Lookup(connID)
	if !ok {
		return false
	}
	return conn.Send.Enqueue(msg)
}
