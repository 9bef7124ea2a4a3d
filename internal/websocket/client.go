// internal/websocket/client.go
package websocket

import (
	"bytes"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"aquahub/internal/data"
	"aquahub/internal/registry"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 1 << 20             // Camera frames arrive as base64 JPEGs.
	sendQueueSize  = 64
)

var rawPing = []byte("ping")

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	reg       *registry.Connection
	closeOnce sync.Once
	dropped   atomic.Int64
}

// Enqueue queues an outbound message without ever blocking. When the queue is
// full the oldest queued message is evicted, so one stalled viewer cannot
// hold up the ingest path. Returns false once the connection is closing.
func (c *Client) Enqueue(msg []byte) bool {
	for {
		select {
		case <-c.done:
			return false
		default:
		}
		select {
		case c.send <- msg:
			return true
		default:
		}
		select {
		case <-c.send:
			c.dropped.Add(1)
		default:
		}
	}
}

// Dropped reports how many outbound messages were evicted on overflow.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// close tears the connection down exactly once and deregisters it.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
		c.hub.detach(c)
	})
}

// ReadPump reads messages from the socket and dispatches them on the type
// discriminant. It owns connection cleanup: any read fault ends in close().
func (c *Client) ReadPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error on %s: %v", c.reg.ID, err)
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		// Raw-text heartbeat from browser clients that cannot send protocol
		// pings.
		if bytes.Equal(bytes.TrimSpace(message), rawPing) {
			c.Enqueue([]byte("pong"))
			continue
		}

		c.dispatch(message)
	}
}

func (c *Client) dispatch(message []byte) {
	inbound, err := data.ParseInbound(message)
	if err != nil {
		c.Enqueue(data.MarshalError(err.Error()))
		return
	}

	switch inbound.Type {
	case data.TypeCameraFrame:
		if c.reg.Role != registry.RoleProducer {
			c.Enqueue(data.MarshalError("only producer connections may send frames"))
			return
		}
		if c.hub.OnFrame != nil {
			c.hub.OnFrame(c.reg, inbound.CameraFrame)
		}
	case data.TypeJoinSession:
		if c.reg.Role != registry.RoleProducer {
			c.Enqueue(data.MarshalError("only producer connections may join a session"))
			return
		}
		if c.hub.OnJoin != nil {
			c.hub.OnJoin(c.reg, inbound.JoinSession.SessionID)
		}
	}
}

// WritePump drains the send queue onto the socket and keeps the peer alive
// with protocol pings. A write fault ends in close(), which cascades cleanup
// through the registry.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error on %s: %v", c.reg.ID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
