package coordinator

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lanforge/lanforge/internal/room"
)

// writeWait bounds how long a single frame write may block before the
// connection is considered unresponsive.
const writeWait = 10 * time.Second

// connection is per-accepted-connection state. clientId is assigned at
// accept; deviceId/name are populated once the peer sends HELLO.
type connection struct {
	conn     *websocket.Conn
	send     chan []byte
	clientId string

	mu         sync.Mutex
	deviceId   room.DeviceId
	name       string
	helloSeen  bool
	lastActive time.Time
}

func newConnection(conn *websocket.Conn, clientId string) *connection {
	return &connection{
		conn:       conn,
		send:       make(chan []byte, 32),
		clientId:   clientId,
		lastActive: time.Now(),
	}
}

func (c *connection) touch() {
	c.mu.Lock()
	c.lastActive = time.Now()
	c.mu.Unlock()
}

func (c *connection) idleSince() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastActive)
}

func (c *connection) setIdentity(deviceId room.DeviceId, name string) {
	c.mu.Lock()
	c.deviceId = deviceId
	c.name = name
	c.helloSeen = true
	c.mu.Unlock()
}

func (c *connection) identity() (room.DeviceId, string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deviceId, c.name, c.helloSeen
}

// enqueue drops the frame and returns false rather than blocking the caller
// when the connection's outbound buffer is full — a slow or dead peer must
// never stall the coordinator's serialized dispatch loop.
func (c *connection) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// writePump drains send and writes each frame as a text message. It
// returns (and the connection is torn down) on the first write error.
func (c *connection) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
