package ws

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// clientConn wraps a gorilla connection with a write lock so the reader
// loop, the service fan-out and the pinger never interleave frames.
// It implements chat.Conn.
type clientConn struct {
	rawConn *websocket.Conn
	mu      sync.Mutex
	closed  atomic.Bool
}

func (c *clientConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	err := c.rawConn.WriteJSON(v)
	if err != nil {
		c.closed.Store(true)
	}
	return err
}

func (c *clientConn) Close() error {
	c.closed.Store(true)
	return c.rawConn.Close()
}

func (c *clientConn) Alive() bool { return !c.closed.Load() }

// closeWithPolicyViolation sends close code 1008 with a human-readable
// reason, then drops the connection. Used for validation and name-conflict
// rejections before a session exists.
func (c *clientConn) closeWithPolicyViolation(reason string) {
	c.closed.Store(true)

	c.mu.Lock()
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = c.rawConn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.mu.Unlock()

	_ = c.rawConn.Close()
}
