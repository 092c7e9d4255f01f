package stream

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds how long one outbound send may block.
	writeWait = 5 * time.Second

	// maxFrameSize bounds inbound frames from a client.
	maxFrameSize = 64 * 1024
)

// Transport is one bidirectional message-framed connection. The session
// goroutine is the only reader; the registry may send and close through its
// shared handle, so Send and Close must be safe for concurrent use.
type Transport interface {
	// Receive blocks for the next inbound frame. A non-zero timeout bounds
	// the wait; zero blocks indefinitely.
	Receive(timeout time.Duration) ([]byte, error)
	// Send writes one frame. Sends are serialized internally.
	Send(frame []byte) error
	// Close sends a farewell close frame with the given reason and tears the
	// connection down. Safe to call more than once.
	Close(reason string) error
	// Connected reports whether the transport is still usable.
	Connected() bool
}

// Conn adapts a gorilla websocket connection to Transport. All writes
// (including the close handshake) go through a single mutex so that the
// broadcaster and the session's own handlers never interleave frames.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ Transport = (*Conn)(nil)

// NewConn wraps an upgraded websocket connection.
func NewConn(ws *websocket.Conn) *Conn {
	ws.SetReadLimit(maxFrameSize)
	return &Conn{ws: ws}
}

func (c *Conn) Receive(timeout time.Duration) ([]byte, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		c.closed.Store(true)
		return nil, fmt.Errorf("setting read deadline: %w", err)
	}
	_, frame, err := c.ws.ReadMessage()
	if err != nil {
		c.closed.Store(true)
		return nil, fmt.Errorf("reading frame: %w", err)
	}
	return frame, nil
}

func (c *Conn) Send(frame []byte) error {
	if c.closed.Load() {
		return fmt.Errorf("sending frame: connection closed")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.closed.Store(true)
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.closed.Store(true)
		return fmt.Errorf("sending frame: %w", err)
	}
	return nil
}

func (c *Conn) Close(reason string) error {
	if c.closed.Swap(true) {
		return nil
	}
	c.writeMu.Lock()
	message := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return c.ws.Close()
}

func (c *Conn) Connected() bool {
	return !c.closed.Load()
}
