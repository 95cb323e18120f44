package ws

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	zlog "github.com/rs/zerolog/log"
)

const (
	sendBufferSize = 32
	writeTimeout   = 5 * time.Second
)

var (
	errConnClosed   = errors.New("connection closed")
	errBackpressure = errors.New("send buffer full")
)

// conn wraps a websocket connection with a buffered outbound channel. Sends
// never block: a full buffer drops the frame, matching the best-effort
// delivery contract.
type conn struct {
	ws   *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
	}
}

// Send queues data for delivery. Implements registry.Conn.
func (c *conn) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return errBackpressure
	}
}

// Close shuts the connection down once; later sends fail fast.
func (c *conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
	c.mu.Unlock()
}

// writePump drains the send channel onto the socket. Exits when the channel
// closes or a write fails.
func (c *conn) writePump() {
	for data := range c.send {
		if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			zlog.Debug().Msgf("write deadline: %v", err)
			return
		}
		if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
			zlog.Debug().Msgf("write: %v", err)
			return
		}
	}
}
