// Package ws carries chat frames over gorilla websocket connections.
package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/pdcc/internal/logging"
	"github.com/dmitrijs2005/pdcc/internal/server/hub"
	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Frames above this close the connection with 1009; chat text limits are
	// enforced per message below it.
	maxFrameSize = 1 << 20
	sendBuffer   = 256
)

var ErrSendBufferFull = errors.New("send buffer full")

// Conn adapts a websocket connection to hub.Conn. Frames queued by Send are
// written by a single writer goroutine; Close lets queued frames go out
// before the close frame.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan *protocol.Outbound
	done chan struct{}
	log  logging.Logger

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string
}

func newConn(ws *websocket.Conn, log logging.Logger) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan *protocol.Outbound, sendBuffer),
		done: make(chan struct{}),
		log:  log.With("conn_id", id),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) Send(f *protocol.Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return hub.ErrClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close is idempotent; only the first code and reason are sent.
func (c *Conn) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
	return nil
}

func (c *Conn) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.done)
	}()

	for {
		select {
		case f, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
				if err := c.ws.WriteMessage(websocket.CloseMessage, msg); err != nil {
					c.log.Debug(ctx, "close frame not sent", "error", err)
				}
				return
			}
			if err := c.ws.WriteJSON(f); err != nil {
				c.log.Warn(ctx, "write failed", "error", err)
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close(websocket.CloseAbnormalClosure, "")
				return
			}
		}
	}
}

// readPump feeds text frames into frames and closes it when the peer goes
// away or the connection is torn down.
func (c *Conn) readPump(ctx context.Context, frames chan<- []byte) {
	defer close(frames)

	c.ws.SetReadLimit(maxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Info(ctx, "read failed", "error", err)
			}
			return
		}
		if typ != websocket.TextMessage {
			continue
		}

		select {
		case frames <- data:
		case <-c.done:
			return
		}
	}
}
