package ws

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
)

// errSendBufferFull means the outbound buffer was full and the frame was
// dropped. Delivery is at-most-once; a slow consumer loses frames rather
// than stalling the whole room.
var errSendBufferFull = errors.New("send buffer full")

type Conn struct {
	id    string
	ws    *websocket.Conn
	out   chan []byte
	saveQ chan savedBuffer
}

// savedBuffer is a code snapshot queued for the debounced autosave.
type savedBuffer struct {
	RoomID string
	Code   string
}

// Accept upgrades HTTP to websocket (allow all origins)
func Accept(w http.ResponseWriter, r *http.Request) (*websocket.Conn, error) {
	return websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
}

// NewConn wraps a websocket connection under its assigned connection id.
func NewConn(id string, ws *websocket.Conn) *Conn {
	return &Conn{
		id:    id,
		ws:    ws,
		out:   make(chan []byte, 256),
		saveQ: make(chan savedBuffer, 64),
	}
}

func (c *Conn) ID() string { return c.id }

// Read blocks until it receives a text/binary message
// Returns false if connection is closed
func (c *Conn) Read(ctx context.Context) ([]byte, bool) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			return nil, false
		}
		if typ == websocket.MessageText || typ == websocket.MessageBinary {
			return data, true
		}
	}
}

// Send queues a frame for the write loop without blocking.
func (c *Conn) Send(payload []byte) error {
	select {
	case c.out <- payload:
		return nil
	default:
		return errSendBufferFull
	}
}

// WriteLoop sends outbound messages + periodic pings
// Exits when ctx is cancelled
func (c *Conn) WriteLoop(ctx context.Context) {
	t := time.NewTicker(20 * time.Second)
	defer t.Stop()

	for {
		select {
		case b := <-c.out:
			_ = c.ws.Write(ctx, websocket.MessageText, b)
		case <-t.C:
			_ = c.ws.Ping(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Saves returns a read-only channel of queued autosave snapshots.
func (c *Conn) Saves() <-chan savedBuffer { return c.saveQ }

// QueueSave adds to save queue without blocking if full
func (c *Conn) QueueSave(roomID, code string) {
	select {
	case c.saveQ <- savedBuffer{RoomID: roomID, Code: code}:
	default:
	}
}

// Close closes the WS connection normally
func (c *Conn) Close() error { return c.ws.Close(websocket.StatusNormalClosure, "bye") }
