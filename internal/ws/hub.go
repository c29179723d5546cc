package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/Sajalrastogi191/CodeWithPair/internal/session"
	"github.com/Sajalrastogi191/CodeWithPair/pkg/metrics"
)

var errNotLocal = errors.New("not connected to this instance")

// CodeSaver persists autosaved buffer snapshots. Optional; without one
// the relay runs purely in-memory.
type CodeSaver interface {
	SaveCode(ctx context.Context, roomID, code string) error
}

// Hub owns the websocket connections of this instance and wires them to
// the session engine. It implements session.Peers: delivery to a
// connection means a non-blocking push onto its outbound buffer.
type Hub struct {
	log   *slog.Logger
	bus   *RedisBus
	saver CodeSaver

	reg    *session.Registry
	dir    *session.Directory
	router *session.Router
	coord  *session.Coordinator

	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewHub builds the hub together with the session engine it fronts. The
// registry and directory live exactly as long as the hub.
func NewHub(logger *slog.Logger, bus *RedisBus, saver CodeSaver) *Hub {
	h := &Hub{log: logger, bus: bus, saver: saver, conns: map[string]*Conn{}}
	h.reg = session.NewRegistry()
	h.dir = session.NewDirectory()
	var rbus session.Bus
	if bus != nil {
		rbus = bus
	}
	h.router = session.NewRouter(h.reg, h.dir, h, rbus, logger)
	h.coord = session.NewCoordinator(h.reg, h.dir, h.router, logger)
	return h
}

// Run forwards bus traffic from other instances to local members until
// the context ends.
func (h *Hub) Run(ctx context.Context) {
	if h.bus != nil {
		go h.bus.Subscribe(ctx, h.deliverRemote)
	}
	<-ctx.Done()
}

func (h *Hub) deliverRemote(m BusMessage) {
	if m.Target != "" {
		_ = h.Send(m.Target, m.Payload) // target may live on yet another instance
		return
	}
	for _, id := range h.dir.Members(m.RoomID) {
		if id == m.Sender {
			continue
		}
		_ = h.Send(id, m.Payload)
	}
}

// Send implements session.Peers for connections on this instance.
func (h *Hub) Send(connID string, payload []byte) error {
	h.mu.RLock()
	c := h.conns[connID]
	h.mu.RUnlock()
	if c == nil {
		return fmt.Errorf("connection %s: %w", connID, errNotLocal)
	}
	return c.Send(payload)
}

// Stats reports active local rooms and open connections.
func (h *Hub) Stats() (rooms, clients int) {
	h.mu.RLock()
	clients = len(h.conns)
	h.mu.RUnlock()
	return h.dir.Len(), clients
}

// ServeWS handles a new /ws connection for its whole lifetime.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sock, err := Accept(w, r)
	if err != nil {
		h.log.Error("ws.accept", "err", err)
		return
	}

	c := NewConn(uuid.NewString(), sock)
	h.add(c)
	metrics.OpenConnections.Inc()
	defer func() {
		h.remove(c.ID())
		metrics.OpenConnections.Dec()
		_ = c.Close()
	}()

	h.log.Debug("ws.open", "connId", c.ID())

	// Outbound writer
	go c.WriteLoop(ctx)

	// Debounced autosave of relayed buffers
	if h.saver != nil {
		go h.autosaveLoop(ctx, c)
	}

	// Inbound reader: one handler invocation per frame, in order.
	for {
		data, ok := c.Read(ctx)
		if !ok {
			break
		}
		var env session.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			h.log.Warn("ws.decode", "connId", c.ID(), "err", err)
			continue
		}
		h.dispatch(ctx, c, env)
	}

	// The request context dies with the client; cleanup notifications
	// still have to reach the bus.
	h.coord.Disconnect(context.Background(), c.ID())
	metrics.ActiveRooms.Set(float64(h.dir.Len()))
}

func (h *Hub) dispatch(ctx context.Context, c *Conn, env session.Envelope) {
	switch env.Event {
	case session.KindJoin:
		var p session.JoinPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			h.log.Warn("ws.join_decode", "connId", c.ID(), "err", err)
			return
		}
		if err := h.coord.Join(ctx, c.ID(), p); err != nil {
			h.log.Warn("ws.join", "connId", c.ID(), "err", err)
		}
		metrics.ActiveRooms.Set(float64(h.dir.Len()))

	case session.KindLeave:
		if err := h.coord.Leave(ctx, c.ID()); err != nil {
			h.log.Debug("ws.leave", "connId", c.ID(), "err", err)
		}
		metrics.ActiveRooms.Set(float64(h.dir.Len()))

	default:
		if env.Event == session.KindCodeChange && h.saver != nil {
			h.queueSave(c, env.Data)
		}
		if err := h.router.Route(ctx, c.ID(), env); err != nil {
			h.log.Warn("ws.route", "connId", c.ID(), "event", string(env.Event), "err", err)
		}
	}
}

func (h *Hub) queueSave(c *Conn, data json.RawMessage) {
	var p session.CodeChangePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	_, roomID, ok := h.reg.Lookup(c.ID())
	if !ok || roomID == "" {
		return
	}
	c.QueueSave(roomID, p.Code)
}

// autosaveLoop persists the latest relayed buffer at most once per
// debounce window, so a burst of keystrokes costs one write.
func (h *Hub) autosaveLoop(ctx context.Context, c *Conn) {
	const debounceDur = 2 * time.Second
	timer := time.NewTimer(debounceDur)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	var latest *savedBuffer

	for {
		select {
		case b := <-c.Saves():
			latest = &b
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounceDur)

		case <-timer.C:
			if latest != nil {
				if err := h.saver.SaveCode(ctx, latest.RoomID, latest.Code); err != nil {
					h.log.Warn("ws.autosave", "room", latest.RoomID, "err", err)
				}
				latest = nil
			}

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) add(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	h.mu.Unlock()
}

func (h *Hub) remove(connID string) {
	h.mu.Lock()
	delete(h.conns, connID)
	h.mu.Unlock()
}
