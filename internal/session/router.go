package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Sajalrastogi191/CodeWithPair/pkg/metrics"
)

// Peers delivers an encoded frame to a single local connection.
type Peers interface {
	Send(connID string, payload []byte) error
}

// Bus relays frames to other service instances. May be absent in
// single-instance deployments.
type Bus interface {
	PublishRoom(ctx context.Context, roomID, senderID string, payload []byte) error
	PublishDirect(ctx context.Context, roomID, targetID string, payload []byte) error
}

// Router decides the delivery scope of each inbound event and dispatches
// it. Payload contents beyond the routing fields are opaque; the only
// fields the router itself writes are the server-known identity stamps
// on cursor events, so a sender can never speak as someone else.
type Router struct {
	reg   *Registry
	dir   *Directory
	peers Peers
	bus   Bus
	log   *slog.Logger
}

func NewRouter(reg *Registry, dir *Directory, peers Peers, bus Bus, log *slog.Logger) *Router {
	return &Router{reg: reg, dir: dir, peers: peers, bus: bus, log: log}
}

// Route dispatches one inbound event from origin. JOIN and LEAVE are the
// coordinator's business and are rejected here. An origin with no
// current room gets ErrNotInRoom and the event is dropped.
func (r *Router) Route(ctx context.Context, origin string, env Envelope) error {
	if env.Event == KindJoin || env.Event == KindLeave {
		return fmt.Errorf("event %s must go through the coordinator", env.Event)
	}

	username, roomID, ok := r.reg.Lookup(origin)
	if !ok || roomID == "" {
		metrics.EventsDropped.WithLabelValues("not_in_room").Inc()
		return fmt.Errorf("route %s from %s: %w", env.Event, origin, ErrNotInRoom)
	}

	switch env.Event {
	case KindCodeChange:
		var p CodeChangePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return r.Fanout(ctx, roomID, r.dir.Members(roomID), origin, KindCodeChange,
			CodeChangePayload{Code: p.Code})

	case KindSyncCode:
		var p SyncCodePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		if p.SocketID == "" {
			return fmt.Errorf("sync-code from %s: no target", origin)
		}
		return r.Unicast(ctx, roomID, p.SocketID, KindSyncCode, SyncCodePayload{
			RoomID:    roomID,
			Code:      p.Code,
			Language:  p.Language,
			Output:    p.Output,
			IsRunning: p.IsRunning,
		})

	case KindCursorChange:
		var p CursorChangePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return r.Fanout(ctx, roomID, r.dir.Members(roomID), origin, KindCursorChange,
			CursorChangePayload{Cursor: p.Cursor, SocketID: origin, Username: username})

	case KindSendMessage:
		var p ChatPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return r.Fanout(ctx, roomID, r.dir.Members(roomID), origin, KindReceiveMessage,
			ChatPayload{Message: p.Message, Username: p.Username})

	case KindSyncOutput:
		var p SyncOutputPayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return r.Fanout(ctx, roomID, r.dir.Members(roomID), origin, KindSyncOutput,
			SyncOutputPayload{Output: p.Output, IsRunning: p.IsRunning})

	case KindLanguageChange:
		var p LanguageChangePayload
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", env.Event, err)
		}
		return r.Fanout(ctx, roomID, r.dir.Members(roomID), origin, KindLanguageChange,
			LanguageChangePayload{Language: p.Language})

	default:
		r.log.Warn("router.unknown_event", "event", string(env.Event), "connId", origin)
		metrics.EventsDropped.WithLabelValues("unknown_kind").Inc()
		return nil
	}
}

// Fanout encodes the payload once and delivers it to every listed
// member except the excluded sender. A member that cannot be reached
// locally is simply skipped; departed connections miss events, they do
// not fail them. The frame is also put on the bus for members of the
// same room on other instances.
func (r *Router) Fanout(ctx context.Context, roomID string, members []string, except string, kind Kind, data any) error {
	frame, err := Encode(kind, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	for _, id := range members {
		if id == except {
			continue
		}
		if err := r.peers.Send(id, frame); err != nil {
			r.log.Debug("router.send_miss", "event", string(kind), "connId", id, "err", err)
		}
	}
	if r.bus != nil {
		if err := r.bus.PublishRoom(ctx, roomID, except, frame); err != nil {
			r.log.Warn("router.bus_publish", "event", string(kind), "room", roomID, "err", err)
		}
	}
	metrics.EventsRelayed.WithLabelValues(string(kind)).Inc()
	return nil
}

// Unicast delivers one frame to a single connection, trying the local
// peer set first and falling back to the bus when the target lives on
// another instance.
func (r *Router) Unicast(ctx context.Context, roomID, target string, kind Kind, data any) error {
	frame, err := Encode(kind, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", kind, err)
	}
	if err := r.peers.Send(target, frame); err != nil {
		if r.bus == nil {
			r.log.Debug("router.unicast_miss", "event", string(kind), "connId", target, "err", err)
			return nil
		}
		if err := r.bus.PublishDirect(ctx, roomID, target, frame); err != nil {
			r.log.Warn("router.bus_publish", "event", string(kind), "connId", target, "err", err)
		}
	}
	metrics.EventsRelayed.WithLabelValues(string(kind)).Inc()
	return nil
}
