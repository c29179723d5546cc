package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Coordinator runs the join sequence and the mirror-image cleanup on
// leave and disconnect. It owns the ordering: membership is mutated
// first and the notification snapshot is taken by that same mutation,
// so a broadcast can never name a peer that is already gone.
type Coordinator struct {
	reg    *Registry
	dir    *Directory
	router *Router
	log    *slog.Logger
}

func NewCoordinator(reg *Registry, dir *Directory, router *Router, log *slog.Logger) *Coordinator {
	return &Coordinator{reg: reg, dir: dir, router: router, log: log}
}

// Join registers the connection, adds it to the room and fans out a
// JOINED notice carrying the full membership to every member, the
// joiner included. The joiner reacts to its own notice by asking one
// existing member for a buffer snapshot via sync-code; the server never
// holds buffer state itself.
//
// A connection may only occupy one room: joining a second room leaves
// the first, with the usual departure notice. Re-joining the current
// room is idempotent and broadcasts nothing.
func (c *Coordinator) Join(ctx context.Context, connID string, p JoinPayload) error {
	if p.RoomID == "" || p.Username == "" {
		return fmt.Errorf("join from %s: roomId and username required", connID)
	}

	if err := c.reg.Register(connID, p.Username); err != nil {
		if !errors.Is(err, ErrDuplicateRegistration) {
			return err
		}
		// Already registered: the display name set at first join wins.
		c.log.Debug("session.rejoin", "connId", connID)
	}

	username, prev, _ := c.reg.Lookup(connID)
	if prev != "" && prev != p.RoomID {
		c.departRoom(ctx, connID, username, prev)
	}
	c.reg.SetRoom(connID, p.RoomID)

	members, added := c.dir.Join(p.RoomID, connID)
	if !added {
		return nil
	}

	clients := make([]Member, 0, len(members))
	for _, id := range members {
		name, _, ok := c.reg.Lookup(id)
		if !ok {
			continue
		}
		clients = append(clients, Member{SocketID: id, Username: name})
	}

	c.log.Info("session.joined", "room", p.RoomID, "connId", connID, "username", username, "members", len(members))
	return c.router.Fanout(ctx, p.RoomID, members, "", KindJoined, JoinedPayload{
		Clients:  clients,
		Username: username,
		SocketID: connID,
	})
}

// Leave handles a client-initiated room departure. The connection stays
// registered so it can join another room on the same socket.
func (c *Coordinator) Leave(ctx context.Context, connID string) error {
	username, roomID, ok := c.reg.Lookup(connID)
	if !ok || roomID == "" {
		return fmt.Errorf("leave from %s: %w", connID, ErrNotInRoom)
	}
	c.departRoom(ctx, connID, username, roomID)
	c.reg.SetRoom(connID, "")
	return nil
}

// Disconnect cleans up after a transport-level connection loss: leave
// every occupied room, notify each room's remaining members exactly
// once, then drop the registration. A connection holds at most one room
// today, but the cleanup iterates a slice so nothing is missed if that
// ever changes.
func (c *Coordinator) Disconnect(ctx context.Context, connID string) {
	username, roomID, ok := c.reg.Lookup(connID)
	if !ok {
		return
	}
	var rooms []string
	if roomID != "" {
		rooms = append(rooms, roomID)
	}
	for _, rm := range rooms {
		c.departRoom(ctx, connID, username, rm)
	}
	c.reg.Remove(connID)
	c.log.Info("session.disconnected", "connId", connID, "username", username)
}

// departRoom removes the connection from one room and notifies the
// remaining members. The departing connection never receives the
// notice; the snapshot returned by Leave already excludes it.
func (c *Coordinator) departRoom(ctx context.Context, connID, username, roomID string) {
	remaining := c.dir.Leave(roomID, connID)
	if len(remaining) == 0 {
		return
	}
	if err := c.router.Fanout(ctx, roomID, remaining, "", KindDisconnected, DisconnectedPayload{
		SocketID: connID,
		Username: username,
	}); err != nil {
		c.log.Warn("session.depart_notify", "room", roomID, "connId", connID, "err", err)
	}
}
