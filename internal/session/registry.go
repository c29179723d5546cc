package session

import (
	"errors"
	"sync"
)

var (
	// ErrDuplicateRegistration means Register was called twice for a
	// still-live connection. The first registration stays in effect.
	ErrDuplicateRegistration = errors.New("connection already registered")

	// ErrNotInRoom means an event arrived from a connection that has
	// no current room. The event is dropped.
	ErrNotInRoom = errors.New("connection not in a room")
)

type identity struct {
	username string
	roomID   string
}

// Registry maps live connections to their declared identity and current
// room. It is owned by the relay service instance; nothing here is
// persisted.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*identity
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*identity)}
}

// Register records the display name for a connection. The name is
// immutable for the lifetime of the connection; registering the same
// live connection again fails and leaves the original name in place.
func (r *Registry) Register(connID, username string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[connID]; ok {
		return ErrDuplicateRegistration
	}
	r.conns[connID] = &identity{username: username}
	return nil
}

// SetRoom updates the connection's current room. An empty roomID clears
// it. Unknown connections are ignored.
func (r *Registry) SetRoom(connID, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.conns[connID]; ok {
		id.roomID = roomID
	}
}

// Lookup returns the display name and current room of a connection.
func (r *Registry) Lookup(connID string) (username, roomID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.conns[connID]
	if !ok {
		return "", "", false
	}
	return id.username, id.roomID, true
}

// Remove deletes all state for a connection and reports the room it
// last occupied so the caller can drive leave notifications. Removing
// an unknown connection is a no-op.
func (r *Registry) Remove(connID string) (roomID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	delete(r.conns, connID)
	return id.roomID, true
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
