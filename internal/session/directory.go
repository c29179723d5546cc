package session

import "sync"

// Directory tracks which connections are members of which room. Rooms
// exist implicitly: the first join creates the entry and the last leave
// reclaims it.
type Directory struct {
	mu    sync.Mutex
	rooms map[string]map[string]struct{}
}

func NewDirectory() *Directory {
	return &Directory{rooms: make(map[string]map[string]struct{})}
}

// Join adds the connection to the room and returns the member set as it
// stands immediately after the join, computed inside the same critical
// section so the snapshot can never miss a concurrent join that already
// took effect. added is false when the connection was already a member.
func (d *Directory) Join(roomID, connID string) (members []string, added bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[roomID]
	if !ok {
		room = make(map[string]struct{})
		d.rooms[roomID] = room
	}
	_, present := room[connID]
	room[connID] = struct{}{}
	return snapshot(room), !present
}

// Leave removes the connection and returns the remaining member set.
// Leaving a room the connection is not in is a no-op; an emptied room
// is deleted.
func (d *Directory) Leave(roomID, connID string) (remaining []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	room, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(d.rooms, roomID)
		return nil
	}
	return snapshot(room)
}

// Members returns a point-in-time snapshot of a room's member set. A
// room with no members yields an empty slice, not an error.
func (d *Directory) Members(roomID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return snapshot(d.rooms[roomID])
}

// Len reports the number of rooms with at least one member.
func (d *Directory) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.rooms)
}

func snapshot(room map[string]struct{}) []string {
	out := make([]string, 0, len(room))
	for id := range room {
		out = append(out, id)
	}
	return out
}
