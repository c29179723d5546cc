package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.Register("c1", "alice"))

	err := r.Register("c1", "impostor")
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	// The first name wins for the lifetime of the connection.
	name, _, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "alice", name)
}

func TestRegistry_SetRoomAndLookup(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("c1", "alice"))

	_, room, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Empty(t, room)

	r.SetRoom("c1", "r1")
	_, room, _ = r.Lookup("c1")
	assert.Equal(t, "r1", room)

	r.SetRoom("c1", "")
	_, room, _ = r.Lookup("c1")
	assert.Empty(t, room)

	// Unknown connections are ignored, not created.
	r.SetRoom("ghost", "r1")
	_, _, ok = r.Lookup("ghost")
	assert.False(t, ok)
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("c1", "alice"))
	r.SetRoom("c1", "r1")

	room, ok := r.Remove("c1")
	assert.True(t, ok)
	assert.Equal(t, "r1", room)

	// Removing again is a no-op, not an error.
	_, ok = r.Remove("c1")
	assert.False(t, ok)

	// The id is free for a new registration afterwards.
	require.NoError(t, r.Register("c1", "bob"))
	assert.Equal(t, 1, r.Len())
}
