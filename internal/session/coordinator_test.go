package session

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCoordinator(t *testing.T) (*Coordinator, *Registry, *Directory, *mockPeers) {
	t.Helper()
	reg := NewRegistry()
	dir := NewDirectory()
	peers := newMockPeers()
	router := NewRouter(reg, dir, peers, nil, testLogger())
	return NewCoordinator(reg, dir, router, testLogger()), reg, dir, peers
}

func decodeJoined(t *testing.T, env Envelope) JoinedPayload {
	t.Helper()
	require.Equal(t, KindJoined, env.Event)
	var p JoinedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	return p
}

func TestCoordinator_FirstJoin(t *testing.T) {
	coord, reg, dir, peers := newCoordinator(t)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, "A", JoinPayload{RoomID: "r1", Username: "alice"}))

	// The joiner hears about itself, with the full membership.
	p := decodeJoined(t, peers.lastEnvelope(t, "A"))
	assert.Equal(t, "A", p.SocketID)
	assert.Equal(t, "alice", p.Username)
	assert.ElementsMatch(t, []Member{{SocketID: "A", Username: "alice"}}, p.Clients)

	name, room, ok := reg.Lookup("A")
	require.True(t, ok)
	assert.Equal(t, "alice", name)
	assert.Equal(t, "r1", room)
	assert.ElementsMatch(t, []string{"A"}, dir.Members("r1"))
}

func TestCoordinator_SecondJoinNotifiesEveryone(t *testing.T) {
	coord, _, _, peers := newCoordinator(t)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, "A", JoinPayload{RoomID: "r1", Username: "alice"}))
	require.NoError(t, coord.Join(ctx, "B", JoinPayload{RoomID: "r1", Username: "bob"}))

	want := []Member{{SocketID: "A", Username: "alice"}, {SocketID: "B", Username: "bob"}}
	for _, id := range []string{"A", "B"} {
		p := decodeJoined(t, peers.lastEnvelope(t, id))
		assert.Equal(t, "B", p.SocketID, "subject of the notice is the joiner")
		assert.Equal(t, "bob", p.Username)
		assert.ElementsMatch(t, want, p.Clients)
	}
	// A: its own JOINED plus B's. B: only its own.
	assert.Len(t, peers.frames("A"), 2)
	assert.Len(t, peers.frames("B"), 1)
}

func TestCoordinator_RejoinIsIdempotent(t *testing.T) {
	coord, _, dir, peers := newCoordinator(t)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, "A", JoinPayload{RoomID: "r1", Username: "alice"}))
	require.NoError(t, coord.Join(ctx, "A", JoinPayload{RoomID: "r1", Username: "alice"}))

	assert.Len(t, dir.Members("r1"), 1)
	// No duplicate notification either.
	assert.Len(t, peers.frames("A"), 1)
}

func TestCoordinator_JoinRequiresRoomAndName(t *testing.T) {
	coord, reg, _, _ := newCoordinator(t)
	ctx := context.Background()

	assert.Error(t, coord.Join(ctx, "A", JoinPayload{RoomID: "r1"}))
	assert.Error(t, coord.Join(ctx, "A", JoinPayload{Username: "alice"}))
	_, _, ok := reg.Lookup("A")
	assert.False(t, ok)
}

func TestCoordinator_SwitchingRoomsLeavesTheFirst(t *testing.T) {
	coord, reg, dir, peers := newCoordinator(t)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, "A", JoinPayload{RoomID: "r1", Username: "alice"}))
	require.NoError(t, coord.Join(ctx, "B", JoinPayload{RoomID: "r1", Username: "bob"}))
	require.NoError(t, coord.Join(ctx, "B", JoinPayload{RoomID: "r2", Username: "bob"}))

	// A saw B depart r1.
	env := peers.lastEnvelope(t, "A")
	require.Equal(t, KindDisconnected, env.Event)
	var p DisconnectedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "B", p.SocketID)
	assert.Equal(t, "bob", p.Username)

	assert.ElementsMatch(t, []string{"A"}, dir.Members("r1"))
	assert.ElementsMatch(t, []string{"B"}, dir.Members("r2"))
	_, room, _ := reg.Lookup("B")
	assert.Equal(t, "r2", room)
}

func TestCoordinator_Leave(t *testing.T) {
	coord, reg, dir, peers := newCoordinator(t)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, "A", JoinPayload{RoomID: "r1", Username: "alice"}))
	require.NoError(t, coord.Join(ctx, "B", JoinPayload{RoomID: "r1", Username: "bob"}))

	require.NoError(t, coord.Leave(ctx, "A"))

	env := peers.lastEnvelope(t, "B")
	require.Equal(t, KindDisconnected, env.Event)
	var p DisconnectedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "A", p.SocketID)

	// A stays registered with no room and can join again on the same
	// socket; leaving twice reports it is no longer in a room.
	_, room, ok := reg.Lookup("A")
	require.True(t, ok)
	assert.Empty(t, room)
	assert.ErrorIs(t, coord.Leave(ctx, "A"), ErrNotInRoom)
	assert.ElementsMatch(t, []string{"B"}, dir.Members("r1"))
}

func TestCoordinator_Disconnect(t *testing.T) {
	coord, reg, dir, peers := newCoordinator(t)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, "A", JoinPayload{RoomID: "r1", Username: "alice"}))
	require.NoError(t, coord.Join(ctx, "B", JoinPayload{RoomID: "r1", Username: "bob"}))
	framesBeforeA := len(peers.frames("A"))

	coord.Disconnect(ctx, "A")

	// Exactly one notice to the remaining member, none to the departed.
	env := peers.lastEnvelope(t, "B")
	require.Equal(t, KindDisconnected, env.Event)
	var p DisconnectedPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "A", p.SocketID)
	assert.Equal(t, "alice", p.Username)
	assert.Len(t, peers.frames("B"), 2) // own JOINED + the notice
	assert.Len(t, peers.frames("A"), framesBeforeA)

	assert.ElementsMatch(t, []string{"B"}, dir.Members("r1"))
	_, _, ok := reg.Lookup("A")
	assert.False(t, ok)
}

func TestCoordinator_DisconnectLastMemberReclaimsRoom(t *testing.T) {
	coord, _, dir, _ := newCoordinator(t)
	ctx := context.Background()

	require.NoError(t, coord.Join(ctx, "A", JoinPayload{RoomID: "r1", Username: "alice"}))
	coord.Disconnect(ctx, "A")

	assert.Equal(t, 0, dir.Len())
	assert.Empty(t, dir.Members("r1"))
}

func TestCoordinator_DisconnectUnknownConnection(t *testing.T) {
	coord, _, _, peers := newCoordinator(t)

	// A connection that never joined produces no notices and no panic.
	coord.Disconnect(context.Background(), "ghost")
	assert.Empty(t, peers.sent)
}
