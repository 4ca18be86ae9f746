package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairwave/pairwave/internal/core"
	"github.com/pairwave/pairwave/internal/domain"
)

type nopConn struct{ closed bool }

func (*nopConn) TrySend(core.Frame) error { return nil }
func (c *nopConn) Close()                 { c.closed = true }

func newTestLifecycle(capacity int, clients ...domain.ClientID) (*Lifecycle, *Registry, *RoomStore) {
	reg := NewRegistry()
	for _, id := range clients {
		reg.Bind(id, &nopConn{}, nil)
	}
	store := NewRoomStore(capacity)
	return NewLifecycle(reg, store), reg, store
}

func TestCreateRoomBindsHost(t *testing.T) {
	lc, reg, store := newTestLifecycle(10, "a")

	res, err := lc.CreateRoom("a")
	require.NoError(t, err)
	assert.True(t, res.IsHost)
	assert.Len(t, res.Code, 7)

	room, ok := store.Get(res.Code)
	require.True(t, ok)
	assert.Equal(t, domain.ClientID("a"), room.Host)
	assert.Equal(t, domain.ClientID(""), room.Guest)

	code, role, ok := reg.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, res.Code, code)
	assert.Equal(t, domain.RoleHost, role)
}

func TestCreateRoomAtCapacity(t *testing.T) {
	lc, _, store := newTestLifecycle(1, "a", "b")

	_, err := lc.CreateRoom("a")
	require.NoError(t, err)

	_, err = lc.CreateRoom("b")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
	assert.Equal(t, 1, store.Count())
}

func TestJoinRoomBasicPairing(t *testing.T) {
	lc, reg, _ := newTestLifecycle(10, "a", "b")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)

	res, err := lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)
	assert.Equal(t, created.Code, res.Code)
	assert.Equal(t, domain.ClientID("a"), res.PeerID)
	assert.False(t, res.IsHost)

	_, role, _ := reg.RoomOf("b")
	assert.Equal(t, domain.RoleGuest, role)

	peer, ok := lc.PeerOf("a")
	require.True(t, ok)
	assert.Equal(t, domain.ClientID("b"), peer)
}

func TestJoinRoomNotFound(t *testing.T) {
	lc, _, _ := newTestLifecycle(10, "b")

	_, err := lc.JoinRoom("NOPE123", "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestJoinRoomFullAlwaysFails(t *testing.T) {
	lc, _, _ := newTestLifecycle(10, "a", "b", "c")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)
	_, err = lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = lc.JoinRoom(created.Code, "c")
		assert.ErrorIs(t, err, domain.ErrRoomFull)
	}
}

func TestJoinRandomPicksOpenRoom(t *testing.T) {
	lc, _, store := newTestLifecycle(10, "a", "b")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)

	res, err := lc.JoinRandom("b")
	require.NoError(t, err)
	assert.Equal(t, created.Code, res.Code)
	assert.Equal(t, domain.ClientID("a"), res.PeerID)
	assert.False(t, res.IsHost)
	assert.False(t, res.Created)

	room, _ := store.Get(created.Code)
	assert.Equal(t, domain.ClientID("b"), room.Guest)
}

func TestJoinRandomFallbackCreate(t *testing.T) {
	lc, _, store := newTestLifecycle(10, "a")

	res, err := lc.JoinRandom("a")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.IsHost)
	assert.Empty(t, res.PeerID)
	assert.Equal(t, 1, store.Count())
}

func TestJoinRandomFallbackAtCapacity(t *testing.T) {
	lc, _, _ := newTestLifecycle(1, "a", "b", "c")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)
	_, err = lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)

	// The only room is fully occupied and the store is at its bound.
	_, err = lc.JoinRandom("c")
	assert.ErrorIs(t, err, domain.ErrCapacityExceeded)
}

func TestRejoinStale(t *testing.T) {
	lc, _, _ := newTestLifecycle(10, "a")

	_, err := lc.Rejoin("GONE123", true, "a")
	assert.ErrorIs(t, err, domain.ErrStale)
}

func TestRejoinHostLastWriterWins(t *testing.T) {
	lc, _, store := newTestLifecycle(10, "a", "a2", "b")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)
	_, err = lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)

	// A different live connection overwrites the host slot outright.
	res, err := lc.Rejoin(created.Code, true, "a2")
	require.NoError(t, err)
	assert.True(t, res.IsHost)
	assert.Equal(t, domain.ClientID("b"), res.PeerID)

	room, _ := store.Get(created.Code)
	assert.Equal(t, domain.ClientID("a2"), room.Host)
	assert.Equal(t, domain.ClientID("b"), room.Guest)
}

func TestRejoinHostNoGuest(t *testing.T) {
	lc, _, _ := newTestLifecycle(10, "a", "a2")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)

	res, err := lc.Rejoin(created.Code, true, "a2")
	require.NoError(t, err)
	assert.Empty(t, res.PeerID)
}

func TestRejoinGuest(t *testing.T) {
	lc, _, store := newTestLifecycle(10, "a", "b", "b2", "c")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)
	_, err = lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)

	// A different identity cannot take an occupied guest slot.
	_, err = lc.Rejoin(created.Code, false, "c")
	assert.ErrorIs(t, err, domain.ErrRoomFull)

	// The same identity can re-claim its own slot.
	res, err := lc.Rejoin(created.Code, false, "b")
	require.NoError(t, err)
	assert.Equal(t, domain.ClientID("a"), res.PeerID)

	// A vacant slot is claimable by anyone.
	store.Update(created.Code, "a", "")
	res, err = lc.Rejoin(created.Code, false, "b2")
	require.NoError(t, err)
	assert.False(t, res.IsHost)
	room, _ := store.Get(created.Code)
	assert.Equal(t, domain.ClientID("b2"), room.Guest)
}

func TestSwitchNextPromotesGuest(t *testing.T) {
	lc, reg, store := newTestLifecycle(10, "a", "b")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)
	_, err = lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)

	res, err := lc.SwitchNext("a")
	require.NoError(t, err)
	assert.Equal(t, []domain.ClientID{"b"}, res.Departed)

	// b was promoted to host of the old room. With no other open room
	// around, a is immediately re-matched into it as guest: the promoted
	// room is a legal candidate since its host is no longer a.
	room, ok := store.Get(created.Code)
	require.True(t, ok)
	assert.Equal(t, domain.ClientID("b"), room.Host)
	assert.Equal(t, domain.ClientID("a"), room.Guest)
	_, role, _ := reg.RoomOf("b")
	assert.Equal(t, domain.RoleHost, role)
	assert.Equal(t, created.Code, res.Code)
	assert.Equal(t, domain.ClientID("b"), res.PeerID)
	assert.False(t, res.Created)
}

func TestLeaveAndPromote(t *testing.T) {
	t.Run("host with guest promotes", func(t *testing.T) {
		lc, reg, store := newTestLifecycle(10, "a", "b")
		created, err := lc.CreateRoom("a")
		require.NoError(t, err)
		_, err = lc.JoinRoom(created.Code, "b")
		require.NoError(t, err)

		remaining := lc.leaveAndPromote("a")
		assert.Equal(t, []domain.ClientID{"b"}, remaining)

		room, ok := store.Get(created.Code)
		require.True(t, ok)
		assert.Equal(t, domain.ClientID("b"), room.Host)
		assert.Equal(t, domain.ClientID(""), room.Guest)
		_, _, bound := reg.RoomOf("a")
		assert.False(t, bound)
	})

	t.Run("host alone deletes room", func(t *testing.T) {
		lc, _, store := newTestLifecycle(10, "a")
		created, err := lc.CreateRoom("a")
		require.NoError(t, err)

		assert.Empty(t, lc.leaveAndPromote("a"))
		_, ok := store.Get(created.Code)
		assert.False(t, ok)
	})

	t.Run("guest leaves slot only", func(t *testing.T) {
		lc, _, store := newTestLifecycle(10, "a", "b")
		created, err := lc.CreateRoom("a")
		require.NoError(t, err)
		_, err = lc.JoinRoom(created.Code, "b")
		require.NoError(t, err)

		remaining := lc.leaveAndPromote("b")
		assert.Equal(t, []domain.ClientID{"a"}, remaining)

		room, ok := store.Get(created.Code)
		require.True(t, ok)
		assert.Equal(t, domain.ClientID("a"), room.Host)
		assert.Equal(t, domain.ClientID(""), room.Guest)
	})
}

func TestSwitchNextHostAloneDeletesRoom(t *testing.T) {
	lc, _, store := newTestLifecycle(10, "a")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)

	res, err := lc.SwitchNext("a")
	require.NoError(t, err)
	assert.Empty(t, res.Departed)
	assert.True(t, res.Created)

	_, ok := store.Get(created.Code)
	assert.False(t, ok, "abandoned empty room must be deleted")
	assert.Equal(t, 1, store.Count())
}

func TestSwitchNextGuestLeavesRoomIntact(t *testing.T) {
	lc, _, store := newTestLifecycle(10, "a", "b")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)
	_, err = lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)

	// The vacated room keeps its host and is the only open candidate,
	// so b is matched straight back into it.
	res, err := lc.SwitchNext("b")
	require.NoError(t, err)
	assert.Equal(t, []domain.ClientID{"a"}, res.Departed)
	assert.Equal(t, created.Code, res.Code)
	assert.Equal(t, domain.ClientID("a"), res.PeerID)
	assert.False(t, res.Created)

	room, ok := store.Get(created.Code)
	require.True(t, ok, "room persists with its host")
	assert.Equal(t, domain.ClientID("a"), room.Host)
	assert.Equal(t, 1, store.Count())
}

func TestSwitchNextExcludesOwnRoom(t *testing.T) {
	lc, _, _ := newTestLifecycle(10, "a")

	_, err := lc.CreateRoom("a")
	require.NoError(t, err)

	// The only open room is hosted by the requester, so a fresh one is
	// created instead of self-matching.
	res, err := lc.SwitchNext("a")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.IsHost)
}

func TestDisconnectDeletesRoomOutright(t *testing.T) {
	lc, _, store := newTestLifecycle(10, "a", "b")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)
	_, err = lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)

	peers := lc.Disconnect("a")
	assert.Equal(t, []domain.ClientID{"b"}, peers)

	// The whole room is gone even though b is still connected; a later
	// join on the old code reports not found.
	_, err = lc.JoinRoom(created.Code, "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, store.Count())
}

func TestDisconnectUnbound(t *testing.T) {
	lc, _, _ := newTestLifecycle(10, "a")
	assert.Empty(t, lc.Disconnect("a"))
}

func TestDisconnectConnIgnoresReplacedSocket(t *testing.T) {
	lc, reg, store := newTestLifecycle(10, "b")

	old := &nopConn{}
	reg.Bind("a", old, nil)
	created, err := lc.CreateRoom("a")
	require.NoError(t, err)
	_, err = lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)

	// The client reconnects under the same token while the old socket
	// is still draining its read deadline, then rejoins the room.
	fresh := &nopConn{}
	reg.Bind("a", fresh, nil)
	_, err = lc.Rejoin(created.Code, true, "a")
	require.NoError(t, err)

	// The old socket's teardown fires after the rebind; nothing it
	// owned is still registered, so the room and session survive.
	assert.Empty(t, lc.DisconnectConn("a", old))
	assert.True(t, reg.Live("a"))
	assert.Equal(t, 1, store.Count())
	_, ok := store.Get(created.Code)
	assert.True(t, ok)

	// Teardown keyed to the live socket still destroys the room.
	peers := lc.DisconnectConn("a", fresh)
	assert.Equal(t, []domain.ClientID{"b"}, peers)
	assert.False(t, reg.Live("a"))
	assert.Equal(t, 0, store.Count())
}

func TestPeerOf(t *testing.T) {
	lc, _, _ := newTestLifecycle(10, "a", "b", "c")

	_, ok := lc.PeerOf("a")
	assert.False(t, ok, "unbound client has no peer")

	created, err := lc.CreateRoom("a")
	require.NoError(t, err)
	_, ok = lc.PeerOf("a")
	assert.False(t, ok, "host alone has no peer")

	_, err = lc.JoinRoom(created.Code, "b")
	require.NoError(t, err)

	peer, ok := lc.PeerOf("b")
	require.True(t, ok)
	assert.Equal(t, domain.ClientID("a"), peer)

	_, ok = lc.PeerOf("c")
	assert.False(t, ok)
}
