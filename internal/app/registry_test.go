package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairwave/pairwave/internal/domain"
)

func TestRegistryBindUnbind(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Live("a"))

	r.Bind("a", &nopConn{}, nil)
	assert.True(t, r.Live("a"))
	assert.Equal(t, 1, r.Count())

	conn, ok := r.Conn("a")
	require.True(t, ok)
	assert.NotNil(t, conn)

	r.Unbind("a")
	assert.False(t, r.Live("a"))
	_, ok = r.Conn("a")
	assert.False(t, ok)
}

func TestRegistryRoomBinding(t *testing.T) {
	r := NewRegistry()

	assert.False(t, r.SetRoom("ghost", "ABC1234", domain.RoleHost), "unknown client")

	r.Bind("a", &nopConn{}, nil)
	_, _, ok := r.RoomOf("a")
	assert.False(t, ok, "fresh connection is unassigned")

	require.True(t, r.SetRoom("a", "ABC1234", domain.RoleGuest))
	code, role, ok := r.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, domain.RoomCode("ABC1234"), code)
	assert.Equal(t, domain.RoleGuest, role)

	r.ClearRoom("a")
	_, _, ok = r.RoomOf("a")
	assert.False(t, ok)
	assert.True(t, r.Live("a"), "clearing the room keeps the connection")
}

func TestRegistryBindReplacesStaleConnection(t *testing.T) {
	r := NewRegistry()

	first := &nopConn{}
	ctx, cancel := context.WithCancel(context.Background())
	stale, replaced := r.Bind("a", first, cancel)
	assert.False(t, replaced)
	assert.Nil(t, stale)
	require.True(t, r.SetRoom("a", "ABC1234", domain.RoleHost))

	second := &nopConn{}
	stale, replaced = r.Bind("a", second, nil)
	require.True(t, replaced)
	assert.Same(t, first, stale, "replaced transport is handed back for closing")
	select {
	case <-ctx.Done():
	default:
		t.Fatal("replaced connection's pumps were not cancelled")
	}

	// The rebind starts from a clean slate; room membership is
	// re-established by the client's next op.
	_, _, ok := r.RoomOf("a")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())

	conn, ok := r.Conn("a")
	require.True(t, ok)
	assert.Same(t, second, conn)
}

func TestRegistryUnbindConn(t *testing.T) {
	r := NewRegistry()

	current := &nopConn{}
	r.Bind("a", current, nil)
	require.True(t, r.SetRoom("a", "ABC1234", domain.RoleHost))

	_, ok := r.UnbindConn("a", &nopConn{})
	assert.False(t, ok, "a connection the registry no longer tracks must not unbind")
	assert.True(t, r.Live("a"))

	code, ok := r.UnbindConn("a", current)
	require.True(t, ok)
	assert.Equal(t, domain.RoomCode("ABC1234"), code)
	assert.False(t, r.Live("a"))
}
