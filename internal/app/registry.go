package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pairwave/pairwave/internal/core"
	"github.com/pairwave/pairwave/internal/domain"
)

type connEntry struct {
	Room   domain.RoomCode
	Role   domain.Role
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry tracks every live connection: its identity, transport endpoint,
// and current room binding. It owns the Connection entries exclusively;
// entries are created on connect and destroyed on disconnect.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.ClientID]*connEntry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[domain.ClientID]*connEntry)}
}

// Bind registers a freshly connected client with an unassigned role.
// Identities are cookie-stable, so a reconnecting client (or a second
// tab) rebinds an identity whose previous socket may still be draining:
// the replaced entry's pumps are canceled here and its transport is
// returned for the adapter to close. The replacement starts unassigned;
// recovering the old room is the rejoin flow's job.
func (r *Registry) Bind(id domain.ClientID, conn core.SignalConnection, cancel context.CancelFunc) (core.SignalConnection, bool) {
	r.mu.Lock()
	old := r.conns[id]
	r.conns[id] = &connEntry{Conn: conn, Cancel: cancel}
	r.mu.Unlock()
	if old == nil {
		log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("bound connection")
		return nil, false
	}
	if old.Cancel != nil {
		old.Cancel()
	}
	log.Warn().Str("module", "app.registry").Str("client", string(id)).Msg("rebound connection, replaced a live socket")
	return old.Conn, true
}

// Unbind drops the entry, returning the room binding it held. The
// adapter owns and closes the transport itself.
func (r *Registry) Unbind(id domain.ClientID) (domain.RoomCode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return "", false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("unbound connection")
	return e.Room, true
}

// UnbindConn drops the entry only while it still references conn. A
// stale socket whose identity was rebound to a newer connection gets
// ("", false) and must leave the new state alone.
func (r *Registry) UnbindConn(id domain.ClientID, conn core.SignalConnection) (domain.RoomCode, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok || e.Conn != conn {
		return "", false
	}
	delete(r.conns, id)
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("unbound connection")
	return e.Room, true
}

// Conn returns the transport endpoint of a live client.
func (r *Registry) Conn(id domain.ClientID) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.conns[id]; ok {
		return e.Conn, true
	}
	return nil, false
}

// Live reports whether the client currently has a registered connection.
func (r *Registry) Live(id domain.ClientID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[id]
	return ok
}

// RoomOf returns the client's current room binding, if any.
func (r *Registry) RoomOf(id domain.ClientID) (domain.RoomCode, domain.Role, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.conns[id]
	if !ok || e.Room == "" {
		return "", domain.RoleUnassigned, false
	}
	return e.Room, e.Role, true
}

// SetRoom records the client's room and role after a lifecycle transition.
func (r *Registry) SetRoom(id domain.ClientID, code domain.RoomCode, role domain.Role) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.conns[id]
	if !ok {
		return false
	}
	e.Room = code
	e.Role = role
	log.Info().Str("module", "app.registry").Str("client", string(id)).
		Str("room", string(code)).Str("role", role.String()).Msg("updated room")
	return true
}

// ClearRoom drops the room association but keeps the connection.
func (r *Registry) ClearRoom(id domain.ClientID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.conns[id]; ok {
		e.Room = ""
		e.Role = domain.RoleUnassigned
	}
	log.Info().Str("module", "app.registry").Str("client", string(id)).Msg("cleared room association")
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
