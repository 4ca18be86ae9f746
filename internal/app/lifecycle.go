package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pairwave/pairwave/internal/core"
	"github.com/pairwave/pairwave/internal/domain"
)

// CreateResult is returned by CreateRoom.
type CreateResult struct {
	Code   domain.RoomCode
	IsHost bool
}

// JoinResult is returned by JoinRoom. PeerID is the room's host, which
// the adapter notifies with peer-joined.
type JoinResult struct {
	Code   domain.RoomCode
	PeerID domain.ClientID
	IsHost bool
}

// MatchResult is returned by JoinRandom and embedded in SwitchResult.
// Created reports whether no candidate existed and a fresh room was
// allocated instead; PeerID is empty in that case.
type MatchResult struct {
	Code    domain.RoomCode
	PeerID  domain.ClientID
	IsHost  bool
	Created bool
}

// RejoinResult is returned by Rejoin. PeerID may be empty when a host
// rejoins a room whose guest slot is vacant.
type RejoinResult struct {
	Code   domain.RoomCode
	PeerID domain.ClientID
	IsHost bool
}

// SwitchResult is returned by SwitchNext. Departed lists the members of
// the abandoned room that the adapter must notify with peer-disconnected.
type SwitchResult struct {
	MatchResult
	Departed []domain.ClientID
}

// Lifecycle drives every room-mutating transition. A single mutex
// serialises all transitions, so a pair of concurrent joins on the same
// room cannot race: the first handler observes and updates the guest
// slot atomically with respect to the second.
type Lifecycle struct {
	mu       sync.Mutex
	registry *Registry
	store    *RoomStore
	match    *Matchmaker
}

func NewLifecycle(registry *Registry, store *RoomStore) *Lifecycle {
	return &Lifecycle{
		registry: registry,
		store:    store,
		match:    NewMatchmaker(store),
	}
}

// CreateRoom allocates a fresh room with the requester as host.
func (l *Lifecycle) CreateRoom(requester domain.ClientID) (CreateResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, err := l.store.Create(requester)
	if err != nil {
		return CreateResult{}, err
	}
	l.registry.SetRoom(requester, room.Code, domain.RoleHost)
	log.Info().Str("module", "app.lifecycle").Str("client", string(requester)).
		Str("room", string(room.Code)).Msg("created room")
	return CreateResult{Code: room.Code, IsHost: true}, nil
}

// JoinRoom claims the guest slot of the room with the given code.
func (l *Lifecycle) JoinRoom(code domain.RoomCode, requester domain.ClientID) (JoinResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, ok := l.store.Get(code)
	if !ok {
		return JoinResult{}, domain.ErrNotFound
	}
	if room.Guest != "" {
		return JoinResult{}, domain.ErrRoomFull
	}

	l.store.Update(code, room.Host, requester)
	l.registry.SetRoom(requester, code, domain.RoleGuest)
	log.Info().Str("module", "app.lifecycle").Str("client", string(requester)).
		Str("room", string(code)).Msg("joined room")
	return JoinResult{Code: code, PeerID: room.Host, IsHost: false}, nil
}

// JoinRandom pairs the requester with the first open room, or falls back
// to creating a fresh one when no candidate exists.
func (l *Lifecycle) JoinRandom(requester domain.ClientID) (MatchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if room, ok := l.match.FirstOpen(); ok {
		l.store.Update(room.Code, room.Host, requester)
		l.registry.SetRoom(requester, room.Code, domain.RoleGuest)
		log.Info().Str("module", "app.lifecycle").Str("client", string(requester)).
			Str("room", string(room.Code)).Msg("matched into room")
		return MatchResult{Code: room.Code, PeerID: room.Host, IsHost: false}, nil
	}

	room, err := l.store.Create(requester)
	if err != nil {
		return MatchResult{}, err
	}
	l.registry.SetRoom(requester, room.Code, domain.RoleHost)
	log.Info().Str("module", "app.lifecycle").Str("client", string(requester)).
		Str("room", string(room.Code)).Msg("no open rooms, created one")
	return MatchResult{Code: room.Code, IsHost: true, Created: true}, nil
}

// Rejoin recovers a session after a transient reconnect. A returning
// host overwrites the host slot unconditionally, last writer wins. A
// returning guest may only claim a vacant slot or one it already holds.
func (l *Lifecycle) Rejoin(code domain.RoomCode, wasHost bool, requester domain.ClientID) (RejoinResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	room, ok := l.store.Get(code)
	if !ok {
		return RejoinResult{}, domain.ErrStale
	}

	if wasHost {
		l.store.Update(code, requester, room.Guest)
		l.registry.SetRoom(requester, code, domain.RoleHost)
		log.Info().Str("module", "app.lifecycle").Str("client", string(requester)).
			Str("room", string(code)).Msg("host rejoined")
		return RejoinResult{Code: code, PeerID: room.Guest, IsHost: true}, nil
	}

	if room.Guest != "" && room.Guest != requester {
		return RejoinResult{}, domain.ErrRoomFull
	}
	l.store.Update(code, room.Host, requester)
	l.registry.SetRoom(requester, code, domain.RoleGuest)
	log.Info().Str("module", "app.lifecycle").Str("client", string(requester)).
		Str("room", string(code)).Msg("guest rejoined")
	return RejoinResult{Code: code, PeerID: room.Host, IsHost: false}, nil
}

// SwitchNext leaves the current room, promoting a remaining guest to
// host (or deleting the room when the requester was alone), then pairs
// the requester with a random open room hosted by someone else. The
// fallback create enforces the capacity bound like every other create.
func (l *Lifecycle) SwitchNext(requester domain.ClientID) (SwitchResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	departed := l.leaveAndPromote(requester)

	if room, ok := l.match.RandomOpen(requester); ok {
		l.store.Update(room.Code, room.Host, requester)
		l.registry.SetRoom(requester, room.Code, domain.RoleGuest)
		log.Info().Str("module", "app.lifecycle").Str("client", string(requester)).
			Str("room", string(room.Code)).Msg("switched into room")
		return SwitchResult{
			MatchResult: MatchResult{Code: room.Code, PeerID: room.Host, IsHost: false},
			Departed:    departed,
		}, nil
	}

	room, err := l.store.Create(requester)
	if err != nil {
		return SwitchResult{Departed: departed}, err
	}
	l.registry.SetRoom(requester, room.Code, domain.RoleHost)
	log.Info().Str("module", "app.lifecycle").Str("client", string(requester)).
		Str("room", string(room.Code)).Msg("no open rooms to switch into, created one")
	return SwitchResult{
		MatchResult: MatchResult{Code: room.Code, IsHost: true, Created: true},
		Departed:    departed,
	}, nil
}

// Disconnect destroys the requester's registry entry and tears down its
// room on connection loss, returning the remaining members to notify.
// The whole room is deleted even when a peer is still connected; the
// survivor must rejoin or re-match. Asymmetric with SwitchNext's
// promotion on purpose: this mirrors the long-standing observable
// behavior clients rely on.
func (l *Lifecycle) Disconnect(requester domain.ClientID) []domain.ClientID {
	l.mu.Lock()
	defer l.mu.Unlock()

	code, ok := l.registry.Unbind(requester)
	if !ok {
		return nil
	}
	return l.dropRoom(requester, code)
}

// DisconnectConn is Disconnect keyed to a specific transport: teardown
// happens only while the registry still maps the identity to conn. A
// socket that was replaced by a newer connection for the same identity
// (reconnect before the pong deadline, a second tab) exits without
// touching the new connection's state.
func (l *Lifecycle) DisconnectConn(id domain.ClientID, conn core.SignalConnection) []domain.ClientID {
	l.mu.Lock()
	defer l.mu.Unlock()

	code, ok := l.registry.UnbindConn(id, conn)
	if !ok {
		log.Info().Str("module", "app.lifecycle").Str("client", string(id)).
			Msg("stale socket exit, state owned by newer connection")
		return nil
	}
	return l.dropRoom(id, code)
}

func (l *Lifecycle) dropRoom(id domain.ClientID, code domain.RoomCode) []domain.ClientID {
	if code == "" {
		return nil
	}
	room, ok := l.store.Get(code)
	if !ok {
		return nil
	}
	var peers []domain.ClientID
	if p := room.PeerOf(id); p != "" {
		peers = append(peers, p)
	}
	l.store.Delete(code)
	log.Info().Str("module", "app.lifecycle").Str("client", string(id)).
		Str("room", string(code)).Msg("disconnected, room deleted")
	return peers
}

// PeerOf returns the requester's current room peer. The signaling relay
// uses it as a capability check: a payload may only target the peer the
// sender is actually paired with.
func (l *Lifecycle) PeerOf(requester domain.ClientID) (domain.ClientID, bool) {
	code, _, ok := l.registry.RoomOf(requester)
	if !ok {
		return "", false
	}
	room, ok := l.store.Get(code)
	if !ok {
		return "", false
	}
	peer := room.PeerOf(requester)
	return peer, peer != ""
}

// leaveAndPromote removes the requester from its current room. A host
// leaving hands the room to the guest; a host alone deletes it; a guest
// leaving only vacates the slot. Returns the members left behind.
func (l *Lifecycle) leaveAndPromote(requester domain.ClientID) []domain.ClientID {
	code, _, ok := l.registry.RoomOf(requester)
	if !ok {
		return nil
	}
	room, ok := l.store.Get(code)
	if !ok {
		l.registry.ClearRoom(requester)
		return nil
	}

	var remaining []domain.ClientID
	switch requester {
	case room.Host:
		if room.Guest != "" {
			remaining = append(remaining, room.Guest)
			l.store.Update(code, room.Guest, "")
			l.registry.SetRoom(room.Guest, code, domain.RoleHost)
			log.Info().Str("module", "app.lifecycle").Str("room", string(code)).
				Str("client", string(room.Guest)).Msg("guest promoted to host")
		} else {
			l.store.Delete(code)
		}
	case room.Guest:
		if room.Host != "" {
			remaining = append(remaining, room.Host)
		}
		l.store.Update(code, room.Host, "")
	}
	l.registry.ClearRoom(requester)
	return remaining
}
