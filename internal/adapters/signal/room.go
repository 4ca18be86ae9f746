package signal

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/pairwave/pairwave/internal/domain"
)

type peerJoinedMsg struct {
	Type   string          `json:"type"`
	PeerID domain.ClientID `json:"peerId"`
}

type peerReconnectedMsg struct {
	Type   string          `json:"type"`
	PeerID domain.ClientID `json:"peerId"`
}

type peerDisconnectedMsg struct {
	Type string `json:"type"`
}

type matchResultMsg struct {
	Type    string          `json:"type"`
	Code    domain.RoomCode `json:"code"`
	PeerID  domain.ClientID `json:"peerId,omitempty"`
	IsHost  bool            `json:"isHost"`
	Created bool            `json:"created"`
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrRoomFull):
		return "room_full"
	case errors.Is(err, domain.ErrStale):
		return "stale"
	default:
		return "internal"
	}
}

func (ctl *SignalWSController) sendError(c *WsSignalConn, op, code string) {
	ctl.sendJSON(c, struct {
		Type  string `json:"type"`
		Op    string `json:"op"`
		Error string `json:"error"`
	}{"error", op, code})
}

// allow applies the per-client rate limit to room-mutating ops.
func (ctl *SignalWSController) allow(id domain.ClientID, c *WsSignalConn, op string) bool {
	if ctl.limiter.Allow(id) {
		return true
	}
	log.Warn().Str("module", "signal").Str("client", string(id)).Str("op", op).Msg("rate limited")
	ctl.sendError(c, op, "rate_limited")
	return false
}

func (ctl *SignalWSController) handleCreateRoom(id domain.ClientID, c *WsSignalConn) {
	if !ctl.allow(id, c, "create-room") {
		return
	}
	res, err := ctl.Lifecycle.CreateRoom(id)
	if err != nil {
		ctl.sendError(c, "create-room", errorCode(err))
		return
	}
	ctl.sendJSON(c, struct {
		Type   string          `json:"type"`
		Code   domain.RoomCode `json:"code"`
		IsHost bool            `json:"isHost"`
	}{"room-created", res.Code, res.IsHost})
}

func (ctl *SignalWSController) handleJoinRoom(id domain.ClientID, c *WsSignalConn, data []byte) {
	if !ctl.allow(id, c, "join-room") {
		return
	}
	var p struct {
		Type string          `json:"type"`
		Code domain.RoomCode `json:"code"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Code == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad join payload")
		ctl.sendError(c, "join-room", "bad_payload")
		return
	}

	res, err := ctl.Lifecycle.JoinRoom(p.Code, id)
	if err != nil {
		ctl.sendError(c, "join-room", errorCode(err))
		return
	}
	ctl.sendJSON(c, struct {
		Type   string          `json:"type"`
		Code   domain.RoomCode `json:"code"`
		PeerID domain.ClientID `json:"peerId"`
		IsHost bool            `json:"isHost"`
	}{"room-joined", res.Code, res.PeerID, res.IsHost})

	ctl.push(res.PeerID, peerJoinedMsg{Type: "peer-joined", PeerID: id})
}

func (ctl *SignalWSController) handleJoinRandom(id domain.ClientID, c *WsSignalConn) {
	if !ctl.allow(id, c, "join-random-room") {
		return
	}
	res, err := ctl.Lifecycle.JoinRandom(id)
	if err != nil {
		ctl.sendError(c, "join-random-room", errorCode(err))
		return
	}
	ctl.sendJSON(c, matchResultMsg{
		Type:    "room-matched",
		Code:    res.Code,
		PeerID:  res.PeerID,
		IsHost:  res.IsHost,
		Created: res.Created,
	})
	if res.PeerID != "" {
		ctl.push(res.PeerID, peerJoinedMsg{Type: "peer-joined", PeerID: id})
	}
}

func (ctl *SignalWSController) handleRejoin(id domain.ClientID, c *WsSignalConn, data []byte) {
	if !ctl.allow(id, c, "rejoin-room") {
		return
	}
	var p struct {
		Type    string          `json:"type"`
		Code    domain.RoomCode `json:"code"`
		WasHost bool            `json:"wasHost"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Code == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad rejoin payload")
		ctl.sendError(c, "rejoin-room", "bad_payload")
		return
	}

	res, err := ctl.Lifecycle.Rejoin(p.Code, p.WasHost, id)
	if err != nil {
		ctl.sendError(c, "rejoin-room", errorCode(err))
		return
	}
	ctl.sendJSON(c, struct {
		Type   string          `json:"type"`
		Code   domain.RoomCode `json:"code"`
		PeerID domain.ClientID `json:"peerId,omitempty"`
		IsHost bool            `json:"isHost"`
	}{"room-rejoined", res.Code, res.PeerID, res.IsHost})

	if res.PeerID != "" {
		ctl.push(res.PeerID, peerReconnectedMsg{Type: "peer-reconnected", PeerID: id})
	}
}

func (ctl *SignalWSController) handleSwitchNext(id domain.ClientID, c *WsSignalConn) {
	if !ctl.allow(id, c, "switch-to-next") {
		return
	}
	res, err := ctl.Lifecycle.SwitchNext(id)
	for _, peer := range res.Departed {
		ctl.push(peer, peerDisconnectedMsg{Type: "peer-disconnected"})
	}
	if err != nil {
		ctl.sendError(c, "switch-to-next", errorCode(err))
		return
	}
	ctl.sendJSON(c, matchResultMsg{
		Type:    "room-matched",
		Code:    res.Code,
		PeerID:  res.PeerID,
		IsHost:  res.IsHost,
		Created: res.Created,
	})
	if res.PeerID != "" {
		ctl.push(res.PeerID, peerJoinedMsg{Type: "peer-joined", PeerID: id})
	}
}
