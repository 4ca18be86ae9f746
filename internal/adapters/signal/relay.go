package signal

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/pairwave/pairwave/internal/domain"
)

// handleRelay forwards an offer, answer or ice-candidate payload to the
// sender's room peer. The payload is opaque and forwarded byte-identical.
// The target is validated against the sender's recorded peer: any other
// target is dropped, so a connection can never signal an identity it is
// not paired with.
func (ctl *SignalWSController) handleRelay(id domain.ClientID, kind string, data []byte) {
	var p struct {
		Type    string          `json:"type"`
		To      domain.ClientID `json:"to"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Error().Err(err).Str("module", "signal").Str("kind", kind).Msg("bad relay payload")
		return
	}
	if !ctl.allowedTarget(id, p.To, kind) {
		return
	}

	ctl.push(p.To, struct {
		Type    string          `json:"type"`
		From    domain.ClientID `json:"from"`
		Payload json.RawMessage `json:"payload"`
	}{kind, id, p.Payload})
}

// handleChat forwards a chat line to the sender's room peer, stamped
// with the server's clock.
func (ctl *SignalWSController) handleChat(id domain.ClientID, data []byte) {
	var p struct {
		Type    string          `json:"type"`
		To      domain.ClientID `json:"to"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		log.Error().Err(err).Str("module", "signal").Msg("bad chat payload")
		return
	}
	if !ctl.allowedTarget(id, p.To, "chat-message") {
		return
	}

	ctl.push(p.To, struct {
		Type      string          `json:"type"`
		From      domain.ClientID `json:"from"`
		Message   string          `json:"message"`
		Timestamp int64           `json:"timestamp"`
	}{"chat-message", id, p.Message, time.Now().UnixMilli()})
}

func (ctl *SignalWSController) allowedTarget(id, to domain.ClientID, kind string) bool {
	peer, ok := ctl.Lifecycle.PeerOf(id)
	if !ok || peer != to {
		log.Warn().Str("module", "signal").Str("client", string(id)).
			Str("to", string(to)).Str("kind", kind).Msg("relay target is not the room peer, dropped")
		return false
	}
	return true
}

func (ctl *SignalWSController) handlePing(c *WsSignalConn) {
	ctl.sendJSON(c, struct {
		Type string `json:"type"`
	}{"pong"})
}
