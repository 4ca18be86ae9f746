package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pairwave/pairwave/internal/app"
	"github.com/pairwave/pairwave/internal/config"
	"github.com/pairwave/pairwave/internal/core"
	"github.com/pairwave/pairwave/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

// SignalWSController terminates the websocket signaling channel and
// dispatches client ops to the lifecycle manager.
type SignalWSController struct {
	Lifecycle *app.Lifecycle
	Registry  *app.Registry

	limiter    *OpRateLimiter
	pongWait   time.Duration
	pingPeriod time.Duration
	readLimit  int64
}

func NewSignalWSController(lc *app.Lifecycle, reg *app.Registry, cfg *config.Config) *SignalWSController {
	return &SignalWSController{
		Lifecycle:  lc,
		Registry:   reg,
		limiter:    NewOpRateLimiter(10, 10*time.Second),
		pongWait:   cfg.PongWait,
		pingPeriod: cfg.PingPeriod,
		readLimit:  cfg.ReadLimit,
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	id := domain.ClientID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("client", string(id)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	if stale, replaced := ctl.Registry.Bind(id, conn, cancel); replaced {
		stale.Close()
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, id, conn)
}

// onDisconnect runs once per connection, when its read pump exits. The
// transport is passed through so a socket the registry has already
// replaced (the client reconnected under the same token) cannot tear
// down the new connection's room.
func (ctl *SignalWSController) onDisconnect(id domain.ClientID, conn core.SignalConnection) {
	for _, peer := range ctl.Lifecycle.DisconnectConn(id, conn) {
		ctl.push(peer, peerDisconnectedMsg{Type: "peer-disconnected"})
	}
}
