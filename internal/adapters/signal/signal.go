package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/physio/internal/app/orch"
	"github.com/dkeye/physio/internal/config"
	"github.com/dkeye/physio/internal/core"
	"github.com/dkeye/physio/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc"
)

var ErrBackpressure = errors.New("backpressure")

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteTimeout   time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

func OptionsFrom(cfg *config.Config) Options {
	return Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteTimeout:   cfg.WriteTimeout,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	}
}

type SignalWSController struct {
	Orch     *orch.Orchestrator
	opts     Options
	upgrader websocket.Upgrader
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	return &SignalWSController{
		Orch: o,
		opts: opts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(opts.AllowedOrigins) == 0 || lo.Contains(opts.AllowedOrigins, origin)
			},
		},
	}
}

// WsSignalConn is the core.Channel over one websocket. Close only stops
// accepting frames; the write pump flushes what is queued, then closes the
// socket.
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
		return core.ErrChannelClosed
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
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// HandleSignal upgrades GET /ws/:code/:userId and binds the socket to that
// member of the room.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	code := domain.SessionCode(c.Param("code"))
	id := domain.ParticipantID(c.Param("userId"))
	client := c.GetString("client_token")
	log.Info().Str("module", "signal").Str("code", string(code)).Str("participant", string(id)).Str("client", client).Msg("new WS connection")

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.opts.SendBuffer),
	}
	if _, err := ctl.Orch.Connect(code, id, conn); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("code", string(code)).Str("participant", string(id)).Msg("connect refused")
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(ctl.opts.WriteTimeout))
		_ = ws.Close()
		return
	}

	go ctl.serve(ctx, code, id, conn)
}

func (ctl *SignalWSController) serve(ctx context.Context, code domain.SessionCode, id domain.ParticipantID, conn *WsSignalConn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg conc.WaitGroup
	wg.Go(func() { ctl.writePump(ctx, conn) })
	wg.Go(func() {
		defer cancel()
		ctl.readPump(code, id, conn)
	})
	if r := wg.WaitAndRecover(); r != nil {
		log.Error().Str("module", "signal").Str("code", string(code)).Str("participant", string(id)).Str("panic", r.String()).Msg("pump panic recovered")
		ctl.Orch.Disconnect(code, id, conn)
		conn.Close()
	}
}
