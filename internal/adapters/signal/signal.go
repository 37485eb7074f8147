package signal

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"

	"github.com/dkeye/RoomChat/internal/app/orch"
	"github.com/dkeye/RoomChat/internal/config"
	"github.com/dkeye/RoomChat/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// SignalWSController accepts WebSocket connections and hands each one to the
// orchestrator. It tracks every goroutine it starts so shutdown can wait.
type SignalWSController struct {
	Orch *orch.Orchestrator

	cfg      *config.Config
	upgrader websocket.Upgrader
	wg       conc.WaitGroup
}

func NewSignalWSController(o *orch.Orchestrator, cfg *config.Config) *SignalWSController {
	return &SignalWSController{
		Orch: o,
		cfg:  cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewWsSignalConn(conn *websocket.Conn, buffer int) *WsSignalConn {
	if buffer <= 0 {
		buffer = 256
	}
	return &WsSignalConn{
		conn: conn,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
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

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := core.SessionID(uuid.NewString())
	logger := log.With().Str("module", "signal").Str("sid", string(sid)).Str("client", c.GetString("client_token")).Logger()

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error().Err(err).Msg("ws upgrade")
		return
	}
	logger.Info().Str("remote", c.Request.RemoteAddr).Msg("new WS connection")

	conn := NewWsSignalConn(ws, ctl.cfg.SendBuffer)
	conn.setupRead(ctl.cfg.ReadLimit, ctl.cfg.PongWait)

	ctx, cancel := context.WithCancel(ctx)
	ctl.wg.Go(func() {
		ctl.writePump(ctx, conn)
	})
	ctl.wg.Go(func() {
		defer cancel()
		defer conn.Close()
		_ = ctl.Orch.Serve(ctx, sid, conn)
	})
}

// Wait blocks until every connection goroutine has finished or timeout
// elapses.
func (ctl *SignalWSController) Wait(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		ctl.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
