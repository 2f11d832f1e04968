package signal

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/app/orch"
	"github.com/dkeye/Chat/internal/auth"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// Options are the per-connection transport limits.
type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  64 * 1024,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  10 * time.Second,
		SendBuffer: 64,
	}
}

type SignalWSController struct {
	Orch    *orch.Orchestrator
	Auth    auth.Authenticator
	Limiter *CallRateLimiter
	opts    Options

	upgrader websocket.Upgrader
	wg       sync.WaitGroup
}

func NewSignalWSController(o *orch.Orchestrator, a auth.Authenticator, limiter *CallRateLimiter, opts Options) *SignalWSController {
	ctl := &SignalWSController{
		Orch:    o,
		Auth:    a,
		Limiter: limiter,
		opts:    opts,
	}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: checkOrigin(opts.AllowedOrigins)}
	return ctl
}

// Wait blocks until every connection task has finished its cleanup.
func (ctl *SignalWSController) Wait() {
	ctl.wg.Wait()
}

// wsSignalConn is the core.Connection behind one websocket.
type wsSignalConn struct {
	id     core.ConnID
	user   *domain.User
	conn   *websocket.Conn
	send   chan core.Frame
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) ID() core.ConnID { return c.id }
func (c *wsSignalConn) User() *domain.User { return c.user }

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.cancel()
	_ = c.conn.Close()
	c.mu.Unlock()
}

// HandleSignal authenticates, upgrades and starts the connection task.
// ctx is the server lifetime, not the request's.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	user, err := ctl.Auth.Authenticate(c)
	if err != nil {
		ctl.Orch.Metrics.Connection("unauthenticated")
		log.Warn().Err(err).Str("module", "signal").Str("remote", c.ClientIP()).Msg("rejected connection")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("user", string(user.ID)).Msg("ws upgrade")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	conn := &wsSignalConn{
		id:     core.ConnID(uuid.NewString()),
		user:   user,
		conn:   ws,
		send:   make(chan core.Frame, ctl.opts.SendBuffer),
		cancel: cancel,
	}
	log.Info().Str("module", "signal").Str("user", string(user.ID)).Str("conn", string(conn.id)).Msg("new WS connection")

	ctl.Orch.Connect(conn)

	ctl.wg.Add(2)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, conn)
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		_, ok := set[u.Scheme+"://"+u.Host]
		return ok
	}
}

var errNoTarget = errors.New("missing target identity")
