package signal

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
)

// Inbound tags sent by clients.
const (
	msgCallUser     = "call-user"
	msgAnswerCall   = "answer-call"
	msgRejectCall   = "reject-call"
	msgIceCandidate = "ice-candidate"
	msgEndCall      = "end-call"
	msgPing         = "ping"
	msgWhoAmI       = "whoami"
)

// Error codes carried by error events.
const (
	codeNotReachable  = "not_reachable"
	codeInvalidState  = "invalid_state"
	codeBusy          = "busy"
	codeInvalidTarget = "invalid_target"
	codeRateLimited   = "rate_limited"
	codeBadPayload    = "bad_payload"
	codeUnknownType   = "unknown_type"
	codeInternal      = "internal"
)

// writePump is the only writer of the socket. Frames leave in queue order.
func (ctl *SignalWSController) writePump(ctx context.Context, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
		ctl.wg.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Str("conn", string(c.id)).Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.opts.WriteWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump serves inbound events until the socket fails. Its deferred
// cleanup is the single exit path that unregisters the connection.
func (ctl *SignalWSController) readPump(ctx context.Context, c *wsSignalConn) {
	uid := string(c.user.ID)
	defer func() {
		log.Info().Str("module", "signal").Str("user", uid).Str("conn", string(c.id)).Msg("readPump closing")
		c.Close()
		if ctl.Orch.Disconnect(c) && ctl.Limiter != nil {
			ctl.Limiter.Forget(c.user.ID)
		}
		ctl.wg.Done()
	}()

	c.conn.SetReadLimit(ctl.opts.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(ctl.opts.PongWait))
	})

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Str("user", uid).Msg("readPump ctx done")
			return
		default:
		}
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("module", "signal").Str("user", uid).Msg("readPump read error")
			}
			return
		}
		ctl.handleSignal(c, data)
	}
}

func (ctl *SignalWSController) handleSignal(c *wsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(c.user.ID)).Msg("bad json")
		ctl.sendError(c, "", codeBadPayload, "bad json")
		return
	}

	switch env.Type {
	case msgCallUser:
		ctl.handleCallUser(c, data)
	case msgAnswerCall:
		ctl.handleAnswerCall(c, data)
	case msgRejectCall:
		ctl.handleRejectCall(c)
	case msgIceCandidate:
		ctl.handleCandidate(c, data)
	case msgEndCall:
		ctl.handleEndCall(c)
	case msgPing:
		ctl.handlePing(c)
	case msgWhoAmI:
		ctl.handleWhoAmI(c)
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown signal")
		ctl.sendError(c, env.Type, codeUnknownType, "unknown type")
	}
}

func (ctl *SignalWSController) sendJSON(c *wsSignalConn, ev core.Event) {
	b, err := core.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(c.id)).Str("event", string(ev.Kind())).Msg("reply dropped")
	}
}

func (ctl *SignalWSController) sendError(c *wsSignalConn, event, code, msg string) {
	ctl.sendJSON(c, core.NewErrorEvent(event, code, msg))
}

// replyErr turns a coordinator rejection into a soft error event.
func (ctl *SignalWSController) replyErr(c *wsSignalConn, event string, err error) {
	code := codeInternal
	switch {
	case errors.Is(err, app.ErrNotReachable):
		code = codeNotReachable
	case errors.Is(err, app.ErrInvalidSignalingState), errors.Is(err, app.ErrStaleConnection):
		code = codeInvalidState
	case errors.Is(err, app.ErrBusy):
		code = codeBusy
	case errors.Is(err, app.ErrInvalidTarget), errors.Is(err, errNoTarget):
		code = codeInvalidTarget
	case errors.Is(err, ErrRateLimited):
		code = codeRateLimited
	}
	log.Info().Err(err).Str("module", "signal").Str("user", string(c.user.ID)).Str("event", event).Str("code", code).Msg("signal rejected")
	ctl.sendError(c, event, code, err.Error())
}
