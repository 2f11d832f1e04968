package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/metrics"
)

// Orchestrator is the only writer of the presence registry. Adapters call
// Connect once a connection is authenticated and Disconnect on every exit
// path of that connection.
type Orchestrator struct {
	Registry *app.Registry
	Router   *app.Router
	Calls    *app.Coordinator
	Metrics  *metrics.Metrics
}

// Connect registers conn, closes the connection it replaced and broadcasts
// the new online set.
func (o *Orchestrator) Connect(conn core.Connection) {
	uid := conn.User().ID
	evicted := o.Registry.Register(uid, conn)
	if evicted != nil {
		o.Metrics.Connection("evicted")
		evicted.Close()
		// The old channel negotiated the call; the new one knows nothing of it.
		o.Calls.EndCallsOf(evicted, core.ReasonReplaced)
		log.Info().Str("module", "app.orch").Str("user", string(uid)).Str("evicted", string(evicted.ID())).Msg("closed replaced connection")
	}
	o.Metrics.Connection("accepted")
	o.Metrics.SetOnlineUsers(o.Registry.Count())
	o.broadcastPresence()
}

// Disconnect unregisters conn. When conn was still the live entry, calls
// involving the user are ended and peers learn the new online set. A
// connection that was already replaced changes nothing: the replacement's
// Connect did the broadcast.
func (o *Orchestrator) Disconnect(conn core.Connection) bool {
	uid := conn.User().ID
	if !o.Registry.Unregister(uid, conn) {
		log.Debug().Str("module", "app.orch").Str("user", string(uid)).Str("conn", string(conn.ID())).Msg("disconnect of replaced connection")
		return false
	}
	o.Calls.EndCallsOf(conn, core.ReasonDisconnected)
	o.Metrics.SetOnlineUsers(o.Registry.Count())
	o.broadcastPresence()
	log.Info().Str("module", "app.orch").Str("user", string(uid)).Msg("user offline")
	return true
}

func (o *Orchestrator) broadcastPresence() {
	online := o.Registry.Snapshot()
	res := o.Router.Broadcast(core.OnlineUsersEvent(online))
	log.Debug().Str("module", "app.orch").Int("online", len(online)).Int("sent_to", res.SendTo).Msg("presence broadcast")
}
