package app

import (
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/metrics"
)

// PublishResult reports delivery stats of a broadcast.
type PublishResult struct {
	SendTo  int
	Dropped []core.Connection
}

// Router delivers events to whoever is present right now. Best effort only:
// an absent recipient means the event is gone, the persistence collaborator
// is the source of truth for history.
type Router struct {
	Registry *Registry
	Policy   Policy
	Metrics  *metrics.Metrics
}

func NewRouter(reg *Registry, policy Policy, m *metrics.Metrics) *Router {
	return &Router{Registry: reg, Policy: policy, Metrics: m}
}

// Deliver pushes ev onto target's outbound queue. It returns false when the
// target is offline or its queue refused the frame.
func (rt *Router) Deliver(target domain.UserID, ev core.Event) bool {
	conn, ok := rt.Registry.Lookup(target)
	if !ok {
		rt.Metrics.Dropped(string(ev.Kind()), "offline")
		log.Debug().Str("module", "app.router").Str("to", string(target)).Str("event", string(ev.Kind())).Msg("target offline, dropped")
		return false
	}
	frame, err := core.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("event", string(ev.Kind())).Msg("encode event")
		return false
	}
	return rt.send(conn, ev.Kind(), frame)
}

// Broadcast sends ev to every present user. Membership may change while it
// runs; late joiners can be missed and leavers can still be tried.
func (rt *Router) Broadcast(ev core.Event) PublishResult {
	res := PublishResult{}
	frame, err := core.Encode(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("event", string(ev.Kind())).Msg("encode event")
		return res
	}
	for _, snap := range rt.Registry.members() {
		if !rt.send(snap.Conn, ev.Kind(), frame) {
			res.Dropped = append(res.Dropped, snap.Conn)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "app.router").Str("event", string(ev.Kind())).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// NotifyMessage forwards a message the persistence collaborator already stored.
func (rt *Router) NotifyMessage(receiver domain.UserID, message json.RawMessage) bool {
	return rt.Deliver(receiver, core.NewMessageEvent(message))
}

// NotifyReaction forwards the reaction list of a stored message.
func (rt *Router) NotifyReaction(receiver domain.UserID, messageID string, reactions []domain.Reaction) bool {
	return rt.Deliver(receiver, core.ReactionUpdateEvent(messageID, reactions))
}

func (rt *Router) send(conn core.Connection, kind core.EventType, frame core.Frame) bool {
	err := conn.TrySend(frame)
	if err == nil {
		rt.Metrics.Delivered(string(kind))
		return true
	}
	if !errors.Is(err, core.ErrBackpressure) {
		rt.Metrics.Dropped(string(kind), "closed")
		return false
	}
	rt.Metrics.Dropped(string(kind), "backpressure")
	if rt.Policy == nil {
		return false
	}
	switch rt.Policy.OnBackPressure(conn, kind) {
	case CloseConnection:
		log.Warn().Str("module", "app.router").Str("user", string(conn.User().ID)).Str("conn", string(conn.ID())).Msg("slow connection closed")
		conn.Close()
	case DropEvent, NoAction:
	}
	return false
}
