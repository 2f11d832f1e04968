package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/metrics"
)

// CallSession is one signaling exchange between two users.
type CallSession struct {
	ID         string
	Caller     domain.UserID
	Callee     domain.UserID
	State      domain.CallState
	CreatedAt  time.Time
	AnsweredAt time.Time

	callerConn core.ConnID
	calleeConn core.ConnID
	timer      *time.Timer
}

// Peer returns the other participant.
func (s *CallSession) Peer(uid domain.UserID) domain.UserID {
	if uid == s.Caller {
		return s.Callee
	}
	return s.Caller
}

// connOf is the connection uid used when the session was set up.
func (s *CallSession) connOf(uid domain.UserID) core.ConnID {
	if uid == s.Caller {
		return s.callerConn
	}
	return s.calleeConn
}

func (s *CallSession) view() CallSession {
	v := *s
	v.timer = nil
	return v
}

// Coordinator owns the call table. Every session is indexed under both
// participants, so a user is in at most one call. Removing a session and
// queueing its call-ended notice happen under the same lock.
type Coordinator struct {
	mu     sync.Mutex
	byUser map[domain.UserID]*CallSession
	byID   map[string]*CallSession

	registry    *Registry
	router      *Router
	metrics     *metrics.Metrics
	ringTimeout time.Duration
	now         func() time.Time
}

type CoordinatorOption func(*Coordinator)

// WithRingTimeout ends calls nobody answered within d. Zero disables it.
func WithRingTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.ringTimeout = d }
}

func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) { c.now = now }
}

func WithCallMetrics(m *metrics.Metrics) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = m }
}

func NewCoordinator(reg *Registry, router *Router, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		byUser:   make(map[domain.UserID]*CallSession),
		byID:     make(map[string]*CallSession),
		registry: reg,
		router:   router,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PlaceCall opens a ringing session and relays the offer to the callee.
// caller must still be the live connection of its user.
func (c *Coordinator) PlaceCall(caller core.Connection, callee domain.UserID, offer webrtc.SessionDescription) (CallSession, error) {
	user := caller.User()
	if callee == "" || callee == user.ID {
		return CallSession{}, fmt.Errorf("call %q: %w", callee, ErrInvalidTarget)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Under c.mu an eviction's EndCallsOf cannot land between this check
	// and the insert below.
	if live, ok := c.registry.Lookup(user.ID); !ok || live.ID() != caller.ID() {
		return CallSession{}, fmt.Errorf("caller %q: %w", user.ID, ErrStaleConnection)
	}
	target, ok := c.registry.Lookup(callee)
	if !ok {
		c.metrics.Call("unreachable")
		return CallSession{}, fmt.Errorf("call %q: %w", callee, ErrNotReachable)
	}
	if _, busy := c.byUser[user.ID]; busy {
		c.metrics.Call("busy")
		return CallSession{}, fmt.Errorf("caller %q: %w", user.ID, ErrBusy)
	}
	if _, busy := c.byUser[callee]; busy {
		c.metrics.Call("busy")
		return CallSession{}, fmt.Errorf("callee %q: %w", callee, ErrBusy)
	}

	s := &CallSession{
		ID:         uuid.NewString(),
		Caller:     user.ID,
		Callee:     callee,
		State:      domain.CallRinging,
		CreatedAt:  c.now(),
		callerConn: caller.ID(),
		calleeConn: target.ID(),
	}
	ev := core.IncomingCall{
		Type:       core.EventIncomingCall,
		CallID:     s.ID,
		From:       user.ID,
		CallerName: user.DisplayName(),
		Offer:      offer,
	}
	// The callee may have dropped between the lookup and now.
	if !c.router.Deliver(callee, ev) {
		c.metrics.Call("unreachable")
		return CallSession{}, fmt.Errorf("call %q: %w", callee, ErrNotReachable)
	}
	c.byUser[s.Caller] = s
	c.byUser[s.Callee] = s
	c.byID[s.ID] = s
	if c.ringTimeout > 0 {
		id := s.ID
		s.timer = time.AfterFunc(c.ringTimeout, func() { c.expire(id) })
	}
	c.metrics.Call("placed")
	c.metrics.SetActiveCalls(c.countLocked())
	log.Info().Str("module", "app.calls").Str("call", s.ID).Str("caller", string(s.Caller)).Str("callee", string(s.Callee)).Msg("call ringing")
	return s.view(), nil
}

// AnswerCall moves the callee's ringing session to connected. A non-empty
// to must name the caller.
func (c *Coordinator) AnswerCall(callee, to domain.UserID, answer webrtc.SessionDescription) (CallSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byUser[callee]
	if !ok || s.State != domain.CallRinging || s.Callee != callee || (to != "" && to != s.Caller) {
		return CallSession{}, fmt.Errorf("answer from %q: %w", callee, ErrInvalidSignalingState)
	}
	s.State = domain.CallConnected
	s.AnsweredAt = c.now()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	c.router.Deliver(s.Caller, core.CallAnswered{
		Type:   core.EventCallAnswered,
		CallID: s.ID,
		From:   callee,
		Answer: answer,
	})
	c.metrics.Call("answered")
	log.Info().Str("module", "app.calls").Str("call", s.ID).Msg("call connected")
	return s.view(), nil
}

// RejectCall declines a ringing call on the callee's side.
func (c *Coordinator) RejectCall(callee domain.UserID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byUser[callee]
	if !ok || s.State != domain.CallRinging || s.Callee != callee {
		return fmt.Errorf("reject from %q: %w", callee, ErrInvalidSignalingState)
	}
	c.router.Deliver(s.Caller, core.CallRejected{
		Type:   core.EventCallRejected,
		CallID: s.ID,
		From:   callee,
	})
	c.endLocked(s, callee, core.ReasonRejected)
	return nil
}

// RelayIceCandidate forwards a candidate to the other party. Candidates that
// race a state change are expected, so a missing session is not an error.
func (c *Coordinator) RelayIceCandidate(from, to domain.UserID, candidate webrtc.ICECandidateInit) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byUser[from]
	if !ok {
		log.Debug().Str("module", "app.calls").Str("from", string(from)).Msg("candidate without session ignored")
		return false
	}
	peer := s.Peer(from)
	if to != "" && to != peer {
		log.Debug().Str("module", "app.calls").Str("from", string(from)).Str("to", string(to)).Msg("candidate for foreign peer ignored")
		return false
	}
	return c.router.Deliver(peer, core.IceCandidate{
		Type:      core.EventIceCandidate,
		From:      from,
		Candidate: candidate,
	})
}

// EndCall hangs up whatever call uid is in. It reports whether one existed.
func (c *Coordinator) EndCall(uid domain.UserID) bool {
	return c.EndCallsFor(uid, core.ReasonHangup)
}

// EndCallsFor ends uid's session whichever connection set it up.
func (c *Coordinator) EndCallsFor(uid domain.UserID, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byUser[uid]
	if !ok {
		return false
	}
	c.endLocked(s, uid, reason)
	return true
}

// EndCallsOf is the implicit termination run when conn goes away. A session
// set up through a later connection of the same user is left alone.
func (c *Coordinator) EndCallsOf(conn core.Connection, reason string) bool {
	uid := conn.User().ID
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byUser[uid]
	if !ok || s.connOf(uid) != conn.ID() {
		return false
	}
	c.endLocked(s, uid, reason)
	return true
}

// SessionOf returns a copy of uid's session.
func (c *Coordinator) SessionOf(uid domain.UserID) (CallSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byUser[uid]
	if !ok {
		return CallSession{}, false
	}
	return s.view(), true
}

func (c *Coordinator) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.countLocked()
}

func (c *Coordinator) countLocked() int {
	return len(c.byID)
}

func (c *Coordinator) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byID[id]
	if !ok || s.State != domain.CallRinging {
		return
	}
	log.Info().Str("module", "app.calls").Str("call", id).Msg("ring timeout")
	c.removeLocked(s)
	ended := core.CallEnded{Type: core.EventCallEnded, CallID: s.ID, Reason: core.ReasonTimeout}
	ended.From = s.Callee
	c.router.Deliver(s.Caller, ended)
	ended.From = s.Caller
	c.router.Deliver(s.Callee, ended)
	c.metrics.Call("timeout")
}

// endLocked removes s and tells the other party that by ended it.
func (c *Coordinator) endLocked(s *CallSession, by domain.UserID, reason string) {
	c.removeLocked(s)
	peer := s.Peer(by)
	c.router.Deliver(peer, core.CallEnded{
		Type:   core.EventCallEnded,
		CallID: s.ID,
		From:   by,
		Reason: reason,
	})
	c.metrics.Call("ended_" + reason)
	log.Info().Str("module", "app.calls").Str("call", s.ID).Str("by", string(by)).Str("reason", reason).Msg("call ended")
}

func (c *Coordinator) removeLocked(s *CallSession) {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if cur, ok := c.byUser[s.Caller]; ok && cur == s {
		delete(c.byUser, s.Caller)
	}
	if cur, ok := c.byUser[s.Callee]; ok && cur == s {
		delete(c.byUser, s.Callee)
	}
	delete(c.byID, s.ID)
	c.metrics.SetActiveCalls(c.countLocked())
}
