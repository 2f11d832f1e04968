package orch

import (
	"fmt"
	"testing"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/core/coretest"
)

func newTestOrchestrator() *Orchestrator {
	reg := app.NewRegistry()
	rt := app.NewRouter(reg, app.SimplePolicy{}, nil)
	return &Orchestrator{
		Registry: reg,
		Router:   rt,
		Calls:    app.NewCoordinator(reg, rt),
	}
}

func onlineUsers(t *testing.T, c *coretest.Conn) string {
	t.Helper()
	m, ok := c.Last(core.EventOnlineUsers)
	if !ok {
		t.Fatalf("%s received no getOnlineUsers", c.User().ID)
	}
	return fmt.Sprint(m["users"])
}

func TestConnect_BothPeersSeeOnlineSet(t *testing.T) {
	o := newTestOrchestrator()
	u1, u2 := coretest.NewConn("U1"), coretest.NewConn("U2")

	o.Connect(u1)
	if got := onlineUsers(t, u1); got != "[U1]" {
		t.Fatalf("u1 sees %s after own connect", got)
	}
	o.Connect(u2)
	for _, c := range []*coretest.Conn{u1, u2} {
		if got := onlineUsers(t, c); got != "[U1 U2]" {
			t.Fatalf("%s sees %s, want [U1 U2]", c.User().ID, got)
		}
	}
}

func TestConnect_ReconnectReplacesOldConnection(t *testing.T) {
	o := newTestOrchestrator()
	peer := coretest.NewConn("U2")
	old := coretest.NewConn("U1")
	o.Connect(peer)
	o.Connect(old)
	peer.Reset()

	fresh := coretest.NewConn("U1")
	o.Connect(fresh)
	// The adapter of the evicted connection runs its cleanup afterwards.
	if o.Disconnect(old) {
		t.Fatalf("disconnect of evicted connection removed the entry")
	}

	if !old.Closed() {
		t.Fatalf("evicted connection was not closed")
	}
	if fresh.Closed() {
		t.Fatalf("new connection was closed")
	}
	live, ok := o.Registry.Lookup("U1")
	if !ok || live.ID() != fresh.ID() {
		t.Fatalf("registry holds %v, want the new connection", live)
	}
	broadcasts := peer.OfType(core.EventOnlineUsers)
	if len(broadcasts) != 1 {
		t.Fatalf("peer saw %d presence broadcasts, want 1", len(broadcasts))
	}
	if got := fmt.Sprint(broadcasts[0]["users"]); got != "[U1 U2]" {
		t.Fatalf("membership = %s, want [U1 U2]", got)
	}
}

func TestDisconnect_EndsCallsAndBroadcasts(t *testing.T) {
	o := newTestOrchestrator()
	u1, u2 := coretest.NewConn("U1"), coretest.NewConn("U2")
	o.Connect(u1)
	o.Connect(u2)

	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}
	answer := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0\r\n"}
	if _, err := o.Calls.PlaceCall(u1, "U2", offer); err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}
	if _, err := o.Calls.AnswerCall("U2", "U1", answer); err != nil {
		t.Fatalf("AnswerCall: %v", err)
	}

	if !o.Disconnect(u1) {
		t.Fatalf("disconnect of live connection not applied")
	}
	ended, ok := u2.Last(core.EventCallEnded)
	if !ok || ended.String("reason") != core.ReasonDisconnected {
		t.Fatalf("u2 call-ended = %v", ended)
	}
	if o.Calls.Count() != 0 {
		t.Fatalf("sessions left after disconnect: %d", o.Calls.Count())
	}
	if got := onlineUsers(t, u2); got != "[U2]" {
		t.Fatalf("u2 sees %s after u1 left", got)
	}
}

func TestConnect_ReplacementEndsCallOfOldChannel(t *testing.T) {
	o := newTestOrchestrator()
	u1, u2 := coretest.NewConn("U1"), coretest.NewConn("U2")
	o.Connect(u1)
	o.Connect(u2)
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"}
	if _, err := o.Calls.PlaceCall(u1, "U2", offer); err != nil {
		t.Fatalf("PlaceCall: %v", err)
	}

	o.Connect(coretest.NewConn("U1"))
	ended, ok := u2.Last(core.EventCallEnded)
	if !ok || ended.String("reason") != core.ReasonReplaced {
		t.Fatalf("u2 call-ended = %v", ended)
	}
	if o.Calls.Count() != 0 {
		t.Fatalf("sessions left after replacement: %d", o.Calls.Count())
	}
}
