package signal

import "github.com/dkeye/Chat/internal/core"

func (ctl *SignalWSController) handlePing(conn *wsSignalConn) {
	ctl.sendJSON(conn, core.PongEvent())
}

func (ctl *SignalWSController) handleWhoAmI(conn *wsSignalConn) {
	resp := core.WhoAmI{
		Type: core.EventWhoAmI,
		User: *conn.user,
	}
	if s, ok := ctl.Orch.Calls.SessionOf(conn.user.ID); ok {
		resp.Call = &core.CallInfo{ID: s.ID, Peer: s.Peer(conn.user.ID), State: s.State}
	}
	ctl.sendJSON(conn, resp)
}
