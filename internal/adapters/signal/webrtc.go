package signal

import (
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/domain"
)

func (ctl *SignalWSController) handleCallUser(conn *wsSignalConn, data []byte) {
	type callPayload struct {
		Type  string                     `json:"type"`
		To    domain.UserID              `json:"to"`
		Offer *webrtc.SessionDescription `json:"offer"`
	}
	var p callPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Offer == nil || p.Offer.Type != webrtc.SDPTypeOffer || p.Offer.SDP == "" {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(conn.user.ID)).Msg("bad call-user payload")
		ctl.sendError(conn, msgCallUser, codeBadPayload, "offer required")
		return
	}
	if p.To == "" {
		ctl.replyErr(conn, msgCallUser, errNoTarget)
		return
	}
	if ctl.Limiter != nil && !ctl.Limiter.Allow(conn.user.ID) {
		ctl.replyErr(conn, msgCallUser, fmt.Errorf("call %q: %w", p.To, ErrRateLimited))
		return
	}
	if _, err := ctl.Orch.Calls.PlaceCall(conn, p.To, *p.Offer); err != nil {
		ctl.replyErr(conn, msgCallUser, err)
	}
}

func (ctl *SignalWSController) handleAnswerCall(conn *wsSignalConn, data []byte) {
	type answerPayload struct {
		Type   string                     `json:"type"`
		To     domain.UserID              `json:"to"`
		Answer *webrtc.SessionDescription `json:"answer"`
	}
	var p answerPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Answer == nil || p.Answer.Type != webrtc.SDPTypeAnswer || p.Answer.SDP == "" {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(conn.user.ID)).Msg("bad answer-call payload")
		ctl.sendError(conn, msgAnswerCall, codeBadPayload, "answer required")
		return
	}
	if _, err := ctl.Orch.Calls.AnswerCall(conn.user.ID, p.To, *p.Answer); err != nil {
		ctl.replyErr(conn, msgAnswerCall, err)
	}
}

func (ctl *SignalWSController) handleRejectCall(conn *wsSignalConn) {
	if err := ctl.Orch.Calls.RejectCall(conn.user.ID); err != nil {
		ctl.replyErr(conn, msgRejectCall, err)
	}
}

func (ctl *SignalWSController) handleCandidate(conn *wsSignalConn, data []byte) {
	type candidatePayload struct {
		Type      string                   `json:"type"`
		To        domain.UserID            `json:"to"`
		Candidate *webrtc.ICECandidateInit `json:"candidate"`
	}
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Candidate == nil {
		log.Warn().Err(err).Str("module", "signal").Str("user", string(conn.user.ID)).Msg("bad candidate payload")
		ctl.sendError(conn, msgIceCandidate, codeBadPayload, "candidate required")
		return
	}
	ctl.Orch.Calls.RelayIceCandidate(conn.user.ID, p.To, *p.Candidate)
}

func (ctl *SignalWSController) handleEndCall(conn *wsSignalConn) {
	if !ctl.Orch.Calls.EndCall(conn.user.ID) {
		log.Debug().Str("module", "signal").Str("user", string(conn.user.ID)).Msg("end-call without session")
	}
}
