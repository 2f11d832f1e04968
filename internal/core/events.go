package core

import (
	"encoding/json"

	"github.com/dkeye/Chat/internal/domain"
	"github.com/pion/webrtc/v4"
)

// EventType is the wire tag carried in the "type" field.
type EventType string

const (
	EventNewMessage     EventType = "newMessage"
	EventReactionUpdate EventType = "reactionUpdate"
	EventOnlineUsers    EventType = "getOnlineUsers"
	EventIncomingCall   EventType = "incoming-call"
	EventCallAnswered   EventType = "call-answered"
	EventCallRejected   EventType = "call-rejected"
	EventIceCandidate   EventType = "ice-candidate"
	EventCallEnded      EventType = "call-ended"
	EventError          EventType = "error"
	EventPong           EventType = "pong"
	EventWhoAmI         EventType = "whoami"
)

// Call end reasons reported in call-ended.
const (
	ReasonHangup       = "hangup"
	ReasonRejected     = "rejected"
	ReasonDisconnected = "disconnected"
	ReasonReplaced     = "replaced"
	ReasonTimeout      = "timeout"
)

// Event is anything the router can push to a connection.
type Event interface {
	Kind() EventType
}

// Encode renders an event as a wire frame.
func Encode(e Event) (Frame, error) {
	return json.Marshal(e)
}

type NewMessage struct {
	Type    EventType       `json:"type"`
	Message json.RawMessage `json:"message"`
}

func NewMessageEvent(msg json.RawMessage) NewMessage {
	return NewMessage{Type: EventNewMessage, Message: msg}
}

func (NewMessage) Kind() EventType { return EventNewMessage }

type ReactionUpdate struct {
	Type      EventType         `json:"type"`
	MessageID string            `json:"messageId"`
	Reactions []domain.Reaction `json:"reactions"`
}

func ReactionUpdateEvent(messageID string, reactions []domain.Reaction) ReactionUpdate {
	if reactions == nil {
		reactions = []domain.Reaction{}
	}
	return ReactionUpdate{Type: EventReactionUpdate, MessageID: messageID, Reactions: reactions}
}

func (ReactionUpdate) Kind() EventType { return EventReactionUpdate }

type OnlineUsers struct {
	Type  EventType       `json:"type"`
	Users []domain.UserID `json:"users"`
}

func OnlineUsersEvent(users []domain.UserID) OnlineUsers {
	if users == nil {
		users = []domain.UserID{}
	}
	return OnlineUsers{Type: EventOnlineUsers, Users: users}
}

func (OnlineUsers) Kind() EventType { return EventOnlineUsers }

type IncomingCall struct {
	Type       EventType                 `json:"type"`
	CallID     string                    `json:"callId"`
	From       domain.UserID             `json:"from"`
	CallerName string                    `json:"callerName"`
	Offer      webrtc.SessionDescription `json:"offer"`
}

func (IncomingCall) Kind() EventType { return EventIncomingCall }

type CallAnswered struct {
	Type   EventType                 `json:"type"`
	CallID string                    `json:"callId"`
	From   domain.UserID             `json:"from"`
	Answer webrtc.SessionDescription `json:"answer"`
}

func (CallAnswered) Kind() EventType { return EventCallAnswered }

// CallRejected tells the caller the callee declined. call-ended follows.
type CallRejected struct {
	Type   EventType     `json:"type"`
	CallID string        `json:"callId"`
	From   domain.UserID `json:"from"`
}

func (CallRejected) Kind() EventType { return EventCallRejected }

type IceCandidate struct {
	Type      EventType               `json:"type"`
	From      domain.UserID           `json:"from"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

func (IceCandidate) Kind() EventType { return EventIceCandidate }

type CallEnded struct {
	Type   EventType     `json:"type"`
	CallID string        `json:"callId"`
	From   domain.UserID `json:"from"`
	Reason string        `json:"reason"`
}

func (CallEnded) Kind() EventType { return EventCallEnded }

// ErrorEvent reports a soft failure back to the originating connection.
type ErrorEvent struct {
	Type  EventType `json:"type"`
	Event string    `json:"event,omitempty"`
	Code  string    `json:"code"`
	Error string    `json:"error"`
}

func NewErrorEvent(event, code, msg string) ErrorEvent {
	return ErrorEvent{Type: EventError, Event: event, Code: code, Error: msg}
}

func (ErrorEvent) Kind() EventType { return EventError }

type Pong struct {
	Type EventType `json:"type"`
}

func PongEvent() Pong { return Pong{Type: EventPong} }

func (Pong) Kind() EventType { return EventPong }

// CallInfo is the read-only call view embedded in whoami.
type CallInfo struct {
	ID    string           `json:"id"`
	Peer  domain.UserID    `json:"peer"`
	State domain.CallState `json:"state"`
}

type WhoAmI struct {
	Type EventType   `json:"type"`
	User domain.User `json:"user"`
	Call *CallInfo   `json:"call,omitempty"`
}

func (WhoAmI) Kind() EventType { return EventWhoAmI }
