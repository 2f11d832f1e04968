package app

import "github.com/dkeye/Chat/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropEvent
	CloseConnection
)

// Policy decides what happens to a connection whose outbound queue is full.
type Policy interface {
	OnBackPressure(conn core.Connection, event core.EventType) BackpressureAction
}

// SimplePolicy closes slow connections; the client reconnects and refetches.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(conn core.Connection, event core.EventType) BackpressureAction {
	return CloseConnection
}

// DropPolicy keeps slow connections and loses the event.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(conn core.Connection, event core.EventType) BackpressureAction {
	return DropEvent
}
