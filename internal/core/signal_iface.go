package core

import (
	"errors"

	"github.com/dkeye/Chat/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// Frame is one encoded outbound event.
type Frame []byte

// ConnID tells two channels of the same user apart.
type ConnID string

// Connection abstracts a live messaging transport bound to one user.
// Owned by the adapter; the adapter must Close() it.
type Connection interface {
	ID() ConnID
	User() *domain.User
	// TrySend enqueues without blocking. ErrBackpressure when the outbound
	// queue is full, ErrConnClosed after Close.
	TrySend(Frame) error
	// Close is idempotent.
	Close()
}
