// Package coretest provides an in-memory core.Connection for tests.
package coretest

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// Conn records every frame it accepts. Capacity 0 means unbounded.
type Conn struct {
	id   core.ConnID
	user *domain.User

	mu       sync.Mutex
	frames   []core.Frame
	capacity int
	closed   bool
	closes   int
	onClose  func()
}

func NewConn(uid domain.UserID) *Conn {
	return &Conn{
		id:   core.ConnID(uuid.NewString()),
		user: &domain.User{ID: uid, FullName: "User " + string(uid)},
	}
}

// WithCapacity bounds the queue so TrySend reports backpressure.
func (c *Conn) WithCapacity(n int) *Conn {
	c.capacity = n
	return c
}

// OnClose runs f (outside the lock) the first time Close is called.
func (c *Conn) OnClose(f func()) *Conn {
	c.onClose = f
	return c
}

func (c *Conn) ID() core.ConnID { return c.id }
func (c *Conn) User() *domain.User { return c.user }

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.capacity > 0 && len(c.frames) >= c.capacity {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	c.closes++
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	cb := c.onClose
	c.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseCalls counts Close invocations, including repeated ones.
func (c *Conn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Message is a decoded frame.
type Message map[string]any

func (m Message) Type() string {
	s, _ := m["type"].(string)
	return s
}

func (m Message) String(key string) string {
	s, _ := m[key].(string)
	return s
}

// Messages decodes everything received so far.
func (c *Conn) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, 0, len(c.frames))
	for _, f := range c.frames {
		var m Message
		if err := json.Unmarshal(f, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// OfType filters Messages by wire tag.
func (c *Conn) OfType(t core.EventType) []Message {
	var out []Message
	for _, m := range c.Messages() {
		if m.Type() == string(t) {
			out = append(out, m)
		}
	}
	return out
}

// Last returns the most recent message of type t.
func (c *Conn) Last(t core.EventType) (Message, bool) {
	ms := c.OfType(t)
	if len(ms) == 0 {
		return nil, false
	}
	return ms[len(ms)-1], true
}

func (c *Conn) Reset() {
	c.mu.Lock()
	c.frames = nil
	c.mu.Unlock()
}
