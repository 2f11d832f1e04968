package app

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
)

// Registry is the presence table: at most one live connection per user.
// Critical sections never send or block.
type Registry struct {
	mu    sync.RWMutex
	conns map[domain.UserID]core.Connection
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[domain.UserID]core.Connection),
	}
}

// Register stores conn as the live entry for uid and returns the connection
// it replaced, if any. The caller owns closing the evicted one.
func (r *Registry) Register(uid domain.UserID, conn core.Connection) core.Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.conns[uid]
	r.conns[uid] = conn
	if ok && prev.ID() != conn.ID() {
		log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(conn.ID())).Str("evicted", string(prev.ID())).Msg("replaced connection")
		return prev
	}
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(conn.ID())).Msg("registered connection")
	return nil
}

// Unregister removes the entry for uid only while conn is still the live one.
// A stale handler for an evicted connection is a no-op.
func (r *Registry) Unregister(uid domain.UserID, conn core.Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.conns[uid]
	if !ok || cur.ID() != conn.ID() {
		log.Debug().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(conn.ID())).Msg("stale unregister ignored")
		return false
	}
	delete(r.conns, uid)
	log.Info().Str("module", "app.registry").Str("user", string(uid)).Str("conn", string(conn.ID())).Msg("unregistered connection")
	return true
}

func (r *Registry) Lookup(uid domain.UserID) (core.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[uid]
	return c, ok
}

// Snapshot is the presence set, sorted. It never exposes connections.
func (r *Registry) Snapshot() []domain.UserID {
	r.mu.RLock()
	out := make([]domain.UserID, 0, len(r.conns))
	for uid := range r.conns {
		out = append(out, uid)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

type regSnap struct {
	UserID domain.UserID
	Conn   core.Connection
}

// members copies the table so broadcast can send without the lock.
func (r *Registry) members() []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.conns))
	for uid, c := range r.conns {
		out = append(out, regSnap{UserID: uid, Conn: c})
	}
	return out
}
