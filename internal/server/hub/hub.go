// Package hub is the live-connection registry: which open connections are
// authenticated, and as whom.
package hub

import (
	"errors"
	"sort"
	"sync"

	"github.com/dmitrijs2005/pdcc/internal/server/protocol"
)

var ErrClosed = errors.New("connection closed")

// Conn is one client connection. Send and Close are safe for concurrent use;
// Send on a closed Conn returns ErrClosed and Close is idempotent.
type Conn interface {
	ID() string
	Send(*protocol.Outbound) error
	Close(code int, reason string) error
}

// Identity is the account a connection is bound to.
type Identity struct {
	ID       string
	UserName string
}

type entry struct {
	conn     Conn
	identity Identity
}

// Registry maps connection ids to their bound identity. Only the owning
// session binds and removes its own connection; everyone else reads.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]entry
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]entry)}
}

// Bind records conn as authenticated as id.
func (r *Registry) Bind(conn Conn, id Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID()] = entry{conn: conn, identity: id}
}

// Remove forgets connID and reports whether it was bound.
func (r *Registry) Remove(connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[connID]
	delete(r.conns, connID)
	return ok
}

func (r *Registry) ByUserID(userID string) []Conn {
	return r.collect(func(e entry) bool { return e.identity.ID == userID })
}

func (r *Registry) ByUserName(userName string) []Conn {
	return r.collect(func(e entry) bool { return e.identity.UserName == userName })
}

// Authenticated lists every bound connection except exceptID.
func (r *Registry) Authenticated(exceptID string) []Conn {
	return r.collect(func(e entry) bool { return e.conn.ID() != exceptID })
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// collect returns matches ordered by connection id so fan-out is deterministic.
func (r *Registry) collect(match func(entry) bool) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Conn
	for _, e := range r.conns {
		if match(e) {
			out = append(out, e.conn)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}
