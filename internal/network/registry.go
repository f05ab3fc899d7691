package network

import "sync"

// Registry is the server-wide collection of live connections. Membership
// changes happen under the lock; readers take a copy-on-read snapshot so that
// broadcast fan-out and scheduler passes never observe a half-removed entry
// and never hold the lock while touching sockets.
type Registry struct {
	mu    sync.RWMutex
	conns []*Conn
}

func NewRegistry() *Registry {
	return &Registry{}
}

func (r *Registry) Add(c *Conn) {
	r.mu.Lock()
	r.conns = append(r.conns, c)
	r.mu.Unlock()
}

// Remove drops the connection from the registry, returning whether it was
// present. Safe to call more than once for the same connection.
func (r *Registry) Remove(c *Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.conns {
		if existing == c {
			r.conns = append(r.conns[:i], r.conns[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a stable copy of the current membership for iteration.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := make([]*Conn, len(r.conns))
	copy(snapshot, r.conns)
	return snapshot
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
