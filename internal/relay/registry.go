package relay

import (
	"sync"

	"github.com/google/uuid"

	"github.com/Tyrowin/newsrelay/internal/metrics"
)

// Registry is the set of connections eligible for broadcast delivery.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	conns   map[uuid.UUID]*Connection
	metrics *metrics.Relay
}

// NewRegistry creates an empty registry. m may be nil.
func NewRegistry(m *metrics.Relay) *Registry {
	return &Registry{
		conns:   make(map[uuid.UUID]*Connection),
		metrics: m,
	}
}

// Add inserts conn and reports whether it was absent.
func (r *Registry) Add(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.id]; exists {
		return false
	}
	r.conns[conn.id] = conn
	r.metrics.SetActiveConnections(len(r.conns))
	return true
}

// Remove deletes conn and reports whether it was present. Removing a
// non-member is a no-op.
func (r *Registry) Remove(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[conn.id]; !exists {
		return false
	}
	delete(r.conns, conn.id)
	r.metrics.SetActiveConnections(len(r.conns))
	return true
}

// Contains reports whether conn is a member.
func (r *Registry) Contains(conn *Connection) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.conns[conn.id]
	return exists
}

// Len returns the number of members.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}

// Snapshot returns an independent copy of the current members.
func (r *Registry) Snapshot() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// Clear empties the registry and returns how many members it held.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.conns)
	clear(r.conns)
	r.metrics.SetActiveConnections(0)
	return n
}
