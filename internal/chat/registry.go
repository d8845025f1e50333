package chat

import (
	"sort"
	"sync"
)

// Registry maps an authenticated user id to its single live connection.
// Last-registered wins: a second connect for the same user replaces the
// mapping and the previous handle is returned so the caller can close it.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Client)}
}

// Register stores the mapping and returns the connection it displaced,
// if any.
func (r *Registry) Register(userID string, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.conns[userID]
	r.conns[userID] = c
	if old == c {
		return nil
	}
	return old
}

// Unregister removes the mapping only while it still points at c. A stale
// disconnect arriving after a rapid reconnect must not evict the newer
// connection. Reports whether the mapping was removed.
func (r *Registry) Unregister(userID string, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conns[userID] != c {
		return false
	}
	delete(r.conns, userID)
	return true
}

// Lookup finds the live connection for a user. Absence is not an error:
// it means the recipient is offline and delivery is store-only.
func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[userID]
	return c, ok
}

// Snapshot returns the ids of every currently connected user, sorted for
// stable payloads.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.conns))
	for id := range r.conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clients returns every live connection, for broadcast fan-out.
func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	clients := make([]*Client, 0, len(r.conns))
	for _, c := range r.conns {
		clients = append(clients, c)
	}
	return clients
}
