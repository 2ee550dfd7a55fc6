package registry

import (
	"sort"
	"sync"
)

type set map[string]struct{}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Registry maps a user id to every live connection that user holds.
// It is process-local and rebuilt from scratch on restart.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]set    // userID -> connectionIDs
	owners   map[string]string // connectionID -> userID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sessions: make(map[string]set),
		owners:   make(map[string]string),
	}
}

// Register adds connectionID to userID's sessions. Prior connections are kept.
// It reports whether this is the user's first live session.
func (r *Registry) Register(userID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.sessions[userID]
	if !ok {
		conns = make(set)
		r.sessions[userID] = conns
	}
	conns[connectionID] = struct{}{}
	r.owners[connectionID] = userID

	return !ok
}

// Deregister removes exactly the given mapping. Removing an absent mapping is
// a no-op. It reports whether the user went offline as a result of this call.
func (r *Registry) Deregister(userID, connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns, ok := r.sessions[userID]
	if !ok {
		return false
	}
	if _, ok := conns[connectionID]; !ok {
		return false
	}

	delete(conns, connectionID)
	if owner, ok := r.owners[connectionID]; ok && owner == userID {
		delete(r.owners, connectionID)
	}
	if len(conns) == 0 {
		delete(r.sessions, userID)
		return true
	}
	return false
}

// Lookup returns a copy of userID's live connections, empty when offline.
func (r *Registry) Lookup(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns, ok := r.sessions[userID]
	if !ok {
		return []string{}
	}
	return conns.sorted()
}

// IsOnline reports whether userID holds at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions[userID]) > 0
}

// Owner returns the user a connection belongs to.
func (r *Registry) Owner(connectionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.owners[connectionID]
	return userID, ok
}

// AllOnlineUserIDs returns the sorted set of online users.
func (r *Registry) AllOnlineUserIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.sessions))
	for userID := range r.sessions {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

// AllConnectionIDs returns every live connection.
func (r *Registry) AllConnectionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.owners))
	for connectionID := range r.owners {
		out = append(out, connectionID)
	}
	sort.Strings(out)
	return out
}

// Stats returns the number of online users and live connections.
func (r *Registry) Stats() (users, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.sessions), len(r.owners)
}
