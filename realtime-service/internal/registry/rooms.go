package registry

import "sync"

// Rooms tracks which connections joined which conversation.
type Rooms struct {
	mu      sync.RWMutex
	members map[string]set // conversationID -> connectionIDs
	joined  map[string]set // connectionID -> conversationIDs
}

// NewRooms creates an empty room table.
func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]set),
		joined:  make(map[string]set),
	}
}

// Join adds connectionID to conversationID's room.
func (r *Rooms) Join(connectionID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[conversationID]; !ok {
		r.members[conversationID] = make(set)
	}
	r.members[conversationID][connectionID] = struct{}{}

	if _, ok := r.joined[connectionID]; !ok {
		r.joined[connectionID] = make(set)
	}
	r.joined[connectionID][conversationID] = struct{}{}
}

// Leave removes connectionID from conversationID's room.
func (r *Rooms) Leave(connectionID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leave(connectionID, conversationID)
}

func (r *Rooms) leave(connectionID, conversationID string) {
	if conns, ok := r.members[conversationID]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(r.members, conversationID)
		}
	}
	if convs, ok := r.joined[connectionID]; ok {
		delete(convs, conversationID)
		if len(convs) == 0 {
			delete(r.joined, connectionID)
		}
	}
}

// LeaveAll removes connectionID from every room and returns the rooms it was in.
func (r *Rooms) LeaveAll(connectionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	convs := r.joined[connectionID].sorted()
	for _, conversationID := range convs {
		r.leave(connectionID, conversationID)
	}
	return convs
}

// Members returns the connections joined to conversationID.
func (r *Rooms) Members(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.members[conversationID].sorted()
}

// IsMember reports whether connectionID joined conversationID.
func (r *Rooms) IsMember(connectionID, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.members[conversationID][connectionID]
	return ok
}
