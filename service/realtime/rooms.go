package realtime

import (
	"sort"
	"sync"
)

// DMRoom names the broadcast scope for a user pair. The pair is sorted
// so both sides compute the same room.
func DMRoom(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return "dm-" + a + "-" + b
}

func TribeRoom(tribeID string) string { return "tribe-" + tribeID }

// RoomRouter tracks which connections are subscribed to which rooms.
// Membership is per connection, not per user: a user with two sessions
// may have only one of them in a room. Rooms are created on first
// subscribe and dropped with their last member.
type RoomRouter struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]*Conn    // room -> connID -> conn
	joined map[string]map[string]struct{} // connID -> rooms
}

func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		rooms:  make(map[string]map[string]*Conn),
		joined: make(map[string]map[string]struct{}),
	}
}

func (r *RoomRouter) Subscribe(c *Conn, room string) {
	if c == nil || room == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]*Conn)
	}
	r.rooms[room][c.ID()] = c
	if r.joined[c.ID()] == nil {
		r.joined[c.ID()] = make(map[string]struct{})
	}
	r.joined[c.ID()][room] = struct{}{}
}

func (r *RoomRouter) Unsubscribe(c *Conn, room string) {
	if c == nil || room == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropLocked(c.ID(), room)
}

// UnsubscribeAll clears a disconnecting conn out of every room.
func (r *RoomRouter) UnsubscribeAll(c *Conn) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for room := range r.joined[c.ID()] {
		r.dropLocked(c.ID(), room)
	}
}

func (r *RoomRouter) dropLocked(connID, room string) {
	if mm := r.rooms[room]; mm != nil {
		delete(mm, connID)
		if len(mm) == 0 {
			delete(r.rooms, room)
		}
	}
	if jj := r.joined[connID]; jj != nil {
		delete(jj, room)
		if len(jj) == 0 {
			delete(r.joined, connID)
		}
	}
}

// Broadcast enqueues data to every member of the room; returns the
// conns whose buffers were full (the hub closes them).
func (r *RoomRouter) Broadcast(room string, data []byte) []*Conn {
	r.mu.RLock()
	members := make([]*Conn, 0, len(r.rooms[room]))
	for _, c := range r.rooms[room] {
		members = append(members, c)
	}
	r.mu.RUnlock()

	var stalled []*Conn
	for _, c := range members {
		if !c.enqueue(data) {
			stalled = append(stalled, c)
		}
	}
	return stalled
}

// Members snapshots the room's current subscribers.
func (r *RoomRouter) Members(room string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Conn, 0, len(r.rooms[room]))
	for _, c := range r.rooms[room] {
		out = append(out, c)
	}
	return out
}

// Rooms lists the rooms a conn is in, sorted.
func (r *RoomRouter) Rooms(c *Conn) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.joined[c.ID()]))
	for room := range r.joined[c.ID()] {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}
