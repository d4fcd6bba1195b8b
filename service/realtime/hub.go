package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"Tribe/logger"
	"Tribe/tools/errs"
	"Tribe/tools/safe"
)

// BusSubject carries canonical-event envelopes between gateway nodes.
const BusSubject = "tribe.events"

// Mirror is the cross-node presence view (redis-backed in production).
type Mirror interface {
	Online(ctx context.Context, user, nodeID string) error
	Offline(ctx context.Context, user string) error
	Lookup(ctx context.Context, user string) (nodeID string, online bool, err error)
}

// Bus fans canonical events out to sibling nodes.
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, h func(data []byte)) error
}

const (
	scopeAll      = "all"
	scopeRoom     = "room"
	scopeUser     = "user"
	scopeRoomUser = "roomUser"
)

// envelope wraps a frame for the bus so siblings can replay it into
// their local router. Origin lets a node skip its own publications.
// User is set only for the user and roomUser scopes.
type envelope struct {
	Origin string          `json:"origin"`
	Scope  string          `json:"scope"`
	Target string          `json:"target,omitempty"`
	User   string          `json:"user,omitempty"`
	Frame  json.RawMessage `json:"frame"`
}

// Hub owns the live connections of one gateway node and is the single
// emission point for canonical events: every mutation handler goes
// through BroadcastAll / BroadcastRoom / SendUser after its write
// commits, never before.
type Hub struct {
	nodeID string

	mu     sync.RWMutex
	conns  map[string]*Conn            // connID -> conn
	byUser map[string]map[string]*Conn // userID -> connID -> conn

	presence *PresenceTracker
	rooms    *RoomRouter

	mirror Mirror // nil disables the redis mirror
	bus    Bus    // nil disables cross-node fan-out
}

func NewHub(nodeID string, mirror Mirror, bus Bus) (*Hub, error) {
	h := &Hub{
		nodeID:   nodeID,
		conns:    make(map[string]*Conn),
		byUser:   make(map[string]map[string]*Conn),
		presence: NewPresenceTracker(),
		rooms:    NewRoomRouter(),
		mirror:   mirror,
		bus:      bus,
	}
	if bus != nil {
		if err := bus.Subscribe(BusSubject, h.onBusMessage); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hub) NodeID() string             { return h.nodeID }
func (h *Hub) Presence() *PresenceTracker { return h.presence }
func (h *Hub) Rooms() *RoomRouter         { return h.rooms }

// Register adds a connection, bumps presence and, on a visible
// transition, pushes the full online set to everyone.
func (h *Hub) Register(c *Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	if h.byUser[c.UserID()] == nil {
		h.byUser[c.UserID()] = make(map[string]*Conn)
	}
	h.byUser[c.UserID()][c.ID()] = c
	h.mu.Unlock()

	changed := h.presence.OnConnect(c.UserID(), c.ID())
	if h.mirror != nil {
		if err := h.mirror.Online(context.Background(), c.UserID(), h.nodeID); err != nil {
			logger.Warnf("[hub] presence mirror online user=%s err=%v", c.UserID(), err)
		}
	}
	if changed {
		h.broadcastPresence()
	}
}

// Unregister tears the connection out of rooms and presence and closes
// it. Safe to call more than once.
func (h *Hub) Unregister(c *Conn) {
	h.mu.Lock()
	delete(h.conns, c.ID())
	if mm := h.byUser[c.UserID()]; mm != nil {
		delete(mm, c.ID())
		if len(mm) == 0 {
			delete(h.byUser, c.UserID())
		}
	}
	h.mu.Unlock()

	h.rooms.UnsubscribeAll(c)
	user, changed := h.presence.OnDisconnect(c.ID())
	if changed && h.mirror != nil {
		if err := h.mirror.Offline(context.Background(), user); err != nil {
			logger.Warnf("[hub] presence mirror offline user=%s err=%v", user, err)
		}
	}
	c.Close()
	if changed {
		h.broadcastPresence()
	}
}

// IsOnline consults local presence first, then the mirror.
func (h *Hub) IsOnline(ctx context.Context, userID string) bool {
	if h.presence.IsOnline(userID) {
		return true
	}
	if h.mirror != nil {
		if _, online, err := h.mirror.Lookup(ctx, userID); err == nil {
			return online
		}
	}
	return false
}

// BroadcastAll delivers to every local connection and publishes for
// sibling nodes. Used for globally-visible resources (feed posts).
func (h *Hub) BroadcastAll(f *Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	h.deliverAll(data)
	h.publish(scopeAll, "", "", data)
	return nil
}

// BroadcastRoom delivers to the room's subscribed connections only.
func (h *Hub) BroadcastRoom(room string, f *Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	h.deliverRoom(room, data)
	h.publish(scopeRoom, room, "", data)
	return nil
}

// SendUser delivers to every connection of one user (all sessions).
func (h *Hub) SendUser(userID string, f *Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	h.deliverUser(userID, data)
	h.publish(scopeUser, userID, "", data)
	return nil
}

// BroadcastRoomUser delivers to the union of the room's subscribers and
// userID's connections, at most once per connection. Used for DMs: the
// receiver may not have the conversation open, but each of their
// sessions must still see the event exactly once.
func (h *Hub) BroadcastRoomUser(room, userID string, f *Frame) error {
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	h.deliverRoomUser(room, userID, data)
	h.publish(scopeRoomUser, room, userID, data)
	return nil
}

func (h *Hub) deliverAll(data []byte) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		if !c.enqueue(data) {
			h.dropSlow(c)
		}
	}
}

func (h *Hub) deliverRoom(room string, data []byte) {
	for _, c := range h.rooms.Broadcast(room, data) {
		h.dropSlow(c)
	}
}

func (h *Hub) deliverRoomUser(room, userID string, data []byte) {
	targets := h.rooms.Members(room)
	seen := make(map[string]struct{}, len(targets))
	for _, c := range targets {
		seen[c.ID()] = struct{}{}
	}
	h.mu.RLock()
	for id, c := range h.byUser[userID] {
		if _, ok := seen[id]; !ok {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		if !c.enqueue(data) {
			h.dropSlow(c)
		}
	}
}

func (h *Hub) deliverUser(userID string, data []byte) {
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.byUser[userID]))
	for _, c := range h.byUser[userID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		if !c.enqueue(data) {
			h.dropSlow(c)
		}
	}
}

// dropSlow closes a connection whose outbound buffer filled up; letting
// it linger would stall or reorder deliveries for everyone else.
func (h *Hub) dropSlow(c *Conn) {
	logger.Warnf("[hub] dropping slow consumer conn=%s user=%s", c.ID(), c.UserID())
	safe.Go(func() { h.Unregister(c) })
}

func (h *Hub) broadcastPresence() {
	f, err := NewFrame(KindOnlineUsers, OnlineUsersPayload{Users: h.presence.CurrentSet()})
	if err != nil {
		logger.Errorf("[hub] presence frame: %v", err)
		return
	}
	data, err := f.Marshal()
	if err != nil {
		logger.Errorf("[hub] presence frame: %v", err)
		return
	}
	// presence is node-local state; siblings broadcast their own
	h.deliverAll(data)
}

func (h *Hub) publish(scope, target, user string, frame []byte) {
	if h.bus == nil {
		return
	}
	env := envelope{Origin: h.nodeID, Scope: scope, Target: target, User: user, Frame: frame}
	data, err := json.Marshal(env)
	if err != nil {
		logger.Errorf("[hub] marshal envelope: %v", err)
		return
	}
	if err := h.bus.Publish(BusSubject, data); err != nil {
		logger.Warnf("[hub] bus publish scope=%s err=%v", scope, err)
	}
}

// onBusMessage replays a sibling's canonical event into the local
// router. Events that originated here are skipped.
func (h *Hub) onBusMessage(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Warnf("[hub] bad envelope: %v", errs.Wrap(err))
		return
	}
	if env.Origin == h.nodeID {
		return
	}
	switch env.Scope {
	case scopeAll:
		h.deliverAll(env.Frame)
	case scopeRoom:
		h.deliverRoom(env.Target, env.Frame)
	case scopeUser:
		h.deliverUser(env.Target, env.Frame)
	case scopeRoomUser:
		h.deliverRoomUser(env.Target, env.User, env.Frame)
	default:
		logger.Warnf("[hub] unknown envelope scope=%q origin=%s", env.Scope, env.Origin)
	}
}
