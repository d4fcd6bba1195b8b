package client

import (
	"sync"

	"Tribe/module/social/model"
	"Tribe/service/realtime"
)

// UnreadProjection counts messages that arrived for conversations the
// user is not currently viewing. Counters are session-local and
// best-effort: they reset when the scope becomes active and are not
// persisted anywhere.
type UnreadProjection struct {
	mu     sync.Mutex
	selfID string
	active string // room key of the open conversation, "" when none
	counts map[string]int
}

func NewUnreadProjection(selfID string) *UnreadProjection {
	return &UnreadProjection{selfID: selfID, counts: make(map[string]int)}
}

// SetActive marks a room as the one being viewed and clears its count.
func (u *UnreadProjection) SetActive(room string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active = room
	delete(u.counts, room)
}

// ClearActive means no conversation is open; everything counts.
func (u *UnreadProjection) ClearActive() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.active = ""
}

// Observe feeds one inbound frame through the projection. Only message
// kinds matter; own messages and the active room never increment.
func (u *UnreadProjection) Observe(f *realtime.Frame) {
	switch f.Kind {
	case realtime.KindNewMessage:
		m, err := realtime.DecodePayload[model.Message](f)
		if err != nil {
			return
		}
		u.bump(realtime.DMRoom(m.SenderID, m.ReceiverID), m.SenderID)
	case realtime.KindNewTribeMessage:
		m, err := realtime.DecodePayload[model.TribeMessage](f)
		if err != nil {
			return
		}
		u.bump(realtime.TribeRoom(m.TribeID), m.SenderID)
	}
}

func (u *UnreadProjection) bump(room, sender string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if sender == u.selfID || room == u.active {
		return
	}
	u.counts[room]++
}

func (u *UnreadProjection) Count(room string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[room]
}

func (u *UnreadProjection) Counts() map[string]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]int, len(u.counts))
	for k, v := range u.counts {
		out[k] = v
	}
	return out
}

func (u *UnreadProjection) Total() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	n := 0
	for _, v := range u.counts {
		n += v
	}
	return n
}
