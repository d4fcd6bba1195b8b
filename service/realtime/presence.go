package realtime

import (
	"sort"
	"sync"
)

// PresenceTracker maps users to live connection counts. A user is in
// the visible set iff their count is > 0; a second session for an
// already-present user only bumps the refcount.
//
// No persistence: after a restart the set rebuilds as clients reconnect.
type PresenceTracker struct {
	mu     sync.Mutex
	refs   map[string]int    // userID -> live conn count
	owners map[string]string // connID -> userID
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		refs:   make(map[string]int),
		owners: make(map[string]string),
	}
}

// OnConnect returns true when the visible set changed (first conn for
// the user). Re-registering a known connID is a no-op.
func (p *PresenceTracker) OnConnect(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, dup := p.owners[connID]; dup {
		return false
	}
	p.owners[connID] = userID
	p.refs[userID]++
	return p.refs[userID] == 1
}

// OnDisconnect returns the owning user and whether the visible set
// changed (last conn for the user). Unknown connIDs are ignored.
func (p *PresenceTracker) OnDisconnect(connID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID, ok := p.owners[connID]
	if !ok {
		return "", false
	}
	delete(p.owners, connID)
	p.refs[userID]--
	if p.refs[userID] <= 0 {
		delete(p.refs, userID)
		return userID, true
	}
	return userID, false
}

func (p *PresenceTracker) IsOnline(userID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refs[userID] > 0
}

// CurrentSet returns the online user ids, sorted for stable output.
func (p *PresenceTracker) CurrentSet() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.refs))
	for u := range p.refs {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}
