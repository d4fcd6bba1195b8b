package client

import (
	"sync"
	"time"

	"Tribe/module/social/model"
	"Tribe/service/realtime"
	"Tribe/tools/errs"
	"Tribe/tools/ids"
)

// Status of a locally-initiated mutation.
type Status int

const (
	StatusPending Status = iota
	StatusReconciled
	StatusFailed
)

const defaultPendingTTL = 15 * time.Second

// Provisional is the client-local record of an unconfirmed mutation.
// The correlation key is {Kind, Actor, Target}; Target is the room for
// messages and empty for posts. It never gets a durable id: either a
// canonical event replaces it or it is rolled back.
type Provisional struct {
	ID       string // temp-<snowflake>
	Kind     realtime.Kind
	Actor    string
	Target   string
	Status   Status
	Deadline time.Time
}

// Store holds the locally-visible state: canonical entities merged by
// durable id plus provisional entries awaiting confirmation.
//
// All mutation funnels through the mutex, so inbound events and local
// actions form one serialized stream; the session's read loop and the
// UI layer never race each other here.
type Store struct {
	mu sync.Mutex

	selfID     string
	pendingTTL time.Duration

	posts         []*model.Post                  // newest first
	messages      map[string][]*model.Message    // room -> oldest first
	tribeMessages map[string][]*model.TribeMessage // tribe id -> oldest first
	notifications []*model.Notification          // newest first
	users         map[string]*model.User
	online        []string

	pending map[string]*Provisional

	// onError surfaces a failed mutation to the UI layer. Invoked
	// outside the lock.
	onError func(provID string, err error)
}

func NewStore(selfID string, onError func(provID string, err error)) *Store {
	if onError == nil {
		onError = func(string, error) {}
	}
	return &Store{
		selfID:        selfID,
		pendingTTL:    defaultPendingTTL,
		messages:      make(map[string][]*model.Message),
		tribeMessages: make(map[string][]*model.TribeMessage),
		users:         make(map[string]*model.User),
		pending:       make(map[string]*Provisional),
		onError:       onError,
	}
}

// SetPendingTTL overrides the optimistic-entry timeout (tests).
func (s *Store) SetPendingTTL(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.pendingTTL = d
	}
}

func tempID() string { return "temp-" + ids.GenerateString() }

// ===== local mutations (optimistic inserts) =====

// BeginPost inserts a provisional post at the head of the feed and
// returns its correlation id. The caller issues the request and calls
// Fail on error; the matching newPost event resolves it.
func (s *Store) BeginPost(content, imageURL string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := tempID()
	p := &model.Post{
		ID:        id,
		UserID:    s.selfID,
		Content:   content,
		ImageURL:  imageURL,
		Likes:     []string{},
		Comments:  []model.Comment{},
		CreatedAt: time.Now(),
	}
	s.posts = append([]*model.Post{p}, s.posts...)
	s.track(id, realtime.KindNewPost, "")
	return id
}

// BeginMessage inserts a provisional DM into the pair's room.
func (s *Store) BeginMessage(peerID, text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := tempID()
	room := realtime.DMRoom(s.selfID, peerID)
	m := &model.Message{
		ID:         id,
		SenderID:   s.selfID,
		ReceiverID: peerID,
		Text:       text,
		CreatedAt:  time.Now(),
	}
	s.messages[room] = append(s.messages[room], m)
	s.track(id, realtime.KindNewMessage, room)
	return id
}

// BeginTribeMessage inserts a provisional tribe chat message.
func (s *Store) BeginTribeMessage(tribeID, text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := tempID()
	m := &model.TribeMessage{
		ID:        id,
		TribeID:   tribeID,
		SenderID:  s.selfID,
		Text:      text,
		CreatedAt: time.Now(),
	}
	s.tribeMessages[tribeID] = append(s.tribeMessages[tribeID], m)
	s.track(id, realtime.KindNewTribeMessage, tribeID)
	return id
}

func (s *Store) track(id string, kind realtime.Kind, target string) {
	s.pending[id] = &Provisional{
		ID:       id,
		Kind:     kind,
		Actor:    s.selfID,
		Target:   target,
		Status:   StatusPending,
		Deadline: time.Now().Add(s.pendingTTL),
	}
}

// Fail rolls back a provisional entry: the request errored, the entry
// disappears and the error surfaces. No automatic retry.
func (s *Store) Fail(provID string, cause error) {
	s.mu.Lock()
	p, ok := s.pending[provID]
	if !ok {
		s.mu.Unlock()
		return
	}
	p.Status = StatusFailed
	delete(s.pending, provID)
	s.removeEntity(p)
	s.mu.Unlock()
	s.onError(provID, cause)
}

// SweepExpired fails every Pending entry past its deadline, bounding
// how long an optimistic ghost can live. Returns the failed ids.
func (s *Store) SweepExpired(now time.Time) []string {
	s.mu.Lock()
	var expired []string
	for id, p := range s.pending {
		if now.After(p.Deadline) {
			expired = append(expired, id)
		}
	}
	s.mu.Unlock()
	for _, id := range expired {
		s.Fail(id, errs.ErrTransientNetwork.WithDetail("mutation timed out"))
	}
	return expired
}

func (s *Store) removeEntity(p *Provisional) {
	switch p.Kind {
	case realtime.KindNewPost:
		s.posts = removePost(s.posts, p.ID)
	case realtime.KindNewMessage:
		s.messages[p.Target] = removeMessage(s.messages[p.Target], p.ID)
	case realtime.KindNewTribeMessage:
		s.tribeMessages[p.Target] = removeTribeMessage(s.tribeMessages[p.Target], p.ID)
	}
}

// ===== reconciliation =====

// Apply merges one canonical event and reports whether it changed local
// state. Correlated events resolve a provisional entry in place;
// everything else merges by durable id, so a duplicate delivery returns
// false and list mutations never touch positional indexes. Callers
// deriving projections (unread counters) must skip frames Apply
// reported as duplicates.
func (s *Store) Apply(f *realtime.Frame) (bool, error) {
	switch f.Kind {
	case realtime.KindNewPost:
		p, err := realtime.DecodePayload[model.Post](f)
		if err != nil {
			return false, err
		}
		return s.applyNewPost(p), nil
	case realtime.KindPostUpdated:
		p, err := realtime.DecodePayload[model.Post](f)
		if err != nil {
			return false, err
		}
		s.applyPostUpdated(p)
		return true, nil
	case realtime.KindPostDeleted:
		d, err := realtime.DecodePayload[realtime.DeletedPayload](f)
		if err != nil {
			return false, err
		}
		return s.applyPostDeleted(d.ID), nil
	case realtime.KindNewMessage:
		m, err := realtime.DecodePayload[model.Message](f)
		if err != nil {
			return false, err
		}
		return s.applyNewMessage(m), nil
	case realtime.KindNewTribeMessage:
		m, err := realtime.DecodePayload[model.TribeMessage](f)
		if err != nil {
			return false, err
		}
		return s.applyNewTribeMessage(m), nil
	case realtime.KindNewNotification:
		n, err := realtime.DecodePayload[model.Notification](f)
		if err != nil {
			return false, err
		}
		return s.applyNotification(n), nil
	case realtime.KindUserUpdated:
		u, err := realtime.DecodePayload[model.User](f)
		if err != nil {
			return false, err
		}
		s.mu.Lock()
		s.users[u.ID] = u
		s.mu.Unlock()
		return true, nil
	case realtime.KindOnlineUsers:
		p, err := realtime.DecodePayload[realtime.OnlineUsersPayload](f)
		if err != nil {
			return false, err
		}
		s.mu.Lock()
		s.online = p.Users
		s.mu.Unlock()
		return true, nil
	default:
		return false, errs.ErrArgs.WrapMsg("unexpected frame kind", "kind", string(f.Kind))
	}
}

// correlate finds the oldest Pending entry matching the canonical
// event's {kind, actor, target} and resolves it.
func (s *Store) correlate(kind realtime.Kind, actor, target string) *Provisional {
	var match *Provisional
	for _, p := range s.pending {
		if p.Kind != kind || p.Actor != actor || p.Target != target {
			continue
		}
		if match == nil || p.Deadline.Before(match.Deadline) {
			match = p
		}
	}
	if match != nil {
		match.Status = StatusReconciled
		delete(s.pending, match.ID)
	}
	return match
}

func (s *Store) applyNewPost(p *model.Post) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOfPost(s.posts, p.ID) >= 0 {
		return false // duplicate delivery
	}
	if prov := s.correlate(realtime.KindNewPost, p.UserID, ""); prov != nil {
		if i := indexOfPost(s.posts, prov.ID); i >= 0 {
			s.posts[i] = p // canonical replaces provisional in place
			return true
		}
	}
	s.posts = append([]*model.Post{p}, s.posts...)
	return true
}

func (s *Store) applyPostUpdated(p *model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := indexOfPost(s.posts, p.ID); i >= 0 {
		s.posts[i] = p
		return
	}
	s.posts = append([]*model.Post{p}, s.posts...)
}

func (s *Store) applyPostDeleted(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOfPost(s.posts, id) < 0 {
		return false
	}
	s.posts = removePost(s.posts, id)
	return true
}

func (s *Store) applyNewMessage(m *model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := realtime.DMRoom(m.SenderID, m.ReceiverID)
	if indexOfMessage(s.messages[room], m.ID) >= 0 {
		return false
	}
	if prov := s.correlate(realtime.KindNewMessage, m.SenderID, room); prov != nil {
		if i := indexOfMessage(s.messages[room], prov.ID); i >= 0 {
			s.messages[room][i] = m
			return true
		}
	}
	s.messages[room] = append(s.messages[room], m)
	return true
}

func (s *Store) applyNewTribeMessage(m *model.TribeMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if indexOfTribeMessage(s.tribeMessages[m.TribeID], m.ID) >= 0 {
		return false
	}
	if prov := s.correlate(realtime.KindNewTribeMessage, m.SenderID, m.TribeID); prov != nil {
		if i := indexOfTribeMessage(s.tribeMessages[m.TribeID], prov.ID); i >= 0 {
			s.tribeMessages[m.TribeID][i] = m
			return true
		}
	}
	s.tribeMessages[m.TribeID] = append(s.tribeMessages[m.TribeID], m)
	return true
}

func (s *Store) applyNotification(n *model.Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, have := range s.notifications {
		if have.ID == n.ID {
			return false
		}
	}
	s.notifications = append([]*model.Notification{n}, s.notifications...)
	return true
}

// ===== history seeding (REST pulls) =====

// SeedPosts replaces the canonical feed, keeping provisional entries at
// the head. Used on startup and after ChannelDisconnected, when live
// updates may have been missed.
func (s *Store) SeedPosts(posts []*model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	head := provisionalPosts(s.posts, s.pending)
	s.posts = append(head, posts...)
}

func (s *Store) SeedMessages(room string, msgs []*model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tail []*model.Message
	for _, m := range s.messages[room] {
		if _, ok := s.pending[m.ID]; ok {
			tail = append(tail, m)
		}
	}
	s.messages[room] = append(msgs, tail...)
}

func (s *Store) SeedTribeMessages(tribeID string, msgs []*model.TribeMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tail []*model.TribeMessage
	for _, m := range s.tribeMessages[tribeID] {
		if _, ok := s.pending[m.ID]; ok {
			tail = append(tail, m)
		}
	}
	s.tribeMessages[tribeID] = append(msgs, tail...)
}

func (s *Store) SeedNotifications(ns []*model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = ns
}

// ===== views =====

func (s *Store) Posts() []*model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Post(nil), s.posts...)
}

func (s *Store) Messages(room string) []*model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Message(nil), s.messages[room]...)
}

func (s *Store) TribeMessages(tribeID string) []*model.TribeMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.TribeMessage(nil), s.tribeMessages[tribeID]...)
}

func (s *Store) Notifications() []*model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.Notification(nil), s.notifications...)
}

// UnreadNotificationCount counts records with read=false held locally.
func (s *Store) UnreadNotificationCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, rec := range s.notifications {
		if !rec.Read {
			n++
		}
	}
	return n
}

func (s *Store) User(id string) (*model.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	return u, ok
}

func (s *Store) OnlineUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.online...)
}

func (s *Store) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// ===== slice helpers, all keyed by durable id =====

func indexOfPost(list []*model.Post, id string) int {
	for i, p := range list {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func removePost(list []*model.Post, id string) []*model.Post {
	out := list[:0]
	for _, p := range list {
		if p.ID != id {
			out = append(out, p)
		}
	}
	return out
}

func indexOfMessage(list []*model.Message, id string) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func removeMessage(list []*model.Message, id string) []*model.Message {
	out := list[:0]
	for _, m := range list {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func indexOfTribeMessage(list []*model.TribeMessage, id string) int {
	for i, m := range list {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func removeTribeMessage(list []*model.TribeMessage, id string) []*model.TribeMessage {
	out := list[:0]
	for _, m := range list {
		if m.ID != id {
			out = append(out, m)
		}
	}
	return out
}

func provisionalPosts(list []*model.Post, pending map[string]*Provisional) []*model.Post {
	var out []*model.Post
	for _, p := range list {
		if _, ok := pending[p.ID]; ok {
			out = append(out, p)
		}
	}
	return out
}
