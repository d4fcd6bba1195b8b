package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"Tribe/module/social/model"
)

type fakeBus struct {
	mu        sync.Mutex
	handler   func([]byte)
	published [][]byte
}

func (b *fakeBus) Publish(subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, data)
	return nil
}

func (b *fakeBus) Subscribe(subject string, h func(data []byte)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handler = h
	return nil
}

func (b *fakeBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published)
}

func kinds(t *testing.T, c *Conn) []Kind {
	t.Helper()
	var out []Kind
	for _, raw := range drain(c) {
		f, err := ParseFrame([]byte(raw))
		if err != nil {
			t.Fatalf("delivered frame does not parse: %v", err)
		}
		out = append(out, f.Kind)
	}
	return out
}

func TestHubRegisterBroadcastsPresence(t *testing.T) {
	hub, err := NewHub("n1", nil, nil)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	a := NewConn("c1", "alice", nil, 8)
	hub.Register(a)

	got := kinds(t, a)
	if len(got) != 1 || got[0] != KindOnlineUsers {
		t.Fatalf("new conn should see the online set, got %v", got)
	}

	// second session for the same user: set unchanged, no frame
	a2 := NewConn("c2", "alice", nil, 8)
	hub.Register(a2)
	if got := kinds(t, a); len(got) != 0 {
		t.Fatalf("refcount bump must not rebroadcast presence, got %v", got)
	}
}

func TestHubUnregisterLastConnBroadcastsPresence(t *testing.T) {
	hub, _ := NewHub("n1", nil, nil)
	a := NewConn("c1", "alice", nil, 8)
	b := NewConn("c2", "bob", nil, 8)
	hub.Register(a)
	hub.Register(b)
	drain(a)
	drain(b)

	hub.Unregister(a)
	got := kinds(t, b)
	if len(got) != 1 || got[0] != KindOnlineUsers {
		t.Fatalf("bob should see the shrunken set, got %v", got)
	}
	if hub.IsOnline(context.Background(), "alice") {
		t.Fatalf("alice went offline")
	}
}

func TestHubSendUserHitsAllSessions(t *testing.T) {
	hub, _ := NewHub("n1", nil, nil)
	a1 := NewConn("c1", "alice", nil, 8)
	a2 := NewConn("c2", "alice", nil, 8)
	b := NewConn("c3", "bob", nil, 8)
	hub.Register(a1)
	hub.Register(a2)
	hub.Register(b)
	drain(a1)
	drain(a2)
	drain(b)

	f, _ := NewFrame(KindNewNotification, model.Notification{ID: "n1", Recipient: "alice"})
	if err := hub.SendUser("alice", f); err != nil {
		t.Fatalf("SendUser: %v", err)
	}

	if got := kinds(t, a1); len(got) != 1 || got[0] != KindNewNotification {
		t.Fatalf("first session missed it: %v", got)
	}
	if got := kinds(t, a2); len(got) != 1 {
		t.Fatalf("second session missed it: %v", got)
	}
	if got := kinds(t, b); len(got) != 0 {
		t.Fatalf("bob must not see alice's notification: %v", got)
	}
}

func TestHubBusFanOut(t *testing.T) {
	bus := &fakeBus{}
	hub, err := NewHub("n1", nil, bus)
	if err != nil {
		t.Fatalf("NewHub: %v", err)
	}
	a := NewConn("c1", "alice", nil, 8)
	hub.Register(a)
	drain(a)

	f, _ := NewFrame(KindNewPost, model.Post{ID: "p1", UserID: "bob"})
	if err := hub.BroadcastAll(f); err != nil {
		t.Fatalf("BroadcastAll: %v", err)
	}
	if bus.count() != 1 {
		t.Fatalf("broadcast should publish exactly one envelope, got %d", bus.count())
	}
	drain(a)

	// a sibling's envelope replays into local conns
	frame, _ := f.Marshal()
	sibling, _ := json.Marshal(envelope{Origin: "n2", Scope: scopeAll, Frame: frame})
	bus.handler(sibling)
	if got := kinds(t, a); len(got) != 1 || got[0] != KindNewPost {
		t.Fatalf("sibling event should reach local conns, got %v", got)
	}

	// our own envelope must be skipped
	own, _ := json.Marshal(envelope{Origin: "n1", Scope: scopeAll, Frame: frame})
	bus.handler(own)
	if got := kinds(t, a); len(got) != 0 {
		t.Fatalf("own envelope must not be replayed, got %v", got)
	}
}

func TestHubRoomScopedEnvelope(t *testing.T) {
	bus := &fakeBus{}
	hub, _ := NewHub("n1", nil, bus)
	in := NewConn("c1", "alice", nil, 8)
	out := NewConn("c2", "bob", nil, 8)
	hub.Register(in)
	hub.Register(out)
	hub.Rooms().Subscribe(in, "tribe-t1")
	drain(in)
	drain(out)

	f, _ := NewFrame(KindNewTribeMessage, model.TribeMessage{ID: "m1", TribeID: "t1", SenderID: "carol"})
	frame, _ := f.Marshal()
	env, _ := json.Marshal(envelope{Origin: "n2", Scope: scopeRoom, Target: "tribe-t1", Frame: frame})
	bus.handler(env)

	if got := kinds(t, in); len(got) != 1 {
		t.Fatalf("room member should get the sibling event, got %v", got)
	}
	if got := kinds(t, out); len(got) != 0 {
		t.Fatalf("non-member must not, got %v", got)
	}
}

func TestHubDMDeliversOncePerConnection(t *testing.T) {
	hub, _ := NewHub("n1", nil, nil)
	bobOpen := NewConn("c1", "bob", nil, 8)
	bobIdle := NewConn("c2", "bob", nil, 8)
	alice := NewConn("c3", "alice", nil, 8)
	carol := NewConn("c4", "carol", nil, 8)
	for _, c := range []*Conn{bobOpen, bobIdle, alice, carol} {
		hub.Register(c)
	}
	room := DMRoom("alice", "bob")
	// bob has the chat open on one session only
	hub.Rooms().Subscribe(bobOpen, room)
	hub.Rooms().Subscribe(alice, room)
	for _, c := range []*Conn{bobOpen, bobIdle, alice, carol} {
		drain(c)
	}

	f, _ := NewFrame(KindNewMessage, model.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob"})
	if err := hub.BroadcastRoomUser(room, "bob", f); err != nil {
		t.Fatalf("BroadcastRoomUser: %v", err)
	}

	if got := kinds(t, bobOpen); len(got) != 1 {
		t.Fatalf("room member must get exactly one copy, got %v", got)
	}
	if got := kinds(t, bobIdle); len(got) != 1 {
		t.Fatalf("receiver's idle session must still get one copy, got %v", got)
	}
	if got := kinds(t, alice); len(got) != 1 {
		t.Fatalf("sender's room session gets one copy, got %v", got)
	}
	if got := kinds(t, carol); len(got) != 0 {
		t.Fatalf("a bystander must see nothing, got %v", got)
	}
}

func TestHubRoomUserEnvelopeDedupes(t *testing.T) {
	bus := &fakeBus{}
	hub, _ := NewHub("n1", nil, bus)
	bobOpen := NewConn("c1", "bob", nil, 8)
	bobIdle := NewConn("c2", "bob", nil, 8)
	hub.Register(bobOpen)
	hub.Register(bobIdle)
	room := DMRoom("alice", "bob")
	hub.Rooms().Subscribe(bobOpen, room)
	drain(bobOpen)
	drain(bobIdle)

	f, _ := NewFrame(KindNewMessage, model.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob"})
	frame, _ := f.Marshal()
	env, _ := json.Marshal(envelope{Origin: "n2", Scope: scopeRoomUser, Target: room, User: "bob", Frame: frame})
	bus.handler(env)

	if got := kinds(t, bobOpen); len(got) != 1 {
		t.Fatalf("sibling DM should reach the room session once, got %v", got)
	}
	if got := kinds(t, bobIdle); len(got) != 1 {
		t.Fatalf("sibling DM should reach the idle session once, got %v", got)
	}
}

type fakeNotificationStore struct {
	inserted []*model.Notification
}

func (s *fakeNotificationStore) Insert(_ context.Context, recipient, sender, kind, subjectID string) (*model.Notification, error) {
	n := &model.Notification{ID: "n1", Recipient: recipient, Sender: sender, Kind: kind, SubjectID: subjectID}
	s.inserted = append(s.inserted, n)
	return n, nil
}

func TestNotifierPersistsThenDeliversLive(t *testing.T) {
	hub, _ := NewHub("n1", nil, nil)
	store := &fakeNotificationStore{}
	n := NewNotifier(store, hub)

	recip := NewConn("c1", "bob", nil, 8)
	hub.Register(recip)
	drain(recip)

	if err := n.Dispatch(context.Background(), "bob", "alice", model.NotifyLike, "p1"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("record must persist, got %d", len(store.inserted))
	}
	if got := kinds(t, recip); len(got) != 1 || got[0] != KindNewNotification {
		t.Fatalf("online recipient should get it live, got %v", got)
	}
}

func TestNotifierOfflineRecipientOnlyPersists(t *testing.T) {
	hub, _ := NewHub("n1", nil, nil)
	store := &fakeNotificationStore{}
	n := NewNotifier(store, hub)

	other := NewConn("c1", "carol", nil, 8)
	hub.Register(other)
	drain(other)

	if err := n.Dispatch(context.Background(), "bob", "alice", model.NotifyFollow, "alice"); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("record must persist even offline")
	}
	if got := kinds(t, other); len(got) != 0 {
		t.Fatalf("a bystander must never see someone else's notification, got %v", got)
	}
}
