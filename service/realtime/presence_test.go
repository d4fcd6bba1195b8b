package realtime

import (
	"reflect"
	"testing"
)

func TestPresenceRefcount(t *testing.T) {
	p := NewPresenceTracker()

	if changed := p.OnConnect("alice", "c1"); !changed {
		t.Fatalf("first conn should change the visible set")
	}
	if changed := p.OnConnect("alice", "c2"); changed {
		t.Fatalf("second session must not change the visible set")
	}
	if !p.IsOnline("alice") {
		t.Fatalf("alice should be online with two conns")
	}

	if _, changed := p.OnDisconnect("c1"); changed {
		t.Fatalf("dropping one of two conns must not change the set")
	}
	if !p.IsOnline("alice") {
		t.Fatalf("alice still has c2")
	}

	user, changed := p.OnDisconnect("c2")
	if !changed || user != "alice" {
		t.Fatalf("last conn should take alice offline, got user=%q changed=%v", user, changed)
	}
	if p.IsOnline("alice") {
		t.Fatalf("alice should be offline")
	}
}

func TestPresenceDuplicateConnID(t *testing.T) {
	p := NewPresenceTracker()
	p.OnConnect("bob", "c1")
	if changed := p.OnConnect("bob", "c1"); changed {
		t.Fatalf("re-registering the same conn must be a no-op")
	}
	if _, changed := p.OnDisconnect("c1"); !changed {
		t.Fatalf("single disconnect should take bob offline despite the duplicate register")
	}
}

func TestPresenceUnknownConn(t *testing.T) {
	p := NewPresenceTracker()
	if user, changed := p.OnDisconnect("ghost"); changed || user != "" {
		t.Fatalf("unknown conn must be ignored, got user=%q changed=%v", user, changed)
	}
}

func TestPresenceCurrentSetSorted(t *testing.T) {
	p := NewPresenceTracker()
	p.OnConnect("carol", "c3")
	p.OnConnect("alice", "c1")
	p.OnConnect("bob", "c2")

	want := []string{"alice", "bob", "carol"}
	if got := p.CurrentSet(); !reflect.DeepEqual(got, want) {
		t.Fatalf("CurrentSet = %v, want %v", got, want)
	}
}
