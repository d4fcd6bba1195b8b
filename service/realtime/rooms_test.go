package realtime

import (
	"fmt"
	"reflect"
	"testing"
)

func drain(c *Conn) []string {
	var out []string
	for {
		select {
		case data := <-c.Outbox():
			out = append(out, string(data))
		default:
			return out
		}
	}
}

func TestDMRoomSymmetric(t *testing.T) {
	if DMRoom("u2", "u1") != DMRoom("u1", "u2") {
		t.Fatalf("both sides must compute the same room")
	}
	if got := DMRoom("u1", "u2"); got != "dm-u1-u2" {
		t.Fatalf("DMRoom = %q", got)
	}
	if got := TribeRoom("t9"); got != "tribe-t9" {
		t.Fatalf("TribeRoom = %q", got)
	}
}

func TestRoomIsolation(t *testing.T) {
	r := NewRoomRouter()
	a := NewConn("c1", "alice", nil, 8)
	b := NewConn("c2", "bob", nil, 8)
	c := NewConn("c3", "carol", nil, 8)

	r.Subscribe(a, "dm-alice-bob")
	r.Subscribe(b, "dm-alice-bob")
	r.Subscribe(c, "tribe-t1")

	r.Broadcast("dm-alice-bob", []byte("hi"))

	if got := drain(a); len(got) != 1 || got[0] != "hi" {
		t.Fatalf("alice should see the DM, got %v", got)
	}
	if got := drain(b); len(got) != 1 {
		t.Fatalf("bob should see the DM, got %v", got)
	}
	if got := drain(c); len(got) != 0 {
		t.Fatalf("carol must not see another room's event, got %v", got)
	}
}

func TestRoomFIFOPerConnection(t *testing.T) {
	r := NewRoomRouter()
	c := NewConn("c1", "alice", nil, 64)
	r.Subscribe(c, "tribe-t1")

	var want []string
	for i := 0; i < 20; i++ {
		msg := fmt.Sprintf("m%d", i)
		want = append(want, msg)
		r.Broadcast("tribe-t1", []byte(msg))
	}
	if got := drain(c); !reflect.DeepEqual(got, want) {
		t.Fatalf("delivery order diverged from emission order:\n got %v\nwant %v", got, want)
	}
}

func TestRoomUnsubscribe(t *testing.T) {
	r := NewRoomRouter()
	c := NewConn("c1", "alice", nil, 8)
	r.Subscribe(c, "tribe-t1")
	r.Unsubscribe(c, "tribe-t1")

	r.Broadcast("tribe-t1", []byte("hi"))
	if got := drain(c); len(got) != 0 {
		t.Fatalf("unsubscribed conn must not receive, got %v", got)
	}
	if rooms := r.Rooms(c); len(rooms) != 0 {
		t.Fatalf("conn should be in no rooms, got %v", rooms)
	}
}

func TestRoomUnsubscribeAll(t *testing.T) {
	r := NewRoomRouter()
	c := NewConn("c1", "alice", nil, 8)
	r.Subscribe(c, "tribe-t1")
	r.Subscribe(c, "dm-alice-bob")
	r.UnsubscribeAll(c)

	r.Broadcast("tribe-t1", []byte("x"))
	r.Broadcast("dm-alice-bob", []byte("y"))
	if got := drain(c); len(got) != 0 {
		t.Fatalf("gone conn must not receive, got %v", got)
	}
}

func TestRoomBroadcastReportsStalled(t *testing.T) {
	r := NewRoomRouter()
	c := NewConn("c1", "alice", nil, 1)
	r.Subscribe(c, "tribe-t1")

	if stalled := r.Broadcast("tribe-t1", []byte("first")); len(stalled) != 0 {
		t.Fatalf("first write fits the buffer")
	}
	stalled := r.Broadcast("tribe-t1", []byte("second"))
	if len(stalled) != 1 || stalled[0].ID() != "c1" {
		t.Fatalf("full buffer should report the conn as stalled, got %v", stalled)
	}
}
