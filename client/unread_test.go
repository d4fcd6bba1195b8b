package client

import (
	"testing"

	"Tribe/module/social/model"
	"Tribe/service/realtime"
)

func dm(t *testing.T, sender, receiver, text string) *realtime.Frame {
	t.Helper()
	return frame(t, realtime.KindNewMessage, &model.Message{
		ID: "m-" + sender + "-" + text, SenderID: sender, ReceiverID: receiver, Text: text,
	})
}

func TestUnreadIncrementsForClosedChat(t *testing.T) {
	u := NewUnreadProjection("bob")
	room := realtime.DMRoom("alice", "bob")

	u.Observe(dm(t, "alice", "bob", "hi"))
	if got := u.Count(room); got != 1 {
		t.Fatalf("bob's counter for alice should be 1, got %d", got)
	}
	u.Observe(dm(t, "alice", "bob", "there"))
	if got := u.Count(room); got != 2 {
		t.Fatalf("counter should grow monotonically while closed, got %d", got)
	}
}

func TestUnreadSkipsOwnMessages(t *testing.T) {
	u := NewUnreadProjection("alice")
	u.Observe(dm(t, "alice", "bob", "hi"))
	if got := u.Count(realtime.DMRoom("alice", "bob")); got != 0 {
		t.Fatalf("own messages never count, got %d", got)
	}
}

func TestUnreadSkipsActiveRoom(t *testing.T) {
	u := NewUnreadProjection("bob")
	room := realtime.DMRoom("alice", "bob")
	u.SetActive(room)

	u.Observe(dm(t, "alice", "bob", "hi"))
	if got := u.Count(room); got != 0 {
		t.Fatalf("open conversation must not accumulate unread, got %d", got)
	}

	u.ClearActive()
	u.Observe(dm(t, "alice", "bob", "still there?"))
	if got := u.Count(room); got != 1 {
		t.Fatalf("after closing the chat it counts again, got %d", got)
	}
}

func TestUnreadResetOnOpen(t *testing.T) {
	u := NewUnreadProjection("bob")
	room := realtime.DMRoom("alice", "bob")
	u.Observe(dm(t, "alice", "bob", "one"))
	u.Observe(dm(t, "alice", "bob", "two"))

	u.SetActive(room)
	if got := u.Count(room); got != 0 {
		t.Fatalf("opening the conversation resets it, got %d", got)
	}
}

func TestUnreadTribeMessages(t *testing.T) {
	u := NewUnreadProjection("bob")
	f := frame(t, realtime.KindNewTribeMessage, &model.TribeMessage{
		ID: "tm1", TribeID: "t1", SenderID: "carol", Text: "yo",
	})
	u.Observe(f)
	if got := u.Count(realtime.TribeRoom("t1")); got != 1 {
		t.Fatalf("tribe chat counts under its room, got %d", got)
	}
	if u.Total() != 1 {
		t.Fatalf("Total should sum all rooms")
	}
}

func TestUnreadIgnoresNonMessageFrames(t *testing.T) {
	u := NewUnreadProjection("bob")
	u.Observe(frame(t, realtime.KindNewPost, &model.Post{ID: "p1", UserID: "alice"}))
	if u.Total() != 0 {
		t.Fatalf("feed events never touch unread counters")
	}
}
