package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"Tribe/module/social/model"
	"Tribe/service/realtime"
	"Tribe/tools/errs"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// channelServer is a minimal event-channel peer: it checks the bearer
// token, records inbound control frames and pushes whatever the test
// hands it.
type channelServer struct {
	t        *testing.T
	outbound chan []byte
	controls chan *realtime.Frame

	mu sync.Mutex
	ws *websocket.Conn
}

// dropClient closes the current upgraded socket from the server side.
// httptest's CloseClientConnections does not reach hijacked conns, so
// disconnect tests go through here.
func (cs *channelServer) dropClient() {
	cs.mu.Lock()
	ws := cs.ws
	cs.ws = nil
	cs.mu.Unlock()
	if ws != nil {
		_ = ws.Close()
	}
}

func newChannelServer(t *testing.T) (*channelServer, *httptest.Server) {
	cs := &channelServer{
		t:        t,
		outbound: make(chan []byte, 16),
		controls: make(chan *realtime.Frame, 16),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		cs.mu.Lock()
		cs.ws = ws
		cs.mu.Unlock()
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				_, data, rerr := ws.ReadMessage()
				if rerr != nil {
					return
				}
				if f, perr := realtime.ParseFrame(data); perr == nil {
					cs.controls <- f
				}
			}
		}()
		for {
			select {
			case <-done:
				return
			case data := <-cs.outbound:
				if werr := ws.WriteMessage(websocket.TextMessage, data); werr != nil {
					return
				}
			}
		}
	}))
	return cs, srv
}

func (cs *channelServer) push(t *testing.T, kind realtime.Kind, payload any) {
	t.Helper()
	f, err := realtime.NewFrame(kind, payload)
	if err != nil {
		t.Fatalf("NewFrame: %v", err)
	}
	data, err := f.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	cs.outbound <- data
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitFor(t *testing.T, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestSessionRejectedToken(t *testing.T) {
	_, srv := newChannelServer(t)
	defer srv.Close()

	_, err := Dial(context.Background(), SessionConfig{
		URL:   wsURL(srv),
		Token: "wrong",
		Store: NewStore("alice", nil),
	})
	if !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("bad token should fail the handshake, got %v", err)
	}
}

func TestSessionAppliesInboundFrames(t *testing.T) {
	cs, srv := newChannelServer(t)
	defer srv.Close()

	store := NewStore("alice", nil)
	unread := NewUnreadProjection("alice")
	sess, err := Dial(context.Background(), SessionConfig{
		URL:    wsURL(srv),
		Token:  "tok",
		Store:  store,
		Unread: unread,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sess.Close()

	cs.push(t, realtime.KindNewPost, &model.Post{ID: "p1", UserID: "bob", Content: "hi"})
	waitFor(t, func() bool { return len(store.Posts()) == 1 }, "post to land in the store")

	cs.push(t, realtime.KindNewMessage, &model.Message{ID: "m1", SenderID: "bob", ReceiverID: "alice", Text: "yo"})
	waitFor(t, func() bool {
		return unread.Count(realtime.DMRoom("alice", "bob")) == 1
	}, "unread counter to tick")
}

func TestSessionJoinRoomSendsControl(t *testing.T) {
	cs, srv := newChannelServer(t)
	defer srv.Close()

	sess, err := Dial(context.Background(), SessionConfig{
		URL:   wsURL(srv),
		Token: "tok",
		Store: NewStore("alice", nil),
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sess.Close()

	if err := sess.JoinRoom("tribe-t1"); err != nil {
		t.Fatalf("JoinRoom: %v", err)
	}
	select {
	case f := <-cs.controls:
		if f.Kind != realtime.KindJoinRoom {
			t.Fatalf("want joinRoom, got %s", f.Kind)
		}
		p, derr := realtime.DecodePayload[realtime.RoomPayload](f)
		if derr != nil || p.Room != "tribe-t1" {
			t.Fatalf("bad control payload: %v %v", p, derr)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never saw the control frame")
	}

	if err := sess.LeaveRoom("tribe-t1"); err != nil {
		t.Fatalf("LeaveRoom: %v", err)
	}
	select {
	case f := <-cs.controls:
		if f.Kind != realtime.KindLeaveRoom {
			t.Fatalf("want leaveRoom, got %s", f.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("server never saw the leave frame")
	}
	if rooms := sess.Rooms(); len(rooms) != 0 {
		t.Fatalf("left room should not be rejoined later, got %v", rooms)
	}
}

func TestSessionDisconnectCallback(t *testing.T) {
	cs, srv := newChannelServer(t)

	dropped := make(chan error, 1)
	sess, err := Dial(context.Background(), SessionConfig{
		URL:   wsURL(srv),
		Token: "tok",
		Store: NewStore("alice", nil),
		OnDisconnect: func(e error) {
			select {
			case dropped <- e:
			default:
			}
		},
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer sess.Close()

	cs.dropClient()
	select {
	case e := <-dropped:
		if !errors.Is(e, errs.ErrChannelDisconnected) {
			t.Fatalf("want ChannelDisconnectedError, got %v", e)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("disconnect never surfaced")
	}
	srv.Close()
}
