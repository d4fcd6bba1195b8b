package client

import (
	"context"
	"net/http"
	"sync"
	"time"

	"Tribe/logger"
	"Tribe/service/realtime"
	"Tribe/tools/errs"
	"Tribe/tools/safe"

	"github.com/gorilla/websocket"
)

const (
	writeTimeout     = 5 * time.Second
	initialBackoff   = time.Second
	maxBackoff       = 5 * time.Second
	handshakeTimeout = 10 * time.Second
	sweepInterval    = time.Second
)

// SessionConfig wires a channel session to its collaborators.
type SessionConfig struct {
	// URL is the websocket endpoint, e.g. ws://host:5001/ws.
	URL   string
	Token string

	Store  *Store
	Unread *UnreadProjection

	// OnReconnect fires after the channel is re-established and rooms
	// are rejoined. The app re-pulls history here, because events during
	// the gap are gone.
	OnReconnect func()
	// OnDisconnect fires when the channel drops unexpectedly, with a
	// ChannelDisconnectedError.
	OnDisconnect func(error)
}

// Session is one live event channel. It owns the socket, keeps the
// joined-room set across reconnects, and feeds every inbound frame
// through the store and the unread projection in arrival order.
type Session struct {
	cfg SessionConfig

	wmu sync.Mutex // guards ws writes
	mu  sync.Mutex // guards ws pointer and rooms
	ws  *websocket.Conn

	rooms map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// Dial connects and starts the session. The first connection is
// synchronous so the caller knows the token was accepted; later drops
// reconnect in the background.
func Dial(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, errs.ErrArgs.WrapMsg("session needs url and token")
	}
	if cfg.Store == nil {
		return nil, errs.ErrArgs.WrapMsg("session needs a store")
	}
	s := &Session{
		cfg:   cfg,
		rooms: make(map[string]struct{}),
		done:  make(chan struct{}),
	}
	ws, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.ws = ws
	s.mu.Unlock()
	safe.Go(s.run)
	safe.Go(s.sweepLoop)
	return s, nil
}

func (s *Session) connect(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.Token)
	ws, resp, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, errs.ErrUnauthorized.WrapMsg("handshake rejected")
		}
		return nil, errs.ErrTransientNetwork.WrapMsg("dial", "url", s.cfg.URL, "err", err)
	}
	return ws, nil
}

// run reads frames until the socket dies, then reconnects with doubling
// backoff until Close is called.
func (s *Session) run() {
	for {
		s.mu.Lock()
		ws := s.ws
		s.mu.Unlock()
		if ws != nil {
			s.readLoop(ws)
		}
		select {
		case <-s.done:
			return
		default:
		}
		if s.cfg.OnDisconnect != nil {
			s.cfg.OnDisconnect(errs.ErrChannelDisconnected.WithDetail("event channel dropped"))
		}
		if !s.reconnect() {
			return
		}
	}
}

func (s *Session) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		f, err := realtime.ParseFrame(data)
		if err != nil {
			logger.Warnf("drop inbound frame: %v", err)
			continue
		}
		// store first, then unread, keeping a single arrival order;
		// duplicate deliveries must not reach the projection
		applied, err := s.cfg.Store.Apply(f)
		if err != nil {
			logger.Warnf("apply %s: %v", f.Kind, err)
			continue
		}
		if applied && s.cfg.Unread != nil {
			s.cfg.Unread.Observe(f)
		}
	}
}

func (s *Session) reconnect() bool {
	backoff := initialBackoff
	for {
		select {
		case <-s.done:
			return false
		case <-time.After(backoff):
		}
		ws, err := s.connect(context.Background())
		if err != nil {
			logger.Warnf("reconnect: %v", err)
			if backoff *= 2; backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		s.mu.Lock()
		s.ws = ws
		rooms := make([]string, 0, len(s.rooms))
		for r := range s.rooms {
			rooms = append(rooms, r)
		}
		s.mu.Unlock()
		for _, r := range rooms {
			if err := s.sendControl(realtime.KindJoinRoom, r); err != nil {
				logger.Warnf("rejoin %s: %v", r, err)
			}
		}
		if s.cfg.OnReconnect != nil {
			s.cfg.OnReconnect()
		}
		return true
	}
}

func (s *Session) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-s.done:
			return
		case now := <-t.C:
			s.cfg.Store.SweepExpired(now)
		}
	}
}

// JoinRoom subscribes this session to a room. The membership survives
// reconnects; rooms are rejoined before OnReconnect fires.
func (s *Session) JoinRoom(room string) error {
	if room == "" {
		return errs.ErrArgs.WrapMsg("empty room")
	}
	s.mu.Lock()
	s.rooms[room] = struct{}{}
	s.mu.Unlock()
	return s.sendControl(realtime.KindJoinRoom, room)
}

func (s *Session) LeaveRoom(room string) error {
	s.mu.Lock()
	delete(s.rooms, room)
	s.mu.Unlock()
	return s.sendControl(realtime.KindLeaveRoom, room)
}

func (s *Session) sendControl(kind realtime.Kind, room string) error {
	f, err := realtime.NewFrame(kind, realtime.RoomPayload{Room: room})
	if err != nil {
		return err
	}
	data, err := f.Marshal()
	if err != nil {
		return err
	}
	s.mu.Lock()
	ws := s.ws
	s.mu.Unlock()
	if ws == nil {
		return errs.ErrChannelDisconnected.WithDetail("not connected")
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return errs.ErrChannelDisconnected.WrapMsg("write", "err", err)
	}
	return nil
}

// Rooms returns the rooms this session intends to be in.
func (s *Session) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for r := range s.rooms {
		out = append(out, r)
	}
	return out
}

// Close shuts the session down; no reconnect follows.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		ws := s.ws
		s.ws = nil
		s.mu.Unlock()
		if ws != nil {
			_ = ws.Close()
		}
	})
	return nil
}
