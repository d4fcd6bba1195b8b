package realtime

import (
	"sync"
	"time"

	"Tribe/logger"

	"github.com/gorilla/websocket"
)

const writeDeadline = 5 * time.Second

// Conn is one live channel session. All outbound traffic goes through
// send and a single write pump, which is what gives FIFO-per-connection:
// gorilla conns must not be written concurrently, and one drain order is
// one delivery order.
type Conn struct {
	id     string
	userID string

	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

// NewConn registers nothing by itself; hand it to Hub.Register. ws may
// be nil in tests, in which case callers drain Outbox themselves.
func NewConn(id, userID string, ws *websocket.Conn, sendBuf int) *Conn {
	if sendBuf <= 0 {
		sendBuf = 256
	}
	return &Conn{
		id:     id,
		userID: userID,
		ws:     ws,
		send:   make(chan []byte, sendBuf),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// Outbox exposes the outbound queue; the write pump (or a test) is its
// only consumer.
func (c *Conn) Outbox() <-chan []byte { return c.send }

// enqueue never blocks: a consumer too slow to drain its buffer must
// not stall a broadcast. Returns false when the buffer is full or the
// conn is closed; the hub closes such conns.
func (c *Conn) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// WritePump drains send onto the socket until close. Run as the only
// writer goroutine for this conn.
func (c *Conn) WritePump() {
	for {
		select {
		case <-c.done:
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if c.ws == nil {
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Infof("[conn] write failed conn=%s user=%s err=%v", c.id, c.userID, err)
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			_ = c.ws.Close()
		}
	})
}

// Done is closed when the conn is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }
