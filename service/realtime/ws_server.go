package realtime

import (
	"net/http"

	"Tribe/logger"
	mw "Tribe/middleware/security"
	"Tribe/tools/ids"
	"Tribe/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// TokenVerifier resolves the handshake credential into a user id.
type TokenVerifier func(token string) (userID string, err error)

// WSServer is the gin-facing side of the event channel.
type WSServer struct {
	hub     *Hub
	verify  TokenVerifier
	sendBuf int
}

func NewWSServer(hub *Hub, verify TokenVerifier, sendBuf int) *WSServer {
	return &WSServer{hub: hub, verify: verify, sendBuf: sendBuf}
}

// HandleWS upgrades the request, authenticates, registers the
// connection and runs the read loop until the peer goes away. The read
// loop only ever sees control frames (joinRoom/leaveRoom); canonical
// events flow the other way.
func (s *WSServer) HandleWS(c *gin.Context) {
	userID, err := s.verify(mw.BearerToken(c))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"msg": "bad handshake token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Infof("[ws] upgrade failed user=%s err=%v", userID, err)
		return
	}

	conn := NewConn(ids.GenerateString(), userID, ws, s.sendBuf)
	safe.Go(conn.WritePump)
	s.hub.Register(conn)
	logger.Infof("[ws] connected user=%s conn=%s", userID, conn.ID())

	defer func() {
		s.hub.Unregister(conn)
		logger.Infof("[ws] disconnected user=%s conn=%s", userID, conn.ID())
	}()

	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			if websocket.IsCloseError(rerr,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Infof("[ws] peer closed conn=%s", conn.ID())
			} else {
				logger.Infof("[ws] read err conn=%s err=%v", conn.ID(), rerr)
			}
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, perr := ParseFrame(data)
		if perr != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			logger.Infof("[ws] bad frame conn=%s err=%v sample=%q", conn.ID(), perr, sample)
			continue
		}

		switch frame.Kind {
		case KindJoinRoom, KindLeaveRoom:
			payload, derr := DecodePayload[RoomPayload](frame)
			if derr != nil || payload.Room == "" {
				logger.Infof("[ws] bad room control conn=%s err=%v", conn.ID(), derr)
				continue
			}
			if frame.Kind == KindJoinRoom {
				s.hub.Rooms().Subscribe(conn, payload.Room)
			} else {
				s.hub.Rooms().Unsubscribe(conn, payload.Room)
			}
		default:
			// clients never originate canonical events over the channel
			logger.Infof("[ws] ignoring non-control frame kind=%s conn=%s", frame.Kind, conn.ID())
		}
	}
}
