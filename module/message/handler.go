package message

import (
	"net/http"

	mw "Tribe/middleware/security"
	"Tribe/service/realtime"
	"Tribe/service/storage"
	"Tribe/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler covers DMs and tribe chat. Message events are room-scoped:
// only connections that joined the conversation's room see them live.
type Handler struct {
	messages *storage.MessageStore
	tribes   *storage.TribeStore
	users    *storage.UserStore
	hub      *realtime.Hub
}

func NewHandler(messages *storage.MessageStore, tribes *storage.TribeStore, users *storage.UserStore, hub *realtime.Hub) *Handler {
	return &Handler{messages: messages, tribes: tribes, users: users, hub: hub}
}

func (h *Handler) RegisterMessages(g *gin.RouterGroup) {
	g.GET("/conversations", h.conversations)
	g.GET("/:userId", h.history)
	g.POST("/:userId", h.send)
}

func (h *Handler) RegisterTribes(g *gin.RouterGroup) {
	g.GET("", h.listTribes)
	g.POST("", h.createTribe)
	g.PUT("/:id/join", h.joinTribe)
	g.PUT("/:id/leave", h.leaveTribe)
	g.GET("/:id/messages", h.tribeHistory)
	g.POST("/:id/messages", h.sendTribeMessage)
}

func (h *Handler) conversations(c *gin.Context) {
	out, err := h.messages.Conversations(c.Request.Context(), mw.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) history(c *gin.Context) {
	out, err := h.messages.History(c.Request.Context(), mw.UserID(c), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type sendMessage struct {
	Message string `json:"message" binding:"required"`
}

// send persists the DM, then emits newMessage into the pair's room.
// Either direction of a block rejects the send.
func (h *Handler) send(c *gin.Context) {
	actor := mw.UserID(c)
	peer := c.Param("userId")
	if peer == actor {
		fail(c, errs.ErrArgs.WrapMsg("cannot message yourself"))
		return
	}
	var in sendMessage
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("message text is required"))
		return
	}
	if _, err := h.users.FindByID(c.Request.Context(), peer); err != nil {
		fail(c, err)
		return
	}
	blocked, err := h.users.EitherBlocked(c.Request.Context(), actor, peer)
	if err != nil {
		fail(c, err)
		return
	}
	if blocked {
		fail(c, errs.ErrUnauthorized.WrapMsg("blocked"))
		return
	}
	room := realtime.DMRoom(actor, peer)
	m, err := h.messages.Insert(c.Request.Context(), room, actor, peer, in.Message)
	if err != nil {
		fail(c, err)
		return
	}
	// room members plus the receiver's sessions without the chat open,
	// one copy per connection
	if f, ferr := realtime.NewFrame(realtime.KindNewMessage, m); ferr == nil {
		_ = h.hub.BroadcastRoomUser(room, peer, f)
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) listTribes(c *gin.Context) {
	out, err := h.tribes.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

type createTribe struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h *Handler) createTribe(c *gin.Context) {
	var in createTribe
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("tribe name is required"))
		return
	}
	t, err := h.tribes.Create(c.Request.Context(), mw.UserID(c), in.Name, in.Description)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *Handler) joinTribe(c *gin.Context) {
	if err := h.tribes.Join(c.Request.Context(), c.Param("id"), mw.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
}

func (h *Handler) leaveTribe(c *gin.Context) {
	if err := h.tribes.Leave(c.Request.Context(), c.Param("id"), mw.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
}

func (h *Handler) tribeHistory(c *gin.Context) {
	actor := mw.UserID(c)
	tribeID := c.Param("id")
	member, err := h.tribes.IsMember(c.Request.Context(), tribeID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	if !member {
		fail(c, errs.ErrUnauthorized.WrapMsg("not a tribe member", "tribe", tribeID))
		return
	}
	out, err := h.tribes.Messages(c.Request.Context(), tribeID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) sendTribeMessage(c *gin.Context) {
	actor := mw.UserID(c)
	tribeID := c.Param("id")
	var in sendMessage
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("message text is required"))
		return
	}
	member, err := h.tribes.IsMember(c.Request.Context(), tribeID, actor)
	if err != nil {
		fail(c, err)
		return
	}
	if !member {
		fail(c, errs.ErrUnauthorized.WrapMsg("not a tribe member", "tribe", tribeID))
		return
	}
	m, err := h.tribes.InsertMessage(c.Request.Context(), tribeID, actor, in.Message)
	if err != nil {
		fail(c, err)
		return
	}
	if f, ferr := realtime.NewFrame(realtime.KindNewTribeMessage, m); ferr == nil {
		_ = h.hub.BroadcastRoom(realtime.TribeRoom(tribeID), f)
	}
	c.JSON(http.StatusCreated, m)
}

func fail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.HTTPStatus(err), errs.AsCodeError(err))
}
