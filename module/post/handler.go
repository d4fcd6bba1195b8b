package post

import (
	"net/http"

	mw "Tribe/middleware/security"
	"Tribe/module/social/model"
	"Tribe/service/realtime"
	"Tribe/service/storage"
	"Tribe/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler owns the feed mutations. Every mutation persists first, then
// emits exactly one canonical event; posts are globally visible so they
// broadcast to every connection.
type Handler struct {
	posts    *storage.PostStore
	users    *storage.UserStore
	hub      *realtime.Hub
	notifier *realtime.Notifier
}

func NewHandler(posts *storage.PostStore, users *storage.UserStore, hub *realtime.Hub, notifier *realtime.Notifier) *Handler {
	return &Handler{posts: posts, users: users, hub: hub, notifier: notifier}
}

func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.list)
	g.POST("", h.create)
	g.DELETE("/:id", h.remove)
	g.PUT("/:id/like", h.like)
	g.POST("/:id/comments", h.comment)
	g.DELETE("/:id/comments/:commentId", h.removeComment)
}

func (h *Handler) list(c *gin.Context) {
	posts, err := h.posts.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, posts)
}

type createPost struct {
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl"`
}

func (h *Handler) create(c *gin.Context) {
	actor := mw.UserID(c)
	var in createPost
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("bind", "err", err))
		return
	}
	if in.Content == "" && in.ImageURL == "" {
		fail(c, errs.ErrArgs.WrapMsg("post must have content or an image"))
		return
	}
	p, err := h.posts.Insert(c.Request.Context(), actor, in.Content, in.ImageURL)
	if err != nil {
		fail(c, err)
		return
	}
	h.emit(realtime.KindNewPost, p)
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) remove(c *gin.Context) {
	actor := mw.UserID(c)
	id := c.Param("id")
	if err := h.posts.Delete(c.Request.Context(), id, actor); err != nil {
		fail(c, err)
		return
	}
	h.emit(realtime.KindPostDeleted, realtime.DeletedPayload{ID: id})
	c.JSON(http.StatusOK, gin.H{"id": id})
}

// like toggles. Only the like (not the unlike) of someone else's post
// notifies the owner.
func (h *Handler) like(c *gin.Context) {
	actor := mw.UserID(c)
	p, liked, err := h.posts.ToggleLike(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		fail(c, err)
		return
	}
	h.emit(realtime.KindPostUpdated, p)
	if liked && p.UserID != actor {
		if err := h.notifier.Dispatch(c.Request.Context(), p.UserID, actor, model.NotifyLike, p.ID); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, p)
}

type createComment struct {
	Text string `json:"text" binding:"required"`
}

func (h *Handler) comment(c *gin.Context) {
	actor := mw.UserID(c)
	var in createComment
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("comment text is required"))
		return
	}
	p, err := h.posts.AddComment(c.Request.Context(), c.Param("id"), actor, in.Text)
	if err != nil {
		fail(c, err)
		return
	}
	h.emit(realtime.KindPostUpdated, p)
	if p.UserID != actor {
		if err := h.notifier.Dispatch(c.Request.Context(), p.UserID, actor, model.NotifyComment, p.ID); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) removeComment(c *gin.Context) {
	actor := mw.UserID(c)
	p, err := h.posts.DeleteComment(c.Request.Context(), c.Param("id"), c.Param("commentId"), actor)
	if err != nil {
		fail(c, err)
		return
	}
	h.emit(realtime.KindPostUpdated, p)
	c.JSON(http.StatusOK, p)
}

func (h *Handler) emit(kind realtime.Kind, payload any) {
	f, err := realtime.NewFrame(kind, payload)
	if err != nil {
		return
	}
	_ = h.hub.BroadcastAll(f)
}

func fail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.HTTPStatus(err), errs.AsCodeError(err))
}
