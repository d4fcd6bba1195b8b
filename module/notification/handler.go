package notification

import (
	"net/http"

	mw "Tribe/middleware/security"
	"Tribe/service/storage"
	"Tribe/tools/errs"

	"github.com/gin-gonic/gin"
)

// Handler serves notification history. Records are created by the
// dispatcher as mutation side effects, never through this API; the
// recipient can only read and mark them.
type Handler struct {
	store *storage.NotificationStore
}

func NewHandler(store *storage.NotificationStore) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.list)
	g.PUT("/:id/read", h.markRead)
	g.PUT("/read-all", h.markAllRead)
}

func (h *Handler) list(c *gin.Context) {
	out, err := h.store.ListByRecipient(c.Request.Context(), mw.UserID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) markRead(c *gin.Context) {
	if err := h.store.MarkRead(c.Request.Context(), c.Param("id"), mw.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
}

func (h *Handler) markAllRead(c *gin.Context) {
	if err := h.store.MarkAllRead(c.Request.Context(), mw.UserID(c)); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func fail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.HTTPStatus(err), errs.AsCodeError(err))
}
