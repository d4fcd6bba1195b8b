package user

import (
	"net/http"

	mw "Tribe/middleware/security"
	"Tribe/module/social/model"
	"Tribe/service/realtime"
	"Tribe/service/storage"
	"Tribe/tools/errs"
	jwtlib "Tribe/tools/security"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	users    *storage.UserStore
	hub      *realtime.Hub
	notifier *realtime.Notifier
	jwtOpts  jwtlib.Options
}

func NewHandler(users *storage.UserStore, hub *realtime.Hub, notifier *realtime.Notifier, jwtOpts jwtlib.Options) *Handler {
	return &Handler{users: users, hub: hub, notifier: notifier, jwtOpts: jwtOpts}
}

// RegisterAuth mounts the unauthenticated endpoints.
func (h *Handler) RegisterAuth(g *gin.RouterGroup) {
	g.POST("/register", h.register)
	g.POST("/login", h.login)
}

func (h *Handler) Register(g *gin.RouterGroup) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.PUT("/profile", h.updateProfile)
	g.PUT("/:id/follow", h.follow)
	g.PUT("/:id/unfollow", h.unfollow)
	g.PUT("/:id/block", h.block)
	g.PUT("/:id/unblock", h.unblock)
}

type credentials struct {
	Name     string `json:"name"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) register(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("bind", "err", err))
		return
	}
	if in.Name == "" {
		in.Name = in.Username
	}
	u, err := h.users.Create(c.Request.Context(), in.Name, in.Username, in.Password)
	if err != nil {
		fail(c, err)
		return
	}
	token, exp, err := jwtlib.Generate(h.jwtOpts, u.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "expiresAt": exp, "user": u.Public()})
}

func (h *Handler) login(c *gin.Context) {
	var in credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("bind", "err", err))
		return
	}
	u, err := h.users.Authenticate(c.Request.Context(), in.Username, in.Password)
	if err != nil {
		fail(c, err)
		return
	}
	token, exp, err := jwtlib.Generate(h.jwtOpts, u.ID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp, "user": u.Public()})
}

func (h *Handler) list(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]*model.User, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) get(c *gin.Context) {
	u, err := h.users.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u.Public())
}

type profileUpdate struct {
	Name      *string `json:"name"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatarUrl"`
}

func (h *Handler) updateProfile(c *gin.Context) {
	actor := mw.UserID(c)
	var in profileUpdate
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, errs.ErrArgs.WrapMsg("bind", "err", err))
		return
	}
	u, err := h.users.UpdateProfile(c.Request.Context(), actor, in.Name, in.Bio, in.AvatarURL)
	if err != nil {
		fail(c, err)
		return
	}
	h.emitUserUpdated(u)
	c.JSON(http.StatusOK, u.Public())
}

// follow: target gains a follower, actor gains a following entry; each
// side's sessions get their own userUpdated. Following someone new also
// notifies them; a repeat follow is a no-op and stays silent.
func (h *Handler) follow(c *gin.Context) {
	actor := mw.UserID(c)
	target := c.Param("id")
	if actor == target {
		fail(c, errs.ErrArgs.WrapMsg("cannot follow yourself"))
		return
	}
	updatedTarget, changed, err := h.users.Follow(c.Request.Context(), actor, target)
	if err != nil {
		fail(c, err)
		return
	}
	updatedActor, err := h.users.FindByID(c.Request.Context(), actor)
	if err != nil {
		fail(c, err)
		return
	}
	h.emitUserUpdated(updatedTarget)
	h.emitUserUpdated(updatedActor)
	if changed {
		if err := h.notifier.Dispatch(c.Request.Context(), target, actor, model.NotifyFollow, actor); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, updatedTarget.Public())
}

func (h *Handler) unfollow(c *gin.Context) {
	actor := mw.UserID(c)
	target := c.Param("id")
	updatedTarget, err := h.users.Unfollow(c.Request.Context(), actor, target)
	if err != nil {
		fail(c, err)
		return
	}
	updatedActor, err := h.users.FindByID(c.Request.Context(), actor)
	if err != nil {
		fail(c, err)
		return
	}
	h.emitUserUpdated(updatedTarget)
	h.emitUserUpdated(updatedActor)
	c.JSON(http.StatusOK, updatedTarget.Public())
}

func (h *Handler) block(c *gin.Context) {
	actor := mw.UserID(c)
	target := c.Param("id")
	if actor == target {
		fail(c, errs.ErrArgs.WrapMsg("cannot block yourself"))
		return
	}
	u, err := h.users.Block(c.Request.Context(), actor, target)
	if err != nil {
		fail(c, err)
		return
	}
	h.emitUserUpdated(u)
	c.JSON(http.StatusOK, u.Public())
}

func (h *Handler) unblock(c *gin.Context) {
	actor := mw.UserID(c)
	u, err := h.users.Unblock(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	h.emitUserUpdated(u)
	c.JSON(http.StatusOK, u.Public())
}

// emitUserUpdated goes only to the affected user's own sessions, not to
// a room or globally.
func (h *Handler) emitUserUpdated(u *model.User) {
	f, err := realtime.NewFrame(realtime.KindUserUpdated, u.Public())
	if err != nil {
		return
	}
	_ = h.hub.SendUser(u.ID, f)
}

func fail(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.HTTPStatus(err), errs.AsCodeError(err))
}
