package httpctl

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/keiv/huddle/internal/app"
	"github.com/keiv/huddle/internal/chat"
	"github.com/keiv/huddle/internal/core"
	"github.com/keiv/huddle/internal/domain"
)

// Controller exposes the state owners over HTTP. It only calls their
// methods; it never mutates their state directly.
type Controller struct {
	Sessions     *app.SessionController
	Participants *app.ParticipantRegistry
	Media        *app.MediaController
	Chat         *chat.Manager
	Quality      *app.QualityMonitor
	Bridge       *app.EventBridge
}

type connectRequest struct {
	SessionInfo domain.SessionInfo `json:"sessionInfo" binding:"required"`
	Username    string             `json:"username" binding:"required"`
}

func (ctl *Controller) Connect(c *gin.Context) {
	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid session info"})
		return
	}
	if err := ctl.Sessions.Connect(c.Request.Context(), req.SessionInfo, req.Username); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	if sess := ctl.Sessions.Session(); sess != nil {
		ctl.Bridge.Activate(sess)
		ctl.Chat.SetLocalIdentity(string(sess.ConnectionID()), req.Username)
		if err := ctl.Media.Publish(c.Request.Context(), sess); err != nil {
			c.JSON(http.StatusOK, gin.H{"status": ctl.Sessions.Status(), "publish_error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": ctl.Sessions.Status()})
}

func (ctl *Controller) Disconnect(c *gin.Context) {
	if sess := ctl.Sessions.Session(); sess != nil {
		ctl.Media.Unpublish(c.Request.Context(), sess)
	}
	ctl.Bridge.Deactivate()
	ctl.Sessions.Disconnect(c.Request.Context())
	ctl.Participants.Clear()
	c.JSON(http.StatusOK, gin.H{"status": ctl.Sessions.Status()})
}

func (ctl *Controller) Session(c *gin.Context) {
	resp := gin.H{
		"status":   ctl.Sessions.Status(),
		"info":     ctl.Sessions.Info(),
		"username": ctl.Sessions.Username(),
	}
	if err := ctl.Sessions.LastError(); err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (ctl *Controller) ListParticipants(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.Participants.Snapshot())
}

func (ctl *Controller) Pin(c *gin.Context) {
	ctl.Participants.Pin(domain.ParticipantID(c.Param("id")))
	c.Status(http.StatusNoContent)
}

type chatRequest struct {
	Content string `json:"content" binding:"required"`
}

func (ctl *Controller) SendChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing content"})
		return
	}

	done, err := ctl.Chat.Send(c.Request.Context(), req.Content)
	if err != nil {
		var rateErr *core.RateLimitError
		var sizeErr *core.SizeExceededError
		switch {
		case errors.Is(err, core.ErrEmptyMessage):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.As(err, &rateErr):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
		case errors.As(err, &sizeErr):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": <-done})
}

func (ctl *Controller) Messages(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.Chat.Messages())
}

func (ctl *Controller) ToggleMedia(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		enabled bool
		err     error
	)
	switch c.Param("kind") {
	case "audio":
		enabled, err = ctl.Media.ToggleAudio(ctx)
	case "video":
		enabled, err = ctl.Media.ToggleVideo(ctx)
	case "screen":
		enabled, err = ctl.Media.ToggleScreenShare(ctx, ctl.Sessions.Session())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown media kind"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

func (ctl *Controller) Devices(c *gin.Context) {
	c.JSON(http.StatusOK, ctl.Media.Devices())
}

func (ctl *Controller) RefreshDevices(c *gin.Context) {
	if err := ctl.Media.UpdateDevices(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, ctl.Media.Devices())
}

func (ctl *Controller) GetQuality(c *gin.Context) {
	snap, ok := ctl.Quality.Last()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": true, "quality": snap})
}
