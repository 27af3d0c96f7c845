// Package httpctl is the local control surface: a small gin API used to
// drive and observe the client in place of a visual UI.
package httpctl

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/keiv/huddle/internal/config"
)

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, ctl *Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("HuddleSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.httpctl").Msg("router setup")

	api := r.Group("/api")

	api.POST("/connect", ctl.Connect)
	api.POST("/disconnect", ctl.Disconnect)
	api.GET("/session", ctl.Session)

	api.GET("/participants", ctl.ListParticipants)
	api.POST("/participants/:id/pin", ctl.Pin)

	api.POST("/chat", ctl.SendChat)
	api.GET("/chat", ctl.Messages)

	api.POST("/media/:kind/toggle", ctl.ToggleMedia)
	api.GET("/devices", ctl.Devices)
	api.POST("/devices/refresh", ctl.RefreshDevices)

	api.GET("/quality", ctl.GetQuality)

	return r
}
