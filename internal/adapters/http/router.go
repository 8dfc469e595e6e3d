package http

import (
	"context"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sidebarhq/sidebar/internal/adapters/signal"
	"github.com/sidebarhq/sidebar/internal/config"
	"github.com/sidebarhq/sidebar/internal/core"
	"github.com/sidebarhq/sidebar/internal/domain"
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

func SetupRouter(ctx context.Context, cfg *config.Config, rooms *core.RoomManager, ctl *signal.Controller) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("SidebarSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(cfg.StaticPath + "/index.html")
	})

	// Share-URL landing: a room link resolves for the room's whole
	// lifetime and serves the app, which joins over the websocket.
	r.GET("/r/:code", func(c *gin.Context) {
		if _, ok := rooms.GetRoom(domain.RoomCode(c.Param("code"))); !ok {
			c.String(http.StatusNotFound, "room not found")
			return
		}
		c.File(cfg.StaticPath + "/index.html")
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	api := r.Group("/api")

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, rooms.List())
	})

	api.POST("/rooms", func(c *gin.Context) {
		room := rooms.CreateRoom()
		ctl.WireRoom(room)
		c.JSON(http.StatusCreated, core.RoomInfo{
			Code:     room.Code(),
			ShareURL: room.ShareURL(),
		})
	})

	api.GET("/rooms/:code", func(c *gin.Context) {
		room, ok := rooms.GetRoom(domain.RoomCode(c.Param("code")))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, core.RoomInfo{
			Code:             room.Code(),
			ShareURL:         room.ShareURL(),
			ParticipantCount: len(room.Participants()),
			GroupCount:       len(room.Groups()),
		})
	})

	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("sid", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctl.HandleSignal(ctx, c)
	})

	return r
}
