package http

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/RoomChat/internal/adapters/signal"
	"github.com/dkeye/RoomChat/internal/app"
	"github.com/dkeye/RoomChat/internal/config"
	"github.com/dkeye/RoomChat/internal/metrics"
)

const clientTokenCookie = "ct"

func genClientToken() string {
	return uuid.NewString()
}

// ClientTokenMiddleware tags every request with a long-lived browser token.
// The token is informational only and never identifies a chat session.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(clientTokenCookie)
		if token == "" {
			token = genClientToken()
			c.SetCookie(clientTokenCookie, token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// RequestLogger writes one zerolog line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("module", "adapters.http").
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, reg *app.Registry, ctl *signal.SignalWSController) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(RequestLogger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("RoomChatSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": reg.Count()})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	ws := func(c *gin.Context) {
		log.Debug().Str("module", "adapters.http").Str("client", c.GetString("client_token")).Msg("ws endpoint hit")
		ctl.HandleSignal(ctx, c)
	}
	r.GET("/ws", ws)

	api := r.Group("/api")
	api.GET("/ws", ws)
	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": reg.Rooms()})
	})

	return r
}

// WithCORS wraps h with the configured cross-origin policy.
func WithCORS(cfg *config.Config, h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(h)
}
