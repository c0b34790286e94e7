package http

import (
	"context"
	"net/http"
	"path/filepath"

	"github.com/dkeye/physio/internal/adapters/signal"
	"github.com/dkeye/physio/internal/app/orch"
	"github.com/dkeye/physio/internal/config"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
)

const Version = "1.0.0"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
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

func SetupRouter(ctx context.Context, cfg *config.Config, o *orch.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("PhysioSessions", store))
	r.Use(ClientTokenMiddleware())

	r.Static("/static", cfg.StaticPath)
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Physiotherapy Platform API", "version": Version})
	})
	r.GET("/app", func(c *gin.Context) {
		c.File(filepath.Join(cfg.StaticPath, "index.html"))
	})

	log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("router setup")

	h := &sessionHandlers{
		orch:    o,
		limiter: NewRateLimiter(cfg.JoinRateLimit, cfg.JoinRateInterval),
	}

	api := r.Group("/api")
	api.GET("/sessions", h.list)
	api.POST("/sessions/create", h.create)
	api.POST("/sessions/join", h.join)
	api.GET("/sessions/:code", h.get)
	api.DELETE("/sessions/:code", h.discard)
	api.POST("/sessions/:code/end", h.end)
	api.GET("/sessions/:code/report", h.report)
	api.POST("/pose-data", h.poseData)
	api.GET("/whoami", h.whoami)
	api.GET("/stats", h.stats)

	ctrl := signal.NewSignalWSController(o, signal.OptionsFrom(cfg))
	r.GET("/ws/:code/:userId", func(c *gin.Context) {
		ctrl.HandleSignal(ctx, c)
	})

	return r
}

// WithCORS wraps the engine for the browser frontend.
func WithCORS(cfg *config.Config, h http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(h)
}
