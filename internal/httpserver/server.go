package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/PratikDhanave/group-message-collector/internal/auth"
	"github.com/PratikDhanave/group-message-collector/internal/config"
	"github.com/PratikDhanave/group-message-collector/internal/handlers"
	"github.com/PratikDhanave/group-message-collector/internal/ws"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the router exposes. DB and Counter are nil when
// no Postgres mirror is configured.
type Deps struct {
	Collector handlers.Collector
	Hub       *ws.Hub
	DB        Pinger
	Counter   handlers.Counter
	Log       zerolog.Logger
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready
// Authenticated: /messages, /messages/count, /stats, /ws/records
func NewRouter(cfg config.Config, d Deps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggerMiddleware(d.Log))

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the event loop answers and the DB (if any) is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if _, err := d.Collector.Stats(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		if d.DB != nil {
			if err := d.DB.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	// Auth group enforces source context via X-API-Key.
	authGroup := r.Group("/")
	authGroup.Use(auth.APIKeyMiddleware(cfg.APIKeys))

	handlers.RegisterMessageRoutes(authGroup, d.Collector, d.Log)
	handlers.RegisterCountRoutes(authGroup, d.Counter)
	handlers.RegisterStatsRoutes(authGroup, d.Collector)
	if d.Hub != nil {
		handlers.RegisterStreamRoutes(authGroup, d.Hub)
	}

	return r
}

// NewHTTPServer returns the http.Server for the router.
func NewHTTPServer(cfg config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
