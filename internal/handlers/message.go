package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/PratikDhanave/group-message-collector/internal/auth"
	"github.com/PratikDhanave/group-message-collector/internal/collector"
	"github.com/PratikDhanave/group-message-collector/internal/models"
	"github.com/PratikDhanave/group-message-collector/internal/pipeline"
)

// Collector is the event loop the handlers talk to.
type Collector interface {
	Submit(ctx context.Context, ev models.Event) (models.Decision, error)
	Stats(ctx context.Context) (pipeline.Stats, error)
}

// RegisterMessageRoutes registers the ingestion-path endpoint.
//
// POST /messages
// - Requires X-API-Key (source context)
// - 201 with the record when accepted, 200 with the reason when suppressed
// - The decision is final once returned; persistence failures are logged server-side
func RegisterMessageRoutes(r gin.IRoutes, col Collector, log zerolog.Logger) {
	r.POST("/messages", func(c *gin.Context) {
		source := auth.Source(c)
		if source == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var ev models.Event
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
			return
		}

		// Required fields per contract.
		if err := ev.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if ev.Timestamp == 0 {
			ev.Timestamp = time.Now().Unix()
		}

		d, err := col.Submit(c.Request.Context(), ev)
		switch {
		case errors.Is(err, pipeline.ErrMetadata):
			c.JSON(http.StatusBadGateway, gin.H{"error": "metadata resolution failed"})
			return
		case errors.Is(err, collector.ErrStopped):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "shutting down"})
			return
		case err != nil:
			log.Warn().Err(err).Str("source", source).Str("message_id", ev.MessageID).Msg("submit failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message not processed"})
			return
		}

		status := http.StatusOK
		if d.Accepted {
			status = http.StatusCreated
		}
		c.JSON(status, d)
	})
}

// RegisterStatsRoutes exposes dedup counters and store sizes.
//
// GET /stats
func RegisterStatsRoutes(r gin.IRoutes, col Collector) {
	r.GET("/stats", func(c *gin.Context) {
		st, err := col.Stats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats unavailable"})
			return
		}
		c.JSON(http.StatusOK, st)
	})
}
