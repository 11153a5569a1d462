package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Counter counts mirrored messages. It is backed by Postgres.
type Counter interface {
	CountMessages(ctx context.Context, groupID string, from, to time.Time) (int64, error)
}

// RegisterCountRoutes registers the mirror query endpoint.
//
// GET /messages/count?group_id=...&from=...&to=...
// - Requires X-API-Key
// - group_id is optional; from and to are RFC3339
// - Returns count for the window [from,to), or 503 when no mirror is configured
func RegisterCountRoutes(r gin.IRoutes, counter Counter) {
	r.GET("/messages/count", func(c *gin.Context) {
		if counter == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "postgres mirror not configured"})
			return
		}

		groupID := c.Query("group_id")
		fromStr := c.Query("from")
		toStr := c.Query("to")

		// Required query params per contract.
		if fromStr == "" || toStr == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from, to are required"})
			return
		}

		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}

		from = from.UTC()
		to = to.UTC()

		// Validate window to avoid confusing results.
		if !from.Before(to) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be < to"})
			return
		}

		count, err := counter.CountMessages(c.Request.Context(), groupID, from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db query failed"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"group_id": groupID,
			"count":    count,
		})
	})
}
