package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/PratikDhanave/group-message-collector/internal/ws"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // access is gated by the API key instead
	},
}

// RegisterStreamRoutes registers the live feed of accepted records.
//
// GET /ws/records[?group_id=...]
// - Requires X-API-Key or api_key query parameter
// - Without group_id every accepted record is streamed
func RegisterStreamRoutes(r gin.IRoutes, hub *ws.Hub) {
	r.GET("/ws/records", func(c *gin.Context) {
		group := c.Query("group_id")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		hub.Register(group, conn)
		defer hub.Unregister(group, conn)

		// Subscribers only listen; reading detects the close.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	})
}
