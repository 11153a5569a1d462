package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// sourceCtxKey is the Gin context key used to store the authenticated source name.
const sourceCtxKey = "source"

// APIKeyMiddleware maps X-API-Key → source name (the bridge or tool calling us).
// Websocket clients cannot set headers from a browser, so the api_key query
// parameter is accepted as a fallback.
func APIKeyMiddleware(keys map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := strings.TrimSpace(c.GetHeader("X-API-Key"))
		if apiKey == "" {
			apiKey = strings.TrimSpace(c.Query("api_key"))
		}
		source, ok := keys[apiKey]
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(sourceCtxKey, source)
		c.Next()
	}
}

// Source returns the authenticated source name from the request context.
func Source(c *gin.Context) string {
	v, _ := c.Get(sourceCtxKey)
	s, _ := v.(string)
	return s
}
