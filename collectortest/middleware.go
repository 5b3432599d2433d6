package collectortest

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIKeyRequired rejects requests whose X-API-KEY header does not match key.
// An empty key disables the check.
func APIKeyRequired(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if key == "" || c.GetHeader("X-API-KEY") == key {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: invalid API key"})
	}
}

// CORSMiddleware answers browser preflights so a page on another origin can
// post to the collector.
func CORSMiddleware(origin string) gin.HandlerFunc {
	if origin == "" {
		origin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, X-API-KEY, accept, origin")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")

		// Handle preflight requests (OPTIONS method).
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// stallMiddleware delays every request by the collector's configured latency.
func stallMiddleware(col *Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		stall(c, col.latency())
		c.Next()
	}
}
