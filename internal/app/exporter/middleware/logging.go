package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// LoggingMiddleware returns a middleware that logs request and response details
func LoggingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":       c.Request.Method,
			"uri":          c.Request.URL.RequestURI(),
			"remote":       c.ClientIP(),
			"status":       c.Writer.Status(),
			"duration":     time.Since(start),
			"responseSize": c.Writer.Size(),
		})
		// scrapers hit /metrics every few seconds
		if c.Writer.Status() < 400 {
			entry.Debug("HTTP request handled")
			return
		}
		entry.Warn("HTTP request failed")
	}
}
