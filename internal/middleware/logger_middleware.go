// Package middleware holds the gin middleware stack.
package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mikaelkraft/quicknote-pro/internal/logger"
)

// LoggerMiddleware logs every request on the shared structured logger.
type LoggerMiddleware struct {
	log *logrus.Entry
}

// NewLoggerMiddleware creates the request logging middleware.
func NewLoggerMiddleware() *LoggerMiddleware {
	return &LoggerMiddleware{log: logger.WithComponent("http")}
}

// RequestID assigns a request id so responses and log lines correlate.
func (m *LoggerMiddleware) RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("request_id", uuid.NewString())
		c.Next()
	}
}

// RequestLogger logs method, path, status and latency after each request.
func (m *LoggerMiddleware) RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		m.log.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"raw_query":  raw,
			"request_id": c.GetString("request_id"),
			"errors":     c.Errors.String(),
		}).Info("http request")
	}
}
