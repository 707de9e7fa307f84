package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/raphaelgruber/docrelay/internal/metrics"
	"github.com/raphaelgruber/docrelay/internal/models"
)

// maxArgLogLen is the maximum length for logged query strings and errors before truncation.
const maxArgLogLen = 200

// slowRequestThreshold is the duration above which requests are logged at WARN level.
const slowRequestThreshold = 5 * time.Second

// LoggingMiddleware logs every request with timing and records it in m.
// Slow requests are logged at WARN, failures at ERROR, everything else at DEBUG.
func LoggingMiddleware(logger *slog.Logger, m *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		if m != nil {
			m.RecordTiming(metrics.OpRequest, duration)
		}

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", duration.Milliseconds(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			attrs = append(attrs, "params", truncate(q, maxArgLogLen))
		}

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0 || status >= http.StatusInternalServerError:
			if len(c.Errors) > 0 {
				attrs = append(attrs, "error", truncate(c.Errors.String(), maxArgLogLen))
			}
			if m != nil {
				m.RecordFailure(metrics.OpRequest)
			}
			logger.Error("request failed", attrs...)
		case duration > slowRequestThreshold:
			logger.Warn("slow request", attrs...)
		default:
			logger.Debug("request completed", attrs...)
		}
	}
}

// RecoveryMiddleware turns a handler panic into a 500 with the panic text as details.
func RecoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				err, ok := r.(error)
				if !ok {
					err = errors.New(fmt.Sprint(r))
				}
				logger.Error("handler panic", "path", c.Request.URL.Path, "error", err)
				_ = c.Error(err)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error":   "Failed to process request",
					"details": err.Error(),
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware allows every origin.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		h.Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// truncate shortens s to maxLen runes, ending in "..." when cut.
func truncate(s string, maxLen int) string {
	return models.Truncate(strings.TrimSpace(s), maxLen, max(maxLen-3, 0), "...")
}
