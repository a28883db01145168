package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionHeader = "X-Session-Token"

// respondError writes err as a JSON error with the status its kind maps to.
// Unexpected errors are logged and hidden from the client.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// sessionToken reads the participant session from the header, falling back
// to the session query parameter.
func sessionToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(sessionHeader)); token != "" {
		return token
	}
	return strings.TrimSpace(c.Query("session"))
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if raw := strings.TrimSpace(c.Query(key)); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil {
			return value
		}
	}
	return fallback
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		s.log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}
