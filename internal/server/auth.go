package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const adminHeader = "X-Admin-Token"

// requireAdmin guards operator routes. With no ADMIN_TOKEN configured every
// request is allowed.
func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.isAdmin(c) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "operator token required"})
			return
		}
		c.Next()
	}
}

func (s *Server) isAdmin(c *gin.Context) bool {
	expected := s.cfg.AdminToken
	if expected == "" {
		return true
	}
	provided := strings.TrimSpace(c.GetHeader(adminHeader))
	if provided == "" {
		provided = strings.TrimSpace(c.Query("token"))
	}
	return provided != "" && subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) == 1
}
