package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/health"
)

// HealthHandler serves GET /health.
type HealthHandler struct {
	tracker *health.Tracker
	service string
	version string
}

// NewHealthHandler builds a HealthHandler reporting service/version
// alongside the connection status derived from tracker.
func NewHealthHandler(tracker *health.Tracker, service, version string) *HealthHandler {
	return &HealthHandler{tracker: tracker, service: service, version: version}
}

// Health implements GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"service":    h.service,
		"version":    h.version,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
		"connection": h.tracker.Status(),
	})
}
