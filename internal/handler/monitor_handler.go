package handler

import (
	"github.com/gin-gonic/gin"

	"Outreach/internal/hub"
)

// MonitorHandler handles monitoring API endpoints
type MonitorHandler interface {
	GetStats(c *gin.Context)
}

type monitorHandler struct {
	monitorService *hub.MonitorService
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService *hub.MonitorService) MonitorHandler {
	return &monitorHandler{
		monitorService: monitorService,
	}
}

// GetStats returns session and push feed statistics
// @Summary Get chat session statistics
// @Description Returns connection state, event counters and UI feed clients
// @Tags Monitor
// @Produce json
// @Success 200 {object} hub.MonitorResponse
// @Router /chat/api/monitor/stats [get]
func (h *monitorHandler) GetStats(c *gin.Context) {
	ok(c, h.monitorService.GetStats(), "Chat statistics retrieved successfully")
}
