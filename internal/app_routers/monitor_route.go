package approuters

import (
	"github.com/gin-gonic/gin"

	"Outreach/internal/configuration"
)

// MonitorRouters sets up monitoring API routes
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorGroup := router.Group("/chat/api/monitor")
	{
		// GET /chat/api/monitor/stats - session and feed statistics
		monitorGroup.GET("/stats", container.MonitorHandler.GetStats)
	}
}
