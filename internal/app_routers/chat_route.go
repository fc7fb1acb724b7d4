package approuters

import (
	"github.com/gin-gonic/gin"

	"Outreach/internal/configuration"
)

// ChatRouters sets up the local chat API and the live state feed
func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatHandler := container.ChatHandler

	chatGroup := router.Group("/chat/api")
	{
		chatGroup.GET("/view", chatHandler.GetView)
		chatGroup.GET("/state", chatHandler.GetState)
		chatGroup.GET("/conversations", chatHandler.GetConversations)
		chatGroup.GET("/messages", chatHandler.GetMessages)
		// GET /chat/api/display-items?q=bo
		chatGroup.GET("/display-items", chatHandler.GetDisplayItems)

		chatGroup.POST("/select", chatHandler.SelectConversation)
		chatGroup.POST("/messages", chatHandler.SendMessage)
		chatGroup.POST("/read", chatHandler.MarkAsRead)
		chatGroup.POST("/typing/start", chatHandler.StartTyping)
		chatGroup.POST("/typing/stop", chatHandler.StopTyping)
		chatGroup.POST("/refresh/:target", chatHandler.Refresh)

		chatGroup.GET("/ws", func(c *gin.Context) {
			container.Hub.ServeWS(c.Writer, c.Request)
		})
	}
}
