package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/handlers"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/middleware"
)

func RegisterChatRoutes(r gin.IRouter) {
	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware())
	{
		chat.GET("/conversations", handlers.GetConversations)
		chat.GET("/messages", handlers.GetMessages) // ?inboxId=... | ?groupId=...
		chat.POST("/messages", middleware.ChatRateLimit(), handlers.SendMessage)
		chat.POST("/messages/:id/read", handlers.MarkRead)
		chat.POST("/messages/:id/flag", handlers.FlagMessage)
		chat.DELETE("/messages/:id", handlers.DeleteMessage)
		chat.POST("/attachments", handlers.UploadAttachment)
		chat.GET("/online", handlers.GetOnlineUsers)
	}
}
