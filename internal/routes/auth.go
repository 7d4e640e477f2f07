package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/handlers"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/middleware"
)

func RegisterAuthRoutes(r gin.IRouter) {
	auth := r.Group("/auth")
	auth.Use(middleware.AuthRateLimit())
	{
		auth.POST("/login", handlers.Login)
		auth.POST("/logout", middleware.AuthMiddleware(), handlers.Logout)
		auth.GET("/me", middleware.AuthMiddleware(), handlers.Me)
	}
}
