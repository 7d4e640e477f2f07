package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/handlers"
	"github.com/charleybodyf1rst/BodyF1rst-Backend-CLEAN-sub007/internal/middleware"
)

func RegisterAdminRoutes(r gin.IRouter) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(), middleware.AdminOnly())
	{
		admin.GET("/flags", handlers.ListFlags) // ?status=OPEN
		admin.PATCH("/flags/:id", handlers.ReviewFlag)
	}
}
