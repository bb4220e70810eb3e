package routes

import (
	"github.com/gin-gonic/gin"
)

func AuthRoutes(r *gin.Engine, d Deps) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", d.AuthController.Register)
		auth.POST("/login", d.AuthController.Login)
	}
}
