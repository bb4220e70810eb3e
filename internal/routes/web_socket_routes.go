package routes

import (
	"github.com/gin-gonic/gin"
)

func WebSocketRoutes(r *gin.Engine, d Deps) {
	wsRoutes := r.Group("/ws")
	wsRoutes.Use(d.Auth.RequireAuth())
	{
		wsRoutes.GET("/passes", d.PassHub.HandlePassWebSocket)
	}
}
