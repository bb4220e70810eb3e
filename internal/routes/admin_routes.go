package routes

import (
	"busmate/internal/middleware"

	"github.com/gin-gonic/gin"
)

func AdminRoutes(r *gin.Engine, d Deps) {
	admin := r.Group("/admin")
	admin.Use(d.Auth.RequireAuth(), middleware.RequireAdmin(d.Directory))
	{
		admin.GET("/dashboard", d.ApplicationController.AdminDashboard)

		admin.GET("/routes", d.RouteController.ListRoutes)
		admin.POST("/routes", d.RouteController.CreateRoute)
		admin.GET("/routes/:id", d.RouteController.GetRoute)
		admin.PUT("/routes/:id", d.RouteController.UpdateRoute)
		admin.PUT("/routes/:id/stops", d.RouteController.SetStops)
		admin.DELETE("/routes/:id", d.RouteController.DeleteRoute)

		admin.GET("/applications", d.ApplicationController.AdminList)
		admin.GET("/applications/export", d.ApplicationController.AdminExport)
		admin.POST("/applications/:id/process", d.ApplicationController.Process)
	}
}
