package routes

import (
	"busmate/internal/middleware"

	"github.com/gin-gonic/gin"
)

// UserRoutes are open to every authenticated user.
func UserRoutes(r *gin.Engine, d Deps) {
	user := r.Group("/")
	user.Use(d.Auth.RequireAuth())
	{
		user.GET("/dashboard", d.ProfileController.Dashboard)
		user.GET("/user/dashboard", middleware.RequireNormalUser(d.Directory), d.ProfileController.UserDashboard)

		user.GET("/profile", d.ProfileController.GetProfile)
		user.PUT("/profile", d.ProfileController.UpdateProfile)
		user.POST("/profile/photo", d.ProfileController.UploadPhoto)

		user.GET("/routes", d.RouteController.ListRoutes)
		user.GET("/routes/:id", d.RouteController.GetRoute)
		user.POST("/routes/:id/apply", d.ApplicationController.Apply)

		user.GET("/passes", d.ApplicationController.ListMine)
		user.GET("/passes/mine", d.ApplicationController.MyPass)
		user.POST("/passes/:id/cancel", d.ApplicationController.Cancel)
		user.GET("/passes/:id/download", d.ApplicationController.Download)

		user.GET("/support/messages", d.SupportController.History)
		user.POST("/support/messages", d.SupportController.PostMessage)
		user.POST("/support/chat", d.SupportController.Chat)
	}
}
