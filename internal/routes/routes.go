package routes

import (
	"net/http"

	ginlog "github.com/gin-contrib/logger"
	"github.com/gin-gonic/gin"

	"busmate/internal/controllers"
	"busmate/internal/middleware"
	"busmate/internal/services"
)

// Deps carries everything the route groups hand to gin.
type Deps struct {
	Auth      *middleware.JWTAuth
	Directory *services.DirectoryService

	AuthController        *controllers.AuthController
	RouteController       *controllers.RouteController
	ApplicationController *controllers.ApplicationController
	ProfileController     *controllers.ProfileController
	SupportController     *controllers.SupportController
	PassHub               *controllers.PassHub
}

func SetupRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(
		ginlog.SetLogger(ginlog.WithUTC(true), ginlog.WithSkipPath([]string{"/healthz"})),
		gin.Recovery(),
		middleware.RequestID(),
		middleware.EnableCORS(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	AuthRoutes(r, d)
	UserRoutes(r, d)
	AdminRoutes(r, d)
	WebSocketRoutes(r, d)

	return r
}
