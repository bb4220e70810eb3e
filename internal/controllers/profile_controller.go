package controllers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"busmate/internal/apperrors"
	"busmate/internal/middleware"
	"busmate/internal/models"
	"busmate/internal/services"
)

type ProfileController struct {
	directory *services.DirectoryService
	workflow  *services.WorkflowService
	catalog   *services.CatalogService
}

func NewProfileController(directory *services.DirectoryService, workflow *services.WorkflowService, catalog *services.CatalogService) *ProfileController {
	return &ProfileController{directory: directory, workflow: workflow, catalog: catalog}
}

// Dashboard tells the client which dashboard the caller belongs on.
func (pc *ProfileController) Dashboard(c *gin.Context) {
	admin, err := pc.directory.IsAdmin(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	redirect := "/user/dashboard"
	if admin {
		redirect = "/admin/dashboard"
	}
	c.JSON(http.StatusOK, gin.H{"role": roleOf(admin), "redirect": redirect})
}

// UserDashboard bundles the caller's profile, latest pass and the route catalog.
func (pc *ProfileController) UserDashboard(c *gin.Context) {
	ctx := c.Request.Context()
	userID := middleware.UserID(c)

	user, err := pc.loadUser(c, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	latest, err := pc.workflow.LatestForUser(ctx, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	routes, err := pc.catalog.ListRoutes(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]RouteResponse, 0, len(routes))
	for _, r := range routes {
		resp = append(resp, toRouteResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{
		"user":        userResponse(user),
		"application": latest,
		"routes":      resp,
	})
}

func (pc *ProfileController) GetProfile(c *gin.Context) {
	user, err := pc.loadUser(c, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}

func (pc *ProfileController) UpdateProfile(c *gin.Context) {
	var patch services.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	userID := middleware.UserID(c)
	if _, err := pc.directory.UpdateProfile(c.Request.Context(), userID, patch); err != nil {
		respondError(c, err)
		return
	}
	user, err := pc.loadUser(c, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": userResponse(user)})
}

// UploadPhoto accepts a multipart "photo" field.
func (pc *ProfileController) UploadPhoto(c *gin.Context) {
	file, header, err := c.Request.FormFile("photo")
	if err != nil {
		respondError(c, apperrors.Validation("photo", "photo is required"))
		return
	}
	defer file.Close()

	// Read one byte past the limit so oversized files are detected without
	// buffering them whole.
	data, err := io.ReadAll(io.LimitReader(file, services.MaxPhotoSize+1))
	if err != nil {
		logrus.WithError(err).Warn("UploadPhoto: could not read upload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read photo"})
		return
	}

	profile, err := pc.directory.SavePhoto(c.Request.Context(), middleware.UserID(c), header.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

func (pc *ProfileController) loadUser(c *gin.Context, userID uint) (*models.User, error) {
	ctx := c.Request.Context()
	user, err := pc.directory.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFound("user")
		}
		return nil, err
	}
	profile, err := pc.directory.GetOrCreateProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Profile = profile
	return user, nil
}
