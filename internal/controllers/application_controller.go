package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"busmate/internal/apperrors"
	"busmate/internal/middleware"
	"busmate/internal/models"
	"busmate/internal/repositories"
	"busmate/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ApplicationController struct {
	workflow *services.WorkflowService
}

func NewApplicationController(workflow *services.WorkflowService) *ApplicationController {
	return &ApplicationController{workflow: workflow}
}

// Apply creates a paid application for the route in the path.
func (ac *ApplicationController) Apply(c *gin.Context) {
	routeID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		BoardingLocation string `json:"boarding_location" form:"boarding_location"`
	}
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := ac.workflow.Apply(c.Request.Context(), middleware.UserID(c), routeID, input.BoardingLocation)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"application": app})
}

// MyPass returns the latest application of the caller. application is null
// when the caller never applied.
func (ac *ApplicationController) MyPass(c *gin.Context) {
	app, err := ac.workflow.LatestForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app})
}

func (ac *ApplicationController) ListMine(c *gin.Context) {
	apps, err := ac.workflow.ListForUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": nonNil(apps)})
}

func (ac *ApplicationController) Cancel(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	app, err := ac.workflow.Cancel(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app})
}

// Download serves the allocated pass as a plain text attachment.
func (ac *ApplicationController) Download(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	filename, text, err := ac.workflow.PassDocument(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(text))
}

// AdminList lists all applications, optionally filtered by status and route_id.
func (ac *ApplicationController) AdminList(c *gin.Context) {
	filters, ok := applicationFilters(c)
	if !ok {
		return
	}
	apps, err := ac.workflow.ListAll(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": nonNil(apps)})
}

func (ac *ApplicationController) AdminExport(c *gin.Context) {
	filters, ok := applicationFilters(c)
	if !ok {
		return
	}
	data, err := ac.workflow.ExportApplications(c.Request.Context(), filters)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="applications.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Process applies an admin decision. action is allocate or reject.
func (ac *ApplicationController) Process(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		Action string `json:"action" form:"action"`
	}
	if err := c.ShouldBind(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	app, err := ac.workflow.Process(c.Request.Context(), id, input.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application": app})
}

// AdminDashboard summarises applications per status.
func (ac *ApplicationController) AdminDashboard(c *gin.Context) {
	apps, err := ac.workflow.ListAll(c.Request.Context(), repositories.ApplicationFilters{})
	if err != nil {
		respondError(c, err)
		return
	}
	counts := map[models.ApplicationStatus]int{
		models.StatusPending:   0,
		models.StatusPaid:      0,
		models.StatusAllocated: 0,
		models.StatusRejected:  0,
		models.StatusCancelled: 0,
	}
	for _, app := range apps {
		counts[app.Status]++
	}
	recent := apps
	if len(recent) > 10 {
		recent = recent[:10]
	}
	c.JSON(http.StatusOK, gin.H{
		"total":   len(apps),
		"counts":  counts,
		"pending": counts[models.StatusPaid],
		"recent":  nonNil(recent),
	})
}

func applicationFilters(c *gin.Context) (repositories.ApplicationFilters, bool) {
	var filters repositories.ApplicationFilters
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.ApplicationStatus(strings.ToUpper(raw))
		if !status.Valid() {
			respondError(c, apperrors.Validation("status", "unknown status"))
			return filters, false
		}
		filters.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("route_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, apperrors.Validation("route_id", "must be a number"))
			return filters, false
		}
		routeID := uint(id)
		filters.RouteID = &routeID
	}
	return filters, true
}

func nonNil(apps []models.Application) []models.Application {
	if apps == nil {
		return []models.Application{}
	}
	return apps
}
