package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"busmate/internal/models"
	"busmate/internal/services"
)

// RouteResponse mirrors models.Route with the geometry as GeoJSON.
type RouteResponse struct {
	ID                uint                      `json:"id"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
	Name              string                    `json:"name"`
	Description       string                    `json:"description"`
	Fee               decimal.Decimal           `json:"fee"`
	MaxSeats          int                       `json:"max_seats"`
	Geometry          string                    `json:"geometry,omitempty"`
	BoardingLocations []models.BoardingLocation `json:"boarding_locations"`
}

func toRouteResponse(route models.Route) RouteResponse {
	geometry, err := services.GeometryGeoJSON(route.Geometry)
	if err != nil {
		logrus.WithError(err).WithField("route_id", route.ID).Warn("stored route geometry is unreadable")
	}
	stops := route.BoardingLocations
	if stops == nil {
		stops = []models.BoardingLocation{}
	}
	return RouteResponse{
		ID:                route.ID,
		CreatedAt:         route.CreatedAt,
		UpdatedAt:         route.UpdatedAt,
		Name:              route.Name,
		Description:       route.Description,
		Fee:               route.Fee,
		MaxSeats:          route.MaxSeats,
		Geometry:          geometry,
		BoardingLocations: stops,
	}
}

type RouteController struct {
	catalog *services.CatalogService
}

func NewRouteController(catalog *services.CatalogService) *RouteController {
	return &RouteController{catalog: catalog}
}

// ListRoutes returns every route with its ordered stops.
func (rc *RouteController) ListRoutes(c *gin.Context) {
	routes, err := rc.catalog.ListRoutes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	resp := make([]RouteResponse, 0, len(routes))
	for _, r := range routes {
		resp = append(resp, toRouteResponse(r))
	}
	c.JSON(http.StatusOK, gin.H{"routes": resp})
}

func (rc *RouteController) GetRoute(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	route, err := rc.catalog.GetRoute(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(*route)})
}

// CreateRoute takes the stops as raw text, one per line or comma separated.
func (rc *RouteController) CreateRoute(c *gin.Context) {
	var input struct {
		Name              string          `json:"name" binding:"required"`
		Description       string          `json:"description"`
		Fee               decimal.Decimal `json:"fee"`
		MaxSeats          *int            `json:"max_seats"`
		Geometry          string          `json:"geometry"`
		BoardingLocations *string         `json:"boarding_locations"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("CreateRoute: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return
	}

	maxSeats := 50
	if input.MaxSeats != nil {
		maxSeats = *input.MaxSeats
	}
	route, err := rc.catalog.DefineRoute(c.Request.Context(), services.RouteInput{
		Name:        input.Name,
		Description: input.Description,
		Fee:         input.Fee,
		MaxSeats:    maxSeats,
		Geometry:    input.Geometry,
		Stops:       input.BoardingLocations,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"route": toRouteResponse(*route)})
}

// UpdateRoute handles partial updates of route metadata and stops.
func (rc *RouteController) UpdateRoute(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		Name              *string          `json:"name"`
		Description       *string          `json:"description"`
		Fee               *decimal.Decimal `json:"fee"`
		MaxSeats          *int             `json:"max_seats"`
		Geometry          *string          `json:"geometry"`
		BoardingLocations *string          `json:"boarding_locations"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		logrus.WithError(err).Warn("UpdateRoute: invalid input payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	route, err := rc.catalog.UpdateRoute(c.Request.Context(), id, services.RoutePatch{
		Name:        input.Name,
		Description: input.Description,
		Fee:         input.Fee,
		MaxSeats:    input.MaxSeats,
		Geometry:    input.Geometry,
		Stops:       input.BoardingLocations,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": toRouteResponse(*route)})
}

// SetStops replaces the ordered boarding locations of a route.
func (rc *RouteController) SetStops(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		BoardingLocations string `json:"boarding_locations"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	stops, err := rc.catalog.SetBoardingStops(c.Request.Context(), id, input.BoardingLocations)
	if err != nil {
		respondError(c, err)
		return
	}
	if stops == nil {
		stops = []models.BoardingLocation{}
	}
	c.JSON(http.StatusOK, gin.H{"boarding_locations": stops})
}

// DeleteRoute removes a route and its stops unless applications reference it.
func (rc *RouteController) DeleteRoute(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := rc.catalog.DeleteRoute(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route deleted successfully"})
}
