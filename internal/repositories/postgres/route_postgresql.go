package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"busmate/internal/apperrors"
	"busmate/internal/models"
)

type routePostgreSQL struct {
	db *gorm.DB
}

func (r *routePostgreSQL) Create(ctx context.Context, route *models.Route) error {
	if err := r.db.WithContext(ctx).Omit("BoardingLocations").Create(route).Error; err != nil {
		if isUniqueViolation(err, "") {
			return apperrors.ErrDuplicateRoute
		}
		return fmt.Errorf("create route: %w", err)
	}
	return nil
}

func (r *routePostgreSQL) Update(ctx context.Context, route *models.Route) error {
	if err := r.db.WithContext(ctx).Omit("BoardingLocations").Save(route).Error; err != nil {
		if isUniqueViolation(err, "") {
			return apperrors.ErrDuplicateRoute
		}
		return fmt.Errorf("update route: %w", err)
	}
	return nil
}

func (r *routePostgreSQL) GetByID(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	err := r.db.WithContext(ctx).
		Preload("BoardingLocations", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, name ASC")
		}).
		First(&route, id).Error
	if err != nil {
		return nil, notFound(err, "route")
	}
	return &route, nil
}

func (r *routePostgreSQL) GetByName(ctx context.Context, name string) (*models.Route, error) {
	var route models.Route
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&route).Error; err != nil {
		return nil, notFound(err, "route")
	}
	return &route, nil
}

func (r *routePostgreSQL) List(ctx context.Context) ([]models.Route, error) {
	var routes []models.Route
	err := r.db.WithContext(ctx).
		Preload("BoardingLocations", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC, name ASC")
		}).
		Order("name ASC").
		Find(&routes).Error
	if err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

// LockByID issues SELECT ... FOR UPDATE; only meaningful inside WithTransaction.
func (r *routePostgreSQL) LockByID(ctx context.Context, id uint) (*models.Route, error) {
	var route models.Route
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&route, id).Error
	if err != nil {
		return nil, notFound(err, "route")
	}
	return &route, nil
}

func (r *routePostgreSQL) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Route{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete route: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("route")
	}
	return nil
}

type boardingLocationPostgreSQL struct {
	db *gorm.DB
}

func (r *boardingLocationPostgreSQL) ListByRoute(ctx context.Context, routeID uint) ([]models.BoardingLocation, error) {
	var stops []models.BoardingLocation
	err := r.db.WithContext(ctx).
		Where("route_id = ?", routeID).
		Order("position ASC, name ASC").
		Find(&stops).Error
	if err != nil {
		return nil, fmt.Errorf("list boarding locations: %w", err)
	}
	return stops, nil
}

func (r *boardingLocationPostgreSQL) GetByRouteAndName(ctx context.Context, routeID uint, name string) (*models.BoardingLocation, error) {
	var stop models.BoardingLocation
	if err := r.db.WithContext(ctx).Where("route_id = ? AND name = ?", routeID, name).First(&stop).Error; err != nil {
		return nil, notFound(err, "boarding location")
	}
	return &stop, nil
}

func (r *boardingLocationPostgreSQL) Create(ctx context.Context, stop *models.BoardingLocation) error {
	if err := r.db.WithContext(ctx).Create(stop).Error; err != nil {
		if isUniqueViolation(err, "") {
			return apperrors.ErrDuplicate
		}
		return fmt.Errorf("create boarding location: %w", err)
	}
	return nil
}

func (r *boardingLocationPostgreSQL) UpdatePosition(ctx context.Context, id uint, position int) error {
	return r.db.WithContext(ctx).
		Model(&models.BoardingLocation{}).
		Where("id = ?", id).
		Update("position", position).Error
}

func (r *boardingLocationPostgreSQL) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.BoardingLocation{}, id).Error
}
