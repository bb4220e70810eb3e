package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"busmate/internal/apperrors"
	"busmate/internal/models"
	"busmate/internal/repositories"
)

// Partial unique indexes created by config.Migrate.
const (
	activeApplicationIndex = "idx_applications_active_user_route"
	seatNumberIndex        = "idx_applications_route_seat"
)

type applicationPostgreSQL struct {
	db *gorm.DB
}

func (r *applicationPostgreSQL) Create(ctx context.Context, app *models.Application) error {
	if err := r.db.WithContext(ctx).Omit("User", "Route").Create(app).Error; err != nil {
		if isUniqueViolation(err, activeApplicationIndex) {
			return apperrors.ErrDuplicateApplication
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (r *applicationPostgreSQL) Update(ctx context.Context, app *models.Application) error {
	if err := r.db.WithContext(ctx).Omit("User", "Route").Save(app).Error; err != nil {
		if isUniqueViolation(err, seatNumberIndex) {
			return apperrors.InvalidState("seat number already assigned on this route")
		}
		return fmt.Errorf("update application: %w", err)
	}
	return nil
}

func (r *applicationPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Application, error) {
	var app models.Application
	if err := r.db.WithContext(ctx).Preload("User").Preload("Route").First(&app, id).Error; err != nil {
		return nil, notFound(err, "application")
	}
	return &app, nil
}

func (r *applicationPostgreSQL) List(ctx context.Context, filters repositories.ApplicationFilters) ([]models.Application, error) {
	query := r.db.WithContext(ctx).Model(&models.Application{}).Preload("User").Preload("Route")
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.RouteID != nil {
		query = query.Where("route_id = ?", *filters.RouteID)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}

	var apps []models.Application
	if err := query.Order("application_date DESC, id DESC").Find(&apps).Error; err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return apps, nil
}

func (r *applicationPostgreSQL) HasActive(ctx context.Context, userID, routeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("user_id = ? AND route_id = ? AND status IN ?", userID, routeID, models.ActiveStatuses).
		Count(&count).Error
	return count > 0, err
}

func (r *applicationPostgreSQL) CountByRouteAndStatus(ctx context.Context, routeID uint, status models.ApplicationStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("route_id = ? AND status = ?", routeID, status).
		Count(&count).Error
	return count, err
}

func (r *applicationPostgreSQL) CountByRoute(ctx context.Context, routeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("route_id = ?", routeID).
		Count(&count).Error
	return count, err
}

type supportMessagePostgreSQL struct {
	db *gorm.DB
}

func (r *supportMessagePostgreSQL) Create(ctx context.Context, msg *models.SupportMessage) error {
	return r.db.WithContext(ctx).Omit("User").Create(msg).Error
}

func (r *supportMessagePostgreSQL) ListByUser(ctx context.Context, userID uint) ([]models.SupportMessage, error) {
	var msgs []models.SupportMessage
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&msgs).Error
	return msgs, err
}
