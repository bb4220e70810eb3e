package repositories

import (
	"context"

	"busmate/internal/models"
)

// Repository aggregates every repository of the service.
type Repository interface {
	User() UserRepository
	Profile() ProfileRepository
	Route() RouteRepository
	BoardingLocation() BoardingLocationRepository
	Application() ApplicationRepository
	SupportMessage() SupportMessageRepository

	// WithTransaction runs fn inside one transaction. fn must only use the
	// Repository it receives.
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
}

type ProfileRepository interface {
	// GetByUserID returns apperrors.ErrNotFound when the user has no profile.
	GetByUserID(ctx context.Context, userID uint) (*models.Profile, error)
	// Create returns apperrors.ErrDuplicate when a profile already exists.
	Create(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
}

type RouteRepository interface {
	// Create returns apperrors.ErrDuplicateRoute on a name conflict.
	Create(ctx context.Context, route *models.Route) error
	Update(ctx context.Context, route *models.Route) error
	GetByID(ctx context.Context, id uint) (*models.Route, error)
	GetByName(ctx context.Context, name string) (*models.Route, error)
	List(ctx context.Context) ([]models.Route, error)
	// LockByID loads the route and holds a row lock until the transaction ends.
	LockByID(ctx context.Context, id uint) (*models.Route, error)
	Delete(ctx context.Context, id uint) error
}

type BoardingLocationRepository interface {
	// ListByRoute is ordered by position, then name.
	ListByRoute(ctx context.Context, routeID uint) ([]models.BoardingLocation, error)
	GetByRouteAndName(ctx context.Context, routeID uint, name string) (*models.BoardingLocation, error)
	Create(ctx context.Context, stop *models.BoardingLocation) error
	UpdatePosition(ctx context.Context, id uint, position int) error
	Delete(ctx context.Context, id uint) error
}

// ApplicationFilters narrows admin listings.
type ApplicationFilters struct {
	Status  *models.ApplicationStatus
	RouteID *uint
	UserID  *uint
}

type ApplicationRepository interface {
	// Create returns apperrors.ErrDuplicateApplication when an active
	// application for the same user and route exists.
	Create(ctx context.Context, app *models.Application) error
	Update(ctx context.Context, app *models.Application) error
	GetByID(ctx context.Context, id uint) (*models.Application, error)
	// List preloads user and route and orders by application date, newest first.
	List(ctx context.Context, filters ApplicationFilters) ([]models.Application, error)
	HasActive(ctx context.Context, userID, routeID uint) (bool, error)
	CountByRouteAndStatus(ctx context.Context, routeID uint, status models.ApplicationStatus) (int64, error)
	CountByRoute(ctx context.Context, routeID uint) (int64, error)
}

type SupportMessageRepository interface {
	Create(ctx context.Context, msg *models.SupportMessage) error
	ListByUser(ctx context.Context, userID uint) ([]models.SupportMessage, error)
}
