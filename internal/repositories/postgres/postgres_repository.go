package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"busmate/internal/apperrors"
	"busmate/internal/repositories"
)

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// PostgreSQLRepository implements repositories.Repository on top of GORM.
type PostgreSQLRepository struct {
	db *gorm.DB

	user             repositories.UserRepository
	profile          repositories.ProfileRepository
	route            repositories.RouteRepository
	boardingLocation repositories.BoardingLocationRepository
	application      repositories.ApplicationRepository
	supportMessage   repositories.SupportMessageRepository
}

// NewPostgreSQLRepository wires every sub-repository to db.
func NewPostgreSQLRepository(db *gorm.DB) *PostgreSQLRepository {
	return &PostgreSQLRepository{
		db:               db,
		user:             &userPostgreSQL{db: db},
		profile:          &profilePostgreSQL{db: db},
		route:            &routePostgreSQL{db: db},
		boardingLocation: &boardingLocationPostgreSQL{db: db},
		application:      &applicationPostgreSQL{db: db},
		supportMessage:   &supportMessagePostgreSQL{db: db},
	}
}

func (r *PostgreSQLRepository) User() repositories.UserRepository { return r.user }

func (r *PostgreSQLRepository) Profile() repositories.ProfileRepository { return r.profile }

func (r *PostgreSQLRepository) Route() repositories.RouteRepository { return r.route }

func (r *PostgreSQLRepository) BoardingLocation() repositories.BoardingLocationRepository {
	return r.boardingLocation
}

func (r *PostgreSQLRepository) Application() repositories.ApplicationRepository {
	return r.application
}

func (r *PostgreSQLRepository) SupportMessage() repositories.SupportMessageRepository {
	return r.supportMessage
}

// WithTransaction runs fn with a repository bound to a single GORM transaction.
// Returning an error from fn rolls the transaction back.
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewPostgreSQLRepository(tx))
	})
}

func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// isUniqueViolation reports whether err is a Postgres unique violation,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != uniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// notFound maps gorm.ErrRecordNotFound to a domain not-found error.
func notFound(err error, entity string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(entity)
	}
	return fmt.Errorf("load %s: %w", entity, err)
}
