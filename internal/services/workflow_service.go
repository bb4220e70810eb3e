package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"busmate/internal/apperrors"
	"busmate/internal/events"
	"busmate/internal/export"
	"busmate/internal/models"
	"busmate/internal/repositories"
)

// Process actions accepted from the admin screen.
const (
	ActionAllocate = "allocate"
	ActionReject   = "reject"
)

// WorkflowService drives an application through
// PENDING -> PAID -> ALLOCATED | REJECTED, with CANCELLED reachable from
// PENDING and PAID.
type WorkflowService struct {
	repo      repositories.Repository
	directory *DirectoryService
	events    events.Publisher
}

func NewWorkflowService(repo repositories.Repository, directory *DirectoryService, publisher events.Publisher) *WorkflowService {
	return &WorkflowService{repo: repo, directory: directory, events: publisher}
}

// Apply creates an application for the chosen stop and settles the simulated
// payment in the same transaction. The returned application is PAID.
func (s *WorkflowService) Apply(ctx context.Context, userID, routeID uint, boardingLocation string) (*models.Application, error) {
	stopName := strings.TrimSpace(boardingLocation)
	if stopName == "" {
		return nil, apperrors.Validation("boarding_location", "boarding location is required")
	}
	if utf8.RuneCountInString(stopName) > MaxStopNameLength {
		return nil, apperrors.Validation("boarding_location", "boarding location must be at most 200 characters")
	}

	var app *models.Application
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		route, err := tx.Route().LockByID(ctx, routeID)
		if err != nil {
			return err
		}

		stops, err := tx.BoardingLocation().ListByRoute(ctx, routeID)
		if err != nil {
			return err
		}
		position, err := stopPosition(stops, stopName)
		if err != nil {
			return err
		}

		active, err := tx.Application().HasActive(ctx, userID, routeID)
		if err != nil {
			return err
		}
		if active {
			return apperrors.ErrDuplicateApplication
		}

		app = &models.Application{
			UserID:           userID,
			RouteID:          routeID,
			BoardingLocation: stopName,
			Status:           models.StatusPending,
		}
		if err := tx.Application().Create(ctx, app); err != nil {
			return err
		}

		fee := ComputeFee(route.Fee, position)
		breakdown, err := json.Marshal(fee)
		if err != nil {
			return fmt.Errorf("marshal fee breakdown: %w", err)
		}
		app.Status = models.StatusPaid
		app.PaidFee = decimal.NewNullDecimal(fee.PaidFee)
		app.FeeBreakdown = datatypes.JSON(breakdown)
		return tx.Application().Update(ctx, app)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"application_id": app.ID,
		"user_id":        userID,
		"route_id":       routeID,
		"paid_fee":       app.PaidFee.Decimal.StringFixed(2),
	}).Info("bus pass applied and paid")

	if err := s.directory.SetPreferredBoardingLocation(ctx, userID, stopName); err != nil {
		logrus.WithError(err).WithField("user_id", userID).Warn("could not remember preferred boarding location")
	}
	s.publish(ctx, app)
	return s.repo.Application().GetByID(ctx, app.ID)
}

// stopPosition returns the 1-based position of name. A route without stops
// accepts any name at position 0 (no discount).
func stopPosition(stops []models.BoardingLocation, name string) (int, error) {
	if len(stops) == 0 {
		return 0, nil
	}
	for _, stop := range stops {
		if stop.Name == name {
			return stop.Position, nil
		}
	}
	return 0, apperrors.Validation("boarding_location", "select a boarding location of this route")
}

// Cancel lets the owner withdraw a PENDING or PAID application.
func (s *WorkflowService) Cancel(ctx context.Context, applicationID, userID uint) (*models.Application, error) {
	var app *models.Application
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		app, err = tx.Application().GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.UserID != userID {
			return apperrors.ErrForbidden
		}
		if app.Status != models.StatusPending && app.Status != models.StatusPaid {
			return apperrors.InvalidState("this pass cannot be cancelled at its current status")
		}
		app.Status = models.StatusCancelled
		app.SeatNumber = nil
		return tx.Application().Update(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"application_id": app.ID, "user_id": userID}).Info("bus pass cancelled")
	s.publish(ctx, app)
	return app, nil
}

// AllocateSeat assigns the next seat of the route under the route row lock.
// A full route returns ErrCapacityExceeded and leaves the application PAID.
func (s *WorkflowService) AllocateSeat(ctx context.Context, applicationID uint) (*models.Application, error) {
	var app *models.Application
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		current, err := tx.Application().GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		route, err := tx.Route().LockByID(ctx, current.RouteID)
		if err != nil {
			return err
		}
		// Re-read under the lock so concurrent processing of the same
		// application sees the committed status.
		app, err = tx.Application().GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != models.StatusPaid {
			return apperrors.InvalidState("only paid applications can be allocated a seat")
		}

		allocated, err := tx.Application().CountByRouteAndStatus(ctx, route.ID, models.StatusAllocated)
		if err != nil {
			return err
		}
		if allocated >= int64(route.MaxSeats) {
			return apperrors.ErrCapacityExceeded
		}

		seat := SeatNumber(int(allocated) + 1)
		app.Status = models.StatusAllocated
		app.SeatNumber = &seat
		return tx.Application().Update(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"application_id": app.ID,
		"route_id":       app.RouteID,
		"seat_number":    *app.SeatNumber,
	}).Info("seat allocated")
	s.publish(ctx, app)
	return app, nil
}

func (s *WorkflowService) Reject(ctx context.Context, applicationID uint) (*models.Application, error) {
	var app *models.Application
	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		var err error
		app, err = tx.Application().GetByID(ctx, applicationID)
		if err != nil {
			return err
		}
		if app.Status != models.StatusPaid {
			return apperrors.InvalidState("only paid applications can be rejected")
		}
		app.Status = models.StatusRejected
		return tx.Application().Update(ctx, app)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithField("application_id", app.ID).Info("bus pass rejected")
	s.publish(ctx, app)
	return app, nil
}

// Process dispatches an admin action.
func (s *WorkflowService) Process(ctx context.Context, applicationID uint, action string) (*models.Application, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionAllocate:
		return s.AllocateSeat(ctx, applicationID)
	case ActionReject:
		return s.Reject(ctx, applicationID)
	}
	return nil, apperrors.ErrInvalidAction
}

// LatestForUser returns the user's most recent application, or nil when there is none.
func (s *WorkflowService) LatestForUser(ctx context.Context, userID uint) (*models.Application, error) {
	apps, err := s.ListForUser(ctx, userID)
	if err != nil || len(apps) == 0 {
		return nil, err
	}
	return &apps[0], nil
}

func (s *WorkflowService) ListForUser(ctx context.Context, userID uint) ([]models.Application, error) {
	return s.repo.Application().List(ctx, repositories.ApplicationFilters{UserID: &userID})
}

func (s *WorkflowService) ListAll(ctx context.Context, filters repositories.ApplicationFilters) ([]models.Application, error) {
	return s.repo.Application().List(ctx, filters)
}

func (s *WorkflowService) Get(ctx context.Context, applicationID uint) (*models.Application, error) {
	return s.repo.Application().GetByID(ctx, applicationID)
}

// PassDocument renders the downloadable pass. Other users' passes and passes
// that are not allocated are reported as not found.
func (s *WorkflowService) PassDocument(ctx context.Context, applicationID, userID uint) (string, string, error) {
	app, err := s.repo.Application().GetByID(ctx, applicationID)
	if err != nil {
		return "", "", err
	}
	if app.UserID != userID {
		return "", "", apperrors.NotFound("bus pass")
	}
	if app.Status != models.StatusAllocated || app.SeatNumber == nil {
		return "", "", apperrors.NotFound("allocated bus pass")
	}

	var b strings.Builder
	b.WriteString("--- BUSMATE COLLEGE BUS PASS ---\n")
	fmt.Fprintf(&b, "Student: %s\n", app.User.FullName())
	fmt.Fprintf(&b, "Route: %s\n", app.Route.Name)
	fmt.Fprintf(&b, "Boarding Point: %s\n", app.BoardingLocation)
	fmt.Fprintf(&b, "Seat Number: %s\n", *app.SeatNumber)
	b.WriteString("Status: VALID\n")
	fmt.Fprintf(&b, "Date Issued: %s\n", app.ApplicationDate.Format("2006-01-02"))

	return fmt.Sprintf("buspass_%d.txt", app.ID), b.String(), nil
}

// ExportApplications renders the filtered admin listing as an xlsx workbook.
func (s *WorkflowService) ExportApplications(ctx context.Context, filters repositories.ApplicationFilters) ([]byte, error) {
	apps, err := s.ListAll(ctx, filters)
	if err != nil {
		return nil, err
	}
	return export.ApplicationsWorkbook(apps)
}

func (s *WorkflowService) publish(ctx context.Context, app *models.Application) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishStatusChanged(ctx, events.NewPassStatusChanged(app)); err != nil {
		logrus.WithError(err).WithField("application_id", app.ID).Warn("could not publish status change")
	}
}
