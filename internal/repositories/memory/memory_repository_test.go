package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busmate/internal/apperrors"
	"busmate/internal/models"
	"busmate/internal/repositories"
)

func TestTransactionRollsBackOnError(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		require.NoError(t, tx.Route().Create(ctx, &models.Route{Name: "Ghost", MaxSeats: 1}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = repo.Route().GetByName(ctx, "Ghost")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNestedTransactionJoinsOuter(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()

	err := repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		return tx.WithTransaction(ctx, func(inner repositories.Repository) error {
			return inner.Route().Create(ctx, &models.Route{Name: "Inner", MaxSeats: 1})
		})
	})
	require.NoError(t, err)

	_, err = repo.Route().GetByName(ctx, "Inner")
	assert.NoError(t, err)
}

func TestActiveApplicationUniqueness(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	user := &models.User{Username: "asha"}
	require.NoError(t, repo.User().Create(ctx, user))
	route := &models.Route{Name: "North", MaxSeats: 5}
	require.NoError(t, repo.Route().Create(ctx, route))

	first := &models.Application{UserID: user.ID, RouteID: route.ID, BoardingLocation: "Depot", Status: models.StatusPaid}
	require.NoError(t, repo.Application().Create(ctx, first))

	dup := &models.Application{UserID: user.ID, RouteID: route.ID, BoardingLocation: "Depot", Status: models.StatusPending}
	assert.ErrorIs(t, repo.Application().Create(ctx, dup), apperrors.ErrDuplicateApplication)

	first.Status = models.StatusCancelled
	require.NoError(t, repo.Application().Update(ctx, first))
	assert.NoError(t, repo.Application().Create(ctx, dup))

	got, err := repo.Application().GetByID(ctx, dup.ID)
	require.NoError(t, err)
	assert.Equal(t, "asha", got.User.Username)
	assert.Equal(t, "North", got.Route.Name)
}

func TestSeatNumberUniquePerRoute(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	route := &models.Route{Name: "North", MaxSeats: 5}
	require.NoError(t, repo.Route().Create(ctx, route))

	seat := "S-001"
	a := &models.Application{UserID: 1, RouteID: route.ID, Status: models.StatusAllocated, SeatNumber: &seat}
	b := &models.Application{UserID: 2, RouteID: route.ID, Status: models.StatusPaid}
	require.NoError(t, repo.Application().Create(ctx, a))
	require.NoError(t, repo.Application().Create(ctx, b))

	b.SeatNumber = &seat
	assert.ErrorIs(t, repo.Application().Update(ctx, b), apperrors.ErrInvalidState)
}

func TestRouteDeleteBlockedByApplications(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	route := &models.Route{Name: "North", MaxSeats: 5}
	require.NoError(t, repo.Route().Create(ctx, route))
	require.NoError(t, repo.BoardingLocation().Create(ctx, &models.BoardingLocation{RouteID: route.ID, Name: "Depot", Position: 1}))
	require.NoError(t, repo.Application().Create(ctx, &models.Application{UserID: 1, RouteID: route.ID, Status: models.StatusRejected}))

	assert.ErrorIs(t, repo.Route().Delete(ctx, route.ID), apperrors.ErrRouteInUse)
}

func TestStopsOrderedByPositionThenName(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	route := &models.Route{Name: "North", MaxSeats: 5}
	require.NoError(t, repo.Route().Create(ctx, route))
	for _, s := range []models.BoardingLocation{
		{RouteID: route.ID, Name: "Market", Position: 2},
		{RouteID: route.ID, Name: "Beta", Position: 1},
		{RouteID: route.ID, Name: "Alpha", Position: 1},
	} {
		s := s
		require.NoError(t, repo.BoardingLocation().Create(ctx, &s))
	}
	dup := &models.BoardingLocation{RouteID: route.ID, Name: "Market", Position: 3}
	assert.ErrorIs(t, repo.BoardingLocation().Create(ctx, dup), apperrors.ErrDuplicate)

	stops, err := repo.BoardingLocation().ListByRoute(ctx, route.ID)
	require.NoError(t, err)
	var names []string
	for _, s := range stops {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"Alpha", "Beta", "Market"}, names)
}
