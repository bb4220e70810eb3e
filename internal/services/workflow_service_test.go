package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busmate/internal/apperrors"
	"busmate/internal/models"
	"busmate/internal/repositories"
)

func TestApplyComputesDiscountedFee(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "asha")
	r := f.route(t, "North", 1000, 10, "Depot\nMarket\nCollege")

	app, err := f.workflow.Apply(ctx, u.ID, r.ID, "  College ")
	require.NoError(t, err)

	assert.Equal(t, models.StatusPaid, app.Status)
	assert.Equal(t, "College", app.BoardingLocation)
	require.True(t, app.PaidFee.Valid)
	assert.True(t, decimal.NewFromInt(550).Equal(app.PaidFee.Decimal), "got %s", app.PaidFee.Decimal)
	assert.Nil(t, app.SeatNumber)
	assert.Equal(t, "North", app.Route.Name)

	var breakdown FeeBreakdown
	require.NoError(t, json.Unmarshal(app.FeeBreakdown, &breakdown))
	assert.Equal(t, 3, breakdown.Position)
	assert.True(t, decimal.NewFromInt(450).Equal(breakdown.Discount))

	profile, err := f.directory.GetOrCreateProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "College", profile.PreferredBoardingLocation)

	assert.Equal(t, []models.ApplicationStatus{models.StatusPaid}, f.events.statuses())
}

func TestApplyFreeTextWhenRouteHasNoStops(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ravi")
	r := f.route(t, "Open", 700, 10, "")

	app, err := f.workflow.Apply(context.Background(), u.ID, r.ID, "Anywhere")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(700).Equal(app.PaidFee.Decimal))
}

func TestApplyValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "asha")
	r := f.route(t, "North", 1000, 10, "Depot")

	_, err := f.workflow.Apply(ctx, u.ID, r.ID, "   ")
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	_, err = f.workflow.Apply(ctx, u.ID, r.ID, "Nowhere")
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "boarding_location", apperrors.FieldOf(err))

	_, err = f.workflow.Apply(ctx, u.ID, 4242, "Depot")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	open := f.route(t, "Open", 500, 10, "")
	_, err = f.workflow.Apply(ctx, u.ID, open.ID, strings.Repeat("x", 201))
	require.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, "boarding_location", apperrors.FieldOf(err))

	app, err := f.workflow.Apply(ctx, u.ID, open.ID, strings.Repeat("x", 200))
	require.NoError(t, err)
	assert.Len(t, app.BoardingLocation, 200)
}

func TestApplyRejectsDuplicateUntilCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "asha")
	r := f.route(t, "North", 1000, 10, "Depot")

	first, err := f.workflow.Apply(ctx, u.ID, r.ID, "Depot")
	require.NoError(t, err)

	_, err = f.workflow.Apply(ctx, u.ID, r.ID, "Depot")
	require.ErrorIs(t, err, apperrors.ErrDuplicateApplication)

	_, err = f.workflow.Cancel(ctx, first.ID, u.ID)
	require.NoError(t, err)

	second, err := f.workflow.Apply(ctx, u.ID, r.ID, "Depot")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestConcurrentApplyCreatesOneActiveApplication(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "asha")
	r := f.route(t, "North", 1000, 10, "Depot")

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.workflow.Apply(ctx, u.ID, r.ID, "Depot")
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, apperrors.ErrDuplicateApplication)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestAllocateSeatUntilCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.route(t, "Small", 1000, 2, "Depot")

	var apps []*models.Application
	for i := 0; i < 3; i++ {
		u := f.user(t, fmt.Sprintf("user%d", i))
		app, err := f.workflow.Apply(ctx, u.ID, r.ID, "Depot")
		require.NoError(t, err)
		apps = append(apps, app)
	}

	for i, want := range []string{"S-001", "S-002"} {
		got, err := f.workflow.AllocateSeat(ctx, apps[i].ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAllocated, got.Status)
		require.NotNil(t, got.SeatNumber)
		assert.Equal(t, want, *got.SeatNumber)
	}

	_, err := f.workflow.AllocateSeat(ctx, apps[2].ID)
	require.ErrorIs(t, err, apperrors.ErrCapacityExceeded)

	third, err := f.workflow.Get(ctx, apps[2].ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, third.Status)
	assert.Nil(t, third.SeatNumber)
}

func TestAllocateSeatRequiresPaid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "asha")
	r := f.route(t, "North", 1000, 5, "Depot")
	app, err := f.workflow.Apply(ctx, u.ID, r.ID, "Depot")
	require.NoError(t, err)

	_, err = f.workflow.AllocateSeat(ctx, app.ID)
	require.NoError(t, err)

	_, err = f.workflow.AllocateSeat(ctx, app.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	_, err = f.workflow.Reject(ctx, app.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	again, err := f.workflow.Get(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, "S-001", *again.SeatNumber)
}

func TestConcurrentAllocationsNeverShareSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.route(t, "Busy", 1000, 20, "Depot")

	const n = 25
	ids := make([]uint, n)
	for i := range ids {
		u := f.user(t, fmt.Sprintf("rider%d", i))
		app, err := f.workflow.Apply(ctx, u.ID, r.ID, "Depot")
		require.NoError(t, err)
		ids[i] = app.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			_, err := f.workflow.AllocateSeat(ctx, id)
			if err != nil {
				assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded)
			}
		}(id)
	}
	wg.Wait()

	allocated := models.StatusAllocated
	apps, err := f.workflow.ListAll(ctx, repositories.ApplicationFilters{Status: &allocated, RouteID: &r.ID})
	require.NoError(t, err)
	assert.Len(t, apps, 20)

	seen := map[string]bool{}
	for _, app := range apps {
		require.NotNil(t, app.SeatNumber)
		assert.False(t, seen[*app.SeatNumber], "seat %s assigned twice", *app.SeatNumber)
		seen[*app.SeatNumber] = true
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "asha")
	other := f.user(t, "ravi")
	r := f.route(t, "North", 1000, 5, "Depot")

	app, err := f.workflow.Apply(ctx, owner.ID, r.ID, "Depot")
	require.NoError(t, err)

	_, err = f.workflow.Cancel(ctx, app.ID, other.ID)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	cancelled, err := f.workflow.Cancel(ctx, app.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.SeatNumber)

	_, err = f.workflow.Cancel(ctx, app.ID, owner.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	allocatedApp, err := f.workflow.Apply(ctx, owner.ID, r.ID, "Depot")
	require.NoError(t, err)
	_, err = f.workflow.AllocateSeat(ctx, allocatedApp.ID)
	require.NoError(t, err)
	_, err = f.workflow.Cancel(ctx, allocatedApp.ID, owner.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)

	assert.Equal(t, []models.ApplicationStatus{
		models.StatusPaid, models.StatusCancelled, models.StatusPaid, models.StatusAllocated,
	}, f.events.statuses())
}

func TestProcess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "asha")
	r := f.route(t, "North", 1000, 5, "Depot")
	app, err := f.workflow.Apply(ctx, u.ID, r.ID, "Depot")
	require.NoError(t, err)

	_, err = f.workflow.Process(ctx, app.ID, "approve")
	assert.ErrorIs(t, err, apperrors.ErrInvalidAction)

	rejected, err := f.workflow.Process(ctx, app.ID, "Reject")
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, rejected.Status)

	_, err = f.workflow.Process(ctx, app.ID, ActionAllocate)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestPassDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := &models.User{Username: "asha", FirstName: "Asha", LastName: "Nair"}
	require.NoError(t, f.repo.User().Create(ctx, u))
	other := f.user(t, "ravi")
	r := f.route(t, "North Loop", 1000, 5, "Depot")

	app, err := f.workflow.Apply(ctx, u.ID, r.ID, "Depot")
	require.NoError(t, err)

	_, _, err = f.workflow.PassDocument(ctx, app.ID, u.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound, "paid pass is not downloadable")

	_, err = f.workflow.AllocateSeat(ctx, app.ID)
	require.NoError(t, err)

	_, _, err = f.workflow.PassDocument(ctx, app.ID, other.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	name, text, err := f.workflow.PassDocument(ctx, app.ID, u.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("buspass_%d.txt", app.ID), name)
	assert.Contains(t, text, "Student: Asha Nair")
	assert.Contains(t, text, "Route: North Loop")
	assert.Contains(t, text, "Boarding Point: Depot")
	assert.Contains(t, text, "Seat Number: S-001")
	assert.Contains(t, text, "Status: VALID")
	assert.Contains(t, text, "Date Issued: "+app.ApplicationDate.Format("2006-01-02"))
}

func TestLatestAndListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.user(t, "asha")
	r1 := f.route(t, "North", 1000, 5, "Depot")
	r2 := f.route(t, "South", 800, 5, "Gate")

	none, err := f.workflow.LatestForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = f.workflow.Apply(ctx, u.ID, r1.ID, "Depot")
	require.NoError(t, err)
	second, err := f.workflow.Apply(ctx, u.ID, r2.ID, "Gate")
	require.NoError(t, err)

	latest, err := f.workflow.LatestForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	mine, err := f.workflow.ListForUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	onNorth, err := f.workflow.ListAll(ctx, repositories.ApplicationFilters{RouteID: &r1.ID})
	require.NoError(t, err)
	require.Len(t, onNorth, 1)
	assert.Equal(t, "North", onNorth[0].Route.Name)

	data, err := f.workflow.ExportApplications(ctx, repositories.ApplicationFilters{})
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestTransitionsFromDisallowedStates(t *testing.T) {
	seat := "S-001"
	tests := []struct {
		status models.ApplicationStatus
		seat   *string
	}{
		{models.StatusPending, nil},
		{models.StatusAllocated, &seat},
		{models.StatusRejected, nil},
		{models.StatusCancelled, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			u := f.user(t, "asha")
			r := f.route(t, "North", 1000, 5, "Depot")

			app := &models.Application{
				UserID:           u.ID,
				RouteID:          r.ID,
				BoardingLocation: "Depot",
				Status:           tt.status,
				SeatNumber:       tt.seat,
			}
			require.NoError(t, f.repo.Application().Create(ctx, app))

			_, err := f.workflow.AllocateSeat(ctx, app.ID)
			assert.ErrorIs(t, err, apperrors.ErrInvalidState, "allocate")
			_, err = f.workflow.Reject(ctx, app.ID)
			assert.ErrorIs(t, err, apperrors.ErrInvalidState, "reject")
			if tt.status != models.StatusPending {
				_, err = f.workflow.Cancel(ctx, app.ID, u.ID)
				assert.ErrorIs(t, err, apperrors.ErrInvalidState, "cancel")
			}

			got, err := f.workflow.Get(ctx, app.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.seat, got.SeatNumber)
			assert.Empty(t, f.events.statuses())
		})
	}
}
