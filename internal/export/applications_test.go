package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"busmate/internal/models"
)

func TestApplicationsWorkbook(t *testing.T) {
	seat := "S-001"
	apps := []models.Application{
		{
			ID:               4,
			User:             models.User{Username: "asha", FirstName: "Asha", LastName: "Nair"},
			Route:            models.Route{Name: "North Loop"},
			BoardingLocation: "Depot",
			Status:           models.StatusAllocated,
			SeatNumber:       &seat,
			PaidFee:          decimal.NewNullDecimal(decimal.NewFromInt(550)),
			ApplicationDate:  time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		},
		{
			ID:               5,
			User:             models.User{Username: "ravi"},
			Route:            models.Route{Name: "South Loop"},
			BoardingLocation: "Gate",
			Status:           models.StatusPending,
			ApplicationDate:  time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC),
		},
	}

	data, err := ApplicationsWorkbook(apps)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ApplicationsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "Boarding Location", rows[0][4])
	assert.Equal(t, []string{"4", "Asha Nair", "asha", "North Loop", "Depot", "Seat Allocated", "S-001", "550.00", "2024-06-01 09:30"}, rows[1])
	assert.Equal(t, "ravi", rows[2][1])
	assert.Equal(t, "Pending Approval", rows[2][5])
}

func TestApplicationsWorkbookEmpty(t *testing.T) {
	data, err := ApplicationsWorkbook(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ApplicationsSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
