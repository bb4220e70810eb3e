// Package export renders admin spreadsheets.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"busmate/internal/models"
)

const ApplicationsSheet = "Applications"

var applicationHeaders = []interface{}{
	"ID", "Student", "Username", "Route", "Boarding Location",
	"Status", "Seat Number", "Paid Fee", "Applied On",
}

// ApplicationsWorkbook writes one row per application and returns the xlsx bytes.
func ApplicationsWorkbook(apps []models.Application) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), ApplicationsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	if err := f.SetSheetRow(ApplicationsSheet, "A1", &applicationHeaders); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	last, _ := excelize.CoordinatesToCellName(len(applicationHeaders), 1)
	if err := f.SetCellStyle(ApplicationsSheet, "A1", last, bold); err != nil {
		return nil, err
	}

	for i, app := range apps {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []interface{}{
			app.ID,
			app.User.FullName(),
			app.User.Username,
			app.Route.Name,
			app.BoardingLocation,
			app.Status.Label(),
			seatOrBlank(app.SeatNumber),
			feeOrBlank(app),
			app.ApplicationDate.Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(ApplicationsSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", app.ID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func seatOrBlank(seat *string) string {
	if seat == nil {
		return ""
	}
	return *seat
}

func feeOrBlank(app models.Application) string {
	if !app.PaidFee.Valid {
		return ""
	}
	return app.PaidFee.Decimal.StringFixed(2)
}
