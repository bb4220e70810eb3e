package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "PENDING"
	StatusPaid      ApplicationStatus = "PAID"
	StatusAllocated ApplicationStatus = "ALLOCATED"
	StatusRejected  ApplicationStatus = "REJECTED"
	StatusCancelled ApplicationStatus = "CANCELLED"
)

// ActiveStatuses are the statuses that block a new application on the same route.
var ActiveStatuses = []ApplicationStatus{StatusPending, StatusPaid, StatusAllocated}

// IsActive reports whether s counts towards the one-active-pass-per-route rule.
func (s ApplicationStatus) IsActive() bool {
	for _, a := range ActiveStatuses {
		if s == a {
			return true
		}
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusAllocated, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Label is the human readable status shown on screens and exports.
func (s ApplicationStatus) Label() string {
	switch s {
	case StatusPending:
		return "Pending Approval"
	case StatusPaid:
		return "Fee Paid"
	case StatusAllocated:
		return "Seat Allocated"
	case StatusRejected:
		return "Rejected"
	case StatusCancelled:
		return "Cancelled by User"
	}
	return string(s)
}

// Application is a bus pass request of one user for one route.
// BoardingLocation is a snapshot of the stop name, not a reference.
type Application struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID  uint  `gorm:"not null;index" json:"user_id"`
	User    User  `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user,omitempty"`
	RouteID uint  `gorm:"not null;index" json:"route_id"`
	Route   Route `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"route,omitempty"`

	BoardingLocation string              `gorm:"size:200;not null" json:"boarding_location"`
	ApplicationDate  time.Time           `gorm:"not null;autoCreateTime;<-:create" json:"application_date"`
	Status           ApplicationStatus   `gorm:"size:20;not null;default:PENDING;index" json:"status"`
	SeatNumber       *string             `gorm:"size:10" json:"seat_number"`
	PaidFee          decimal.NullDecimal `gorm:"type:numeric(8,2)" json:"paid_fee"`
	FeeBreakdown     datatypes.JSON      `gorm:"type:jsonb" json:"fee_breakdown,omitempty"`
}
