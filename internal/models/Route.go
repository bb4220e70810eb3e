package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Route represents a college bus line.
// A route has a base fee, a seat capacity and many ordered boarding locations.
type Route struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string          `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Fee         decimal.Decimal `gorm:"type:numeric(8,2);not null" json:"fee"`
	MaxSeats    int             `gorm:"not null;default:50" json:"max_seats"`

	// Geometry stored as WKB; the API speaks GeoJSON LineString.
	Geometry []byte `gorm:"type:bytea" json:"-"`

	// Associations
	BoardingLocations []BoardingLocation `gorm:"foreignKey:RouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"boarding_locations,omitempty"`
}
