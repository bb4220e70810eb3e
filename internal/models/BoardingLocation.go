package models

// BoardingLocation represents a pickup point along a route.
// Position is the 1-based order from the route origin and drives the fare discount.
type BoardingLocation struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	RouteID  uint   `gorm:"not null;uniqueIndex:idx_route_stop_name" json:"route_id"`
	Name     string `gorm:"size:200;not null;uniqueIndex:idx_route_stop_name" json:"name"`
	Position int    `gorm:"not null;default:1" json:"position"`
}
