package models

import "time"

type UserType string

const (
	UserTypeStudent UserType = "STUDENT"
	UserTypeFaculty UserType = "FACULTY"
)

// Valid reports whether t is one of the known user types.
func (t UserType) Valid() bool {
	return t == UserTypeStudent || t == UserTypeFaculty
}

// Profile holds the college specific data of a user.
// Exactly one profile exists per user; IsAdmin is the only role switch.
type Profile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID                    uint     `gorm:"uniqueIndex;not null" json:"user_id"`
	IsAdmin                   bool     `gorm:"not null;default:false" json:"is_admin"`
	UserType                  UserType `gorm:"size:20;not null;default:STUDENT" json:"user_type"`
	Department                string   `gorm:"size:100" json:"department"`
	MobileNumber              string   `gorm:"size:15" json:"mobile_number"`
	PreferredBoardingLocation string   `gorm:"size:200" json:"preferred_boarding_location"`
	Photo                     string   `json:"photo,omitempty"`
}
