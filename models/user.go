package models

import (
	"time"

	"gorm.io/gorm"
)

// GuestPhone is the reserved phone number that marks the shared walk-in
// identity. Orders attached to it never touch any balance, and real users
// are not allowed to register it.
const GuestPhone = "1004"

// User represents a kiosk member identified by phone number
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Phone     string         `gorm:"uniqueIndex;not null" json:"phone"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// IsGuest reports whether this user is the shared walk-in identity
func (u *User) IsGuest() bool {
	return u.Phone == GuestPhone
}
