package models

import (
	"time"
)

// Balance is the point balance of a single member. A row is created lazily
// on first credit; a missing row reads as zero, not as an error.
type Balance struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user"`
	Balance   int       `gorm:"not null;default:0" json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Balance model
func (Balance) TableName() string {
	return "balances"
}
