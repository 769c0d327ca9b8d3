package models

import (
	"time"

	"gorm.io/gorm"
)

// Product represents an item on the kiosk menu
type Product struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Price     int            `gorm:"not null;check:price >= 0" json:"price"`
	ImageURL  string         `json:"image_url"`          // public URL of the stored image
	ImageKey  string         `json:"-"`                  // storage key, used for deletion
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}
