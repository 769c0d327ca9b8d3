package models

import (
	"time"

	"gorm.io/gorm"
)

// Order statuses. An order starts as pending and moves through the kitchen
// queue; completed, delivered and cancelled are terminal.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// ActiveStatuses are the statuses shown in the live order queue.
var ActiveStatuses = []string{StatusPending, StatusProcessing}

// CompletedStatuses are the statuses shown in the recent-completed strip.
var CompletedStatuses = []string{StatusCompleted, StatusDelivered}

// ValidStatus reports whether s is one of the known order statuses
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether an order may move from one status to another.
// Cancellation is allowed from any non-cancelled status (admin force-cancel);
// the rest follows pending -> processing -> {completed, shipped -> delivered}.
func CanTransition(from, to string) bool {
	if from == to {
		return false
	}
	if to == StatusCancelled {
		return from != StatusCancelled
	}
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusShipped
	case StatusShipped:
		return to == StatusDelivered
	}
	return false
}

// Order represents a kiosk order
type Order struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	UserID     uint           `gorm:"not null;index" json:"user_id"`
	User       User           `gorm:"foreignKey:UserID" json:"user"`
	TotalPrice int            `gorm:"not null" json:"total_price"` // denormalized sum of item subtotals
	Status     string         `gorm:"not null;default:'pending';index" json:"status"`
	Items      []OrderItem    `gorm:"foreignKey:OrderID" json:"order_items"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// IsActive reports whether the order belongs in the live queue
func (o *Order) IsActive() bool {
	return o.Status == StatusPending || o.Status == StatusProcessing
}

// OrderItem is a single line of an order. Price is the unit price captured
// at order time and never changes afterwards, even if the product does.
type OrderItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;index" json:"order_id"`
	ProductID uint      `gorm:"not null;index" json:"product_id"`
	Product   Product   `gorm:"foreignKey:ProductID" json:"product"`
	Quantity  int       `gorm:"not null;check:quantity > 0" json:"quantity"`
	Price     int       `gorm:"not null" json:"price"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// Subtotal returns quantity times the captured unit price
func (i *OrderItem) Subtotal() int {
	return i.Quantity * i.Price
}
