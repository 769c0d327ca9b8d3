package services

import (
	"errors"
	"fmt"

	"github.com/hanyong5/kiview/models"
	"gorm.io/gorm"
)

// ErrProductNotFound is returned when a checkout references a product that
// does not exist.
var ErrProductNotFound = errors.New("product not found")

// CheckoutItem is one requested line of a checkout.
type CheckoutItem struct {
	ProductID uint
	Quantity  int
}

// CheckoutService turns a cart into a persisted order. Unit prices are
// snapshotted at order time, the order total is the sum of the line
// subtotals, and member orders are paid by debiting the balance ledger in
// the same transaction.
type CheckoutService struct {
	db     *gorm.DB
	ledger *LedgerService
}

// NewCheckoutService creates a checkout service
func NewCheckoutService(db *gorm.DB, ledger *LedgerService) *CheckoutService {
	return &CheckoutService{db: db, ledger: ledger}
}

// PlaceOrder creates a pending order for the given user. If the user is a
// member the total is debited from their balance; ErrInsufficientBalance
// rolls the whole order back, leaving nothing persisted.
func (s *CheckoutService) PlaceOrder(user models.User, items []CheckoutItem) (models.Order, error) {
	var order models.Order

	if len(items) == 0 {
		return order, fmt.Errorf("order must contain at least one item")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return order, fmt.Errorf("item quantity must be positive, got %d", item.Quantity)
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		orderItems := make([]models.OrderItem, 0, len(items))
		total := 0
		for _, item := range items {
			var product models.Product
			if err := tx.First(&product, item.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: id %d", ErrProductNotFound, item.ProductID)
				}
				return fmt.Errorf("failed to load product %d: %w", item.ProductID, err)
			}
			orderItems = append(orderItems, models.OrderItem{
				ProductID: product.ID,
				Quantity:  item.Quantity,
				Price:     product.Price, // unit price snapshot
			})
			total += item.Quantity * product.Price
		}

		order = models.Order{
			UserID:     user.ID,
			TotalPrice: total,
			Status:     models.StatusPending,
			Items:      orderItems,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		// Members pay from their point balance; guest orders never touch
		// any balance.
		if !user.IsGuest() && total > 0 {
			if err := s.ledger.debitTx(tx, user.ID, total); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Order{}, err
	}

	// Reload with relations for the response and the change feed.
	if err := s.db.Preload("User").Preload("Items.Product").First(&order, order.ID).Error; err != nil {
		return models.Order{}, fmt.Errorf("failed to load order details: %w", err)
	}
	return order, nil
}
