package services

import (
	"fmt"

	"github.com/hanyong5/kiview/config"
	"github.com/hanyong5/kiview/models"
	"github.com/hanyong5/kiview/queue"
)

// FetchQueueOrders loads the live queue lists from the database. Used as the
// tracker's poll backstop and for its initial fill.
func FetchQueueOrders() (active, completed []models.Order, err error) {
	db := config.GetDB()

	if err := db.Preload("User").Preload("Items.Product").
		Where("status IN ?", models.ActiveStatuses).
		Order("created_at asc").
		Find(&active).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load active orders: %w", err)
	}

	if err := db.Preload("User").Preload("Items.Product").
		Where("status IN ?", models.CompletedStatuses).
		Order("created_at desc").
		Limit(queue.CompletedCap).
		Find(&completed).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load completed orders: %w", err)
	}

	return active, completed, nil
}

// FetchOrderDetail loads one order with its user, items and products
func FetchOrderDetail(id uint) (models.Order, error) {
	var order models.Order
	err := config.GetDB().Preload("User").Preload("Items.Product").First(&order, id).Error
	return order, err
}
