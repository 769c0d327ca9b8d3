package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/hanyong5/kiview/models"
	"gorm.io/gorm"
)

// ErrInsufficientBalance is returned by Debit when the member's balance
// cannot cover the requested amount.
var ErrInsufficientBalance = errors.New("insufficient balance")

// ErrOrderAlreadyCancelled is returned by RefundOrder when the order was
// cancelled before, preventing a double refund.
var ErrOrderAlreadyCancelled = errors.New("order already cancelled")

// LedgerService maintains per-member point balances. All mutations are
// single conditional SQL updates, so concurrent credits and debits against
// the same member cannot lose an update.
type LedgerService struct {
	db *gorm.DB
}

// NewLedgerService creates a ledger bound to the given database handle
func NewLedgerService(db *gorm.DB) *LedgerService {
	return &LedgerService{db: db}
}

// GetBalance returns the member's current balance. A missing row is the
// valid zero-state, not an error.
func (s *LedgerService) GetBalance(userID uint) (int, error) {
	var balance models.Balance
	err := s.db.Where("user_id = ?", userID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load balance: %w", err)
	}
	return balance.Balance, nil
}

// Credit adds amount to the member's balance, creating the row on first
// credit. The add is applied as `balance = balance + ?` so overlapping
// credits both land.
func (s *LedgerService) Credit(userID uint, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("credit amount must be positive, got %d", amount)
	}
	return s.creditTx(s.db, userID, amount)
}

// creditTx runs the credit against the given handle so it can participate
// in an enclosing transaction.
func (s *LedgerService) creditTx(tx *gorm.DB, userID uint, amount int) error {
	res := tx.Model(&models.Balance{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance + ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to credit balance: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	// First credit for this member: create the row. A concurrent first
	// credit can win the insert; fall back to the atomic add in that case.
	if err := tx.Create(&models.Balance{UserID: userID, Balance: amount}).Error; err != nil {
		res = tx.Model(&models.Balance{}).
			Where("user_id = ?", userID).
			Updates(map[string]interface{}{
				"balance":    gorm.Expr("balance + ?", amount),
				"updated_at": time.Now(),
			})
		if res.Error != nil || res.RowsAffected == 0 {
			return fmt.Errorf("failed to create balance: %w", err)
		}
	}
	return nil
}

// Debit subtracts amount from the member's balance. The subtraction is
// guarded by `balance >= amount` in the same statement, so a successful
// debit can never drive the balance negative.
func (s *LedgerService) Debit(userID uint, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("debit amount must be positive, got %d", amount)
	}
	return s.debitTx(s.db, userID, amount)
}

func (s *LedgerService) debitTx(tx *gorm.DB, userID uint, amount int) error {
	res := tx.Model(&models.Balance{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to debit balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Either no row (balance 0) or balance < amount.
		return ErrInsufficientBalance
	}
	return nil
}

// RefundOrder cancels the order and re-credits its total price to the owner,
// exactly once. Guest orders are cancelled without touching any balance. The
// whole operation runs in one transaction: if the credit fails the status
// change is rolled back too.
func (s *LedgerService) RefundOrder(orderID uint) (models.Order, error) {
	var order models.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("User").First(&order, orderID).Error; err != nil {
			return err
		}
		if order.Status == models.StatusCancelled {
			return ErrOrderAlreadyCancelled
		}
		if !order.User.IsGuest() && order.TotalPrice > 0 {
			if err := s.creditTx(tx, order.UserID, order.TotalPrice); err != nil {
				return err
			}
		}
		if err := tx.Model(&order).Update("status", models.StatusCancelled).Error; err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		order.Status = models.StatusCancelled
		return nil
	})
	return order, err
}
