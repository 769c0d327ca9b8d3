package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanyong5/kiview/config"
	"github.com/hanyong5/kiview/models"
	"github.com/hanyong5/kiview/services"
)

// CreditBalanceRequest represents the request body for an admin top-up
type CreditBalanceRequest struct {
	UserID uint `json:"user_id" binding:"required"`
	Amount int  `json:"amount" binding:"required,gt=0"`
}

// CreditBalance handles POST /api/v1/balances/credit - adds points to a
// member's balance, creating the balance row on first credit (admins only)
func CreditBalance(c *gin.Context) {
	var req CreditBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	db := config.GetDB()
	var user models.User
	if err := db.First(&user, req.UserID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User not found",
			},
		})
		return
	}

	// Points are meaningless for the walk-in identity.
	if user.IsGuest() {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "GUEST_NO_BALANCE",
				"message": "The guest identity cannot hold a balance",
			},
		})
		return
	}

	ledger := services.NewLedgerService(db)
	if err := ledger.Credit(user.ID, req.Amount); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to credit balance",
			},
		})
		return
	}

	balance, err := ledger.GetBalance(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load balance",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"user_id": user.ID,
			"balance": balance,
		},
	})
}

// ListBalances handles GET /api/v1/balances - returns every member balance
// with its owner, most recently updated first (admins only)
func ListBalances(c *gin.Context) {
	db := config.GetDB()
	var balances []models.Balance
	if err := db.Preload("User").Order("updated_at desc").Find(&balances).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load balances",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    balances,
	})
}
