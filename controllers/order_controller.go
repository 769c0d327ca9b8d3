package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hanyong5/kiview/config"
	"github.com/hanyong5/kiview/middleware"
	"github.com/hanyong5/kiview/models"
	"github.com/hanyong5/kiview/realtime"
	"github.com/hanyong5/kiview/services"
)

// kst is the kiosk's business timezone; sales periods are computed in it.
var kst = time.FixedZone("KST", 9*60*60)

// CreateOrderRequest represents the request body for a kiosk checkout.
// An absent phone (or the reserved guest number) places a guest order.
type CreateOrderRequest struct {
	Phone string                   `json:"phone"`
	Items []CreateOrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateOrderItemRequest is one cart line of a checkout
type CreateOrderItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

// CreateOrder handles POST /api/v1/orders - places an order. Member orders
// are paid from the point balance; guest orders never touch any balance.
func CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
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

	// Resolve the ordering identity: a member by phone, or the shared
	// walk-in identity.
	var user models.User
	phone := req.Phone
	if phone == "" {
		phone = models.GuestPhone
	}
	if err := db.Where("phone = ?", phone).First(&user).Error; err != nil {
		if phone == models.GuestPhone {
			// Guest identity should be seeded at migration; recreate it if
			// it ever goes missing.
			user = models.User{Name: "guest", Phone: models.GuestPhone}
			if err := db.Create(&user).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "DATABASE_ERROR",
						"message": "Failed to resolve guest identity",
					},
				})
				return
			}
		} else {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "USER_NOT_FOUND",
					"message": "No member registered with this phone number",
				},
			})
			return
		}
	}

	items := make([]services.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	checkout := services.NewCheckoutService(db, services.NewLedgerService(db))
	order, err := checkout.PlaceOrder(user, items)
	if err != nil {
		if errors.Is(err, services.ErrInsufficientBalance) {
			c.JSON(http.StatusPaymentRequired, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INSUFFICIENT_BALANCE",
					"message": "Balance is not sufficient to pay for this order",
				},
			})
			return
		}
		if errors.Is(err, services.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "PRODUCT_NOT_FOUND",
					"message": "One of the ordered products does not exist",
				},
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create order",
			},
		})
		return
	}

	segment := "member"
	if user.IsGuest() {
		segment = "guest"
	}
	middleware.OrdersPlaced.WithLabelValues(segment).Inc()
	realtime.GetHub().Publish(realtime.EventInsert, order)

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
	})
}

// ListOrders handles GET /api/v1/orders?period=week|month - returns orders
// with user and items, newest first, filtered to the current week or month
// in KST (admins only). Without a period, all orders are returned.
func ListOrders(c *gin.Context) {
	db := config.GetDB()
	query := db.Preload("User").Preload("Items.Product").Order("created_at desc")

	switch period := c.Query("period"); period {
	case "week", "month":
		query = query.Where("created_at >= ?", periodStart(period, time.Now()))
	case "":
	default:
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "period must be week or month",
			},
		})
		return
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load orders",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// periodStart returns the KST start of the current week (Sunday 00:00) or
// month for the given reference time.
func periodStart(period string, now time.Time) time.Time {
	local := now.In(kst)
	if period == "month" {
		return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, kst)
	}
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, kst)
	return dayStart.AddDate(0, 0, -int(local.Weekday()))
}

// GetOrder handles GET /api/v1/orders/:id
func GetOrder(c *gin.Context) {
	db := config.GetDB()
	var order models.Order
	if err := db.Preload("User").Preload("Items.Product").
		First(&order, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Order not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// UpdateOrderStatusRequest represents the request body for a status change
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateOrderStatus handles PUT /api/v1/orders/:id/status - moves an order
// through its lifecycle (admins only). Cancelling a member order refunds
// its total price to the member's balance, exactly once.
func UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
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

	if !models.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_STATUS",
				"message": "Unknown order status",
			},
		})
		return
	}

	db := config.GetDB()
	var order models.Order
	if err := db.Preload("User").First(&order, c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "ORDER_NOT_FOUND",
				"message": "Order not found",
			},
		})
		return
	}

	if req.Status == models.StatusCancelled {
		ledger := services.NewLedgerService(db)
		if _, err := ledger.RefundOrder(order.ID); err != nil {
			if errors.Is(err, services.ErrOrderAlreadyCancelled) {
				c.JSON(http.StatusConflict, gin.H{
					"success": false,
					"error": gin.H{
						"code":    "ORDER_ALREADY_CANCELLED",
						"message": "Order is already cancelled",
					},
				})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to cancel order",
				},
			})
			return
		}
		middleware.OrdersCancelled.Inc()
	} else {
		if !models.CanTransition(order.Status, req.Status) {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_STATUS_TRANSITION",
					"message": "Order cannot move from " + order.Status + " to " + req.Status,
				},
			})
			return
		}
		if err := db.Model(&order).Update("status", req.Status).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DATABASE_ERROR",
					"message": "Failed to update order status",
				},
			})
			return
		}
	}

	// Reload with relations for the response and the change feed.
	if err := db.Preload("User").Preload("Items.Product").First(&order, order.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load order details",
			},
		})
		return
	}

	realtime.GetHub().Publish(realtime.EventUpdate, order)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// SaleRow is one flattened order line in the sales report
type SaleRow struct {
	OrderID    uint      `json:"order_id"`
	OrderedAt  time.Time `json:"ordered_at"`
	UserName   string    `json:"user_name"`
	UserPhone  string    `json:"user_phone"`
	Guest      bool      `json:"guest"`
	Product    string    `json:"product"`
	Quantity   int       `json:"quantity"`
	UnitPrice  int       `json:"unit_price"`
	Subtotal   int       `json:"subtotal"`
	TotalPrice int       `json:"order_total"`
}

// SalesStats aggregates a sales segment
type SalesStats struct {
	Orders   int `json:"orders"`
	Quantity int `json:"quantity"`
	Amount   int `json:"amount"`
}

// ListSales handles GET /api/v1/sales?segment=all|guest|member - returns
// flattened order lines with guest/member segmentation and aggregate stats
// (admins only)
func ListSales(c *gin.Context) {
	segment := c.DefaultQuery("segment", "all")
	if segment != "all" && segment != "guest" && segment != "member" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "segment must be all, guest or member",
			},
		})
		return
	}

	db := config.GetDB()
	var orders []models.Order
	if err := db.Preload("User").Preload("Items.Product").
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load sales",
			},
		})
		return
	}

	rows := make([]SaleRow, 0)
	var stats SalesStats
	seenOrders := make(map[uint]bool)
	for _, order := range orders {
		guest := order.User.IsGuest()
		if (segment == "guest" && !guest) || (segment == "member" && guest) {
			continue
		}
		for _, item := range order.Items {
			rows = append(rows, SaleRow{
				OrderID:    order.ID,
				OrderedAt:  order.CreatedAt,
				UserName:   order.User.Name,
				UserPhone:  order.User.Phone,
				Guest:      guest,
				Product:    item.Product.Name,
				Quantity:   item.Quantity,
				UnitPrice:  item.Price,
				Subtotal:   item.Subtotal(),
				TotalPrice: order.TotalPrice,
			})
			stats.Quantity += item.Quantity
			stats.Amount += item.Subtotal()
		}
		if !seenOrders[order.ID] {
			seenOrders[order.ID] = true
			stats.Orders++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"rows":  rows,
			"stats": stats,
		},
	})
}
