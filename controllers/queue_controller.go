package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/hanyong5/kiview/queue"
	"github.com/hanyong5/kiview/realtime"
)

// GetOrderQueue handles GET /api/v1/orders/queue - returns the current
// kitchen display snapshot: active orders oldest first, the most recent
// completed orders, and pending/processing counts
func GetOrderQueue(c *gin.Context) {
	tracker := queue.GetTracker()
	if tracker == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "QUEUE_UNAVAILABLE",
				"message": "Order queue is not running",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    tracker.Snapshot(),
	})
}

// StreamOrders handles GET /api/v1/orders/stream - upgrades to a websocket
// that receives every order change event as it happens
func StreamOrders(c *gin.Context) {
	hub := realtime.GetHub()
	if hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STREAM_UNAVAILABLE",
				"message": "Order stream is not running",
			},
		})
		return
	}

	hub.ServeWS(c.Writer, c.Request)
}
