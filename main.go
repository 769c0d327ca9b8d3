package main

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hanyong5/kiview/config"
	"github.com/hanyong5/kiview/controllers"
	"github.com/hanyong5/kiview/middleware"
	"github.com/hanyong5/kiview/models"
	"github.com/hanyong5/kiview/queue"
	"github.com/hanyong5/kiview/realtime"
	"github.com/hanyong5/kiview/services"
)

func main() {
	// Basic logging
	log.Println("Starting Kiview order API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Balance{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// The kiosk needs the shared walk-in identity before the first order.
	if err := seedGuestUser(); err != nil {
		log.Fatalf("Failed to seed guest user: %v", err)
	}

	// Initialize S3 and image services
	if s3Service, err := services.InitS3Service(); err != nil {
		log.Printf("S3 service unavailable, product image uploads will fail: %v", err)
	} else {
		services.InitImageService(s3Service)
	}

	// Catalog cache is optional; the API serves from the database without it.
	services.InitCatalogCache(cfg.RedisAddr, cfg.CatalogCacheTTL)

	// Start the realtime hub and the order queue tracker.
	hub := realtime.InitHub()

	tracker := queue.InitTracker(
		services.FetchQueueOrders,
		services.FetchOrderDetail,
		hub.Subscribe(),
		cfg.QueuePollInterval,
	)
	go tracker.Run(context.Background())

	// Initialize Gin router
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: false,
	}))
	router.Use(middleware.Metrics())

	router.GET("/metrics", middleware.MetricsHandler())

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		// Kiosk-facing routes
		v1.GET("/products", controllers.ListProducts)
		v1.GET("/products/:id", controllers.GetProduct)
		v1.POST("/users", controllers.CreateUser)
		v1.GET("/users/:id/balance", controllers.GetUserBalance)
		v1.POST("/orders", controllers.CreateOrder)
		v1.GET("/orders/queue", controllers.GetOrderQueue)
		v1.GET("/orders/stream", controllers.StreamOrders)

		// Admin routes
		admin := v1.Group("")
		admin.Use(middleware.EnsureValidToken(cfg), middleware.RequireRole("admin"))
		{
			admin.POST("/products", controllers.CreateProduct)
			admin.PUT("/products/:id", controllers.UpdateProduct)
			admin.DELETE("/products/:id", controllers.DeleteProduct)
			admin.GET("/users/search", controllers.SearchUsers)
			admin.POST("/balances/credit", controllers.CreditBalance)
			admin.GET("/balances", controllers.ListBalances)
			admin.GET("/orders", controllers.ListOrders)
			admin.GET("/orders/:id", controllers.GetOrder)
			admin.PUT("/orders/:id/status", controllers.UpdateOrderStatus)
			admin.GET("/sales", controllers.ListSales)
		}
	}

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// seedGuestUser makes sure the reserved walk-in identity exists
func seedGuestUser() error {
	db := config.GetDB()
	var guest models.User
	err := db.Where("phone = ?", models.GuestPhone).First(&guest).Error
	if err == nil {
		return nil
	}

	guest = models.User{Name: "guest", Phone: models.GuestPhone}
	return db.Create(&guest).Error
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Kiview order API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
