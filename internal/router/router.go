// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/agritrace/agritrace-backend/internal/cache"
	"github.com/agritrace/agritrace-backend/internal/config"
	"github.com/agritrace/agritrace-backend/internal/handlers"
	"github.com/agritrace/agritrace-backend/internal/middleware"
	"github.com/agritrace/agritrace-backend/internal/models"
	"github.com/agritrace/agritrace-backend/internal/services"
	"github.com/agritrace/agritrace-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	c := cache.New(cfg.Redis)
	notificationService := services.NewNotificationService(db, cfg)
	stakeholderService := services.NewStakeholderService(db, notificationService)
	productService := services.NewProductService(db, stakeholderService, notificationService)
	shipmentService := services.NewShipmentService(db, stakeholderService, c, notificationService)
	tradingService := services.NewTradingService(db, stakeholderService, shipmentService, notificationService)
	provenanceService := services.NewProvenanceService(db, productService, shipmentService, c)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(stakeholderService, cfg)
	stakeholderHandler := handlers.NewStakeholderHandler(stakeholderService)
	productHandler := handlers.NewProductHandler(productService)
	tradingHandler := handlers.NewTradingHandler(tradingService)
	shipmentHandler := handlers.NewShipmentHandler(shipmentService)
	verificationHandler := handlers.NewVerificationHandler(provenanceService, stakeholderService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Stakeholder directory routes
		stakeholders := v1.Group("/stakeholders")
		{
			stakeholders.POST("/requests", middleware.AuthRateLimit(), stakeholderHandler.SubmitRequest)
			stakeholders.GET("/:id", middleware.AuthRequired(), stakeholderHandler.Get)
		}

		// Product batch routes
		products := v1.Group("/products")
		{
			products.GET("/:id/verify", productHandler.Verify)
			products.GET("/batch/:batchNumber", productHandler.GetByBatchNumber)

			protected := products.Group("")
			protected.Use(middleware.AuthRequired())
			{
				protected.POST("", middleware.RoleRequired(models.RoleFarmer), productHandler.CreateBatch)
				protected.GET("", productHandler.List)
				protected.GET("/:id", productHandler.Get)
				protected.PUT("/:id/stage", productHandler.UpdateStage)
				protected.GET("/:id/journey", productHandler.GetJourney)
				protected.GET("/:id/stages/:stage", productHandler.GetStageData)
				protected.DELETE("/:id", middleware.RoleRequired(models.RoleFarmer), productHandler.Deactivate)
			}
		}

		// Trading routes
		trading := v1.Group("/trading")
		trading.Use(middleware.AuthRequired())
		{
			trading.POST("/listings", tradingHandler.ListForSale)
			trading.DELETE("/listings/:productId", tradingHandler.Unlist)
			trading.POST("/offers", tradingHandler.CreateOffer)
			trading.GET("/offers", tradingHandler.ListOffers)
			trading.GET("/offers/:id", tradingHandler.GetOffer)
			trading.POST("/offers/:id/accept", tradingHandler.AcceptOffer)
			trading.POST("/offers/:id/cancel", tradingHandler.CancelOffer)
			trading.POST("/transfer", tradingHandler.TransferOwnership)
			trading.POST("/transactions", tradingHandler.RecordTransaction)
			trading.GET("/transactions", tradingHandler.ListTransactions)
			trading.POST("/purchase", tradingHandler.Purchase)
		}

		// Shipment routes
		shipments := v1.Group("/shipments")
		shipments.Use(middleware.AuthRequired())
		{
			shipments.POST("", shipmentHandler.Create)
			shipments.GET("", shipmentHandler.List)
			shipments.GET("/:id", shipmentHandler.Get)
			shipments.GET("/:id/history", shipmentHandler.GetHistory)
			shipments.PUT("/:id/status", shipmentHandler.UpdateStatus)
			shipments.PUT("/:id/location", shipmentHandler.UpdateLocation)
			shipments.POST("/:id/pickup", shipmentHandler.Pickup)
			shipments.POST("/:id/deliver", shipmentHandler.Deliver)
			shipments.POST("/:id/confirm", shipmentHandler.ConfirmDelivery)
			shipments.POST("/:id/cancel", shipmentHandler.Cancel)
		}

		// Public tracking lookup
		v1.GET("/track/:trackingNumber", middleware.VerifyRateLimit(), shipmentHandler.Track)

		// Verification routes (public)
		verify := v1.Group("/verify")
		verify.Use(middleware.VerifyRateLimit())
		{
			verify.GET("/products/:id", verificationHandler.VerifyProduct)
			verify.GET("/products/:id/supply-chain", verificationHandler.VerifySupplyChain)
			verify.GET("/products/:id/trace", verificationHandler.GetTraceabilityReport)
			verify.GET("/products/:id/trace/complete", verificationHandler.GetCompleteTraceabilityReport)
			verify.GET("/license/:key", verificationHandler.VerifyLicenseKey)
			verify.GET("/summary/:reference", verificationHandler.GetConsumerSummary)
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthRequired(), middleware.AdminRequired())
		{
			admin.POST("/stakeholders", stakeholderHandler.Register)
			admin.GET("/stakeholders/requests", stakeholderHandler.ListPendingRequests)
			admin.POST("/stakeholders/requests/:id/approve", stakeholderHandler.ApproveRequest)
			admin.POST("/stakeholders/requests/:id/reject", stakeholderHandler.RejectRequest)
			admin.POST("/stakeholders/:id/deactivate", stakeholderHandler.Deactivate)
			admin.POST("/stakeholders/:id/reactivate", stakeholderHandler.Reactivate)
			admin.POST("/stakeholders/:id/regenerate-key", stakeholderHandler.RegenerateLicenseKey)
			admin.POST("/partnerships", stakeholderHandler.AddPartnership)
			admin.GET("/statistics", stakeholderHandler.GetStatistics)
		}
	}

	return r
}
