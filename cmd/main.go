package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"settlement-service/internal/clients"
	"settlement-service/internal/config"
	"settlement-service/internal/events"
	"settlement-service/internal/gateway"
	"settlement-service/internal/handlers"
	"settlement-service/internal/middleware"
	"settlement-service/internal/models"
	"settlement-service/internal/repository"
	"settlement-service/internal/services"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg := config.Load()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := connectDatabase(cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	if err := db.AutoMigrate(
		&models.Payment{},
		&models.SourceState{},
		&models.CommissionEntry{},
		&models.WebhookEvent{},
	); err != nil {
		logger.WithError(err).Fatal("Failed to run migrations")
	}

	repo := repository.NewPaymentRepository(db)
	gatewayClient := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAccessToken)

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("Invalid Redis URL")
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.WithError(err).Warn("Redis unreachable, idempotency guard disabled")
			redisClient = nil
		}
	}

	var publisher *events.Publisher
	if cfg.NATSURL != "" {
		publisher, err = events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.WithError(err).Warn("NATS unavailable, event publishing disabled")
		} else {
			defer publisher.Close()
		}
	}

	notificationClient := clients.NewNotificationClient(cfg.NotificationServiceURL, logger)
	dispatcher := services.NewSideEffectDispatcher(repo, notificationClient, publisher, logger)
	policy := services.NewCommissionPolicy(cfg.BookingCommissionBps, cfg.ContractCommissionBps, cfg.MarketplaceCommissionBps)

	paymentService := services.NewPaymentService(repo, gatewayClient, dispatcher, policy, logger)
	webhookService := services.NewWebhookService(repo, gatewayClient, dispatcher, logger)
	escrowService := services.NewEscrowService(repo, dispatcher, logger)
	reconciliation := services.NewReconciliationService(repo, gatewayClient, webhookService, cfg.SweepInterval, cfg.SweepCutoff, logger)
	reconciliation.Start()
	defer reconciliation.Stop()

	router := setupRouter(cfg, redisClient, publisher, paymentService, webhookService, escrowService)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Settlement service started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Forced shutdown")
	}
}

func connectDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		// Unique violations must be detectable as gorm.ErrDuplicatedKey for
		// the duplicate-submission path.
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	}
	return gorm.Open(postgres.Open(cfg.DatabaseDSN()), gormConfig)
}

func setupRouter(cfg *config.Config, redisClient *redis.Client, publisher *events.Publisher, paymentService *services.PaymentService, webhookService *services.WebhookService, escrowService *services.EscrowService) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowedOrigins = cfg.AllowedOrigins
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(corsConfig))
	router.Use(middleware.ValidateRequest())

	limits := middleware.NewSettlementRateLimits()

	paymentHandler := handlers.NewPaymentHandler(paymentService)
	webhookHandler := handlers.NewWebhookHandler(webhookService)
	escrowHandler := handlers.NewEscrowHandler(escrowService)

	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "healthy", "service": "settlement-service"}
		if publisher != nil {
			status["nats"] = publisher.IsConnected()
		}
		c.JSON(http.StatusOK, status)
	})

	api := router.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(limits.APIGeneral))
	{
		payments := api.Group("/payments")
		{
			payments.POST("",
				middleware.RateLimitMiddleware(limits.CreatePayment),
				middleware.IdempotencyGuard(redisClient),
				paymentHandler.CreatePayment)
			payments.GET("/:id", paymentHandler.GetPayment)
			payments.GET("/by-source/:sourceType/:sourceId", paymentHandler.ListPaymentsBySource)
			payments.POST("/:id/refund", middleware.RateLimitMiddleware(limits.Release), escrowHandler.RefundPayment)
			payments.POST("/:id/cancel", middleware.RateLimitMiddleware(limits.Release), escrowHandler.CancelPayment)
		}

		api.POST("/escrow/:sourceType/:sourceId/release",
			middleware.RateLimitMiddleware(limits.Release),
			escrowHandler.ReleaseEscrow)

		sources := api.Group("/sources")
		{
			sources.POST("/:sourceType/:sourceId/complete", escrowHandler.MarkWorkCompleted)
			sources.POST("/:sourceType/:sourceId/confirm", escrowHandler.MarkConfirmed)
		}

		api.GET("/counterparties/:id/balance", paymentHandler.GetCounterpartyBalance)
		api.GET("/commission/summary", paymentHandler.GetCommissionSummary)
	}

	webhooks := router.Group("/webhooks")
	webhooks.Use(middleware.RateLimitMiddleware(limits.Webhook))
	{
		webhooks.POST("/gateway", webhookHandler.HandleGatewayWebhook)
	}

	return router
}
