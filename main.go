// File: slotbook/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"slotbook/config"
	sweepCron "slotbook/cron"
	"slotbook/database"
	bookingRepoPkg "slotbook/database/repository/booking"
	reservationRepoPkg "slotbook/database/repository/reservation"
	webhookeventRepoPkg "slotbook/database/repository/webhookevent"
	"slotbook/handlers"
	"slotbook/middleware"
	"slotbook/routes"
	"slotbook/services/availability"
	"slotbook/services/idempotency"
	"slotbook/services/notification"
	"slotbook/services/payment"
	"slotbook/services/ratelimit"
	"slotbook/services/reconciler"
	"slotbook/services/reservation"
	"slotbook/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stripe/stripe-go/v76"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()
	utils.InitRateLimitCache()
	stripe.Key = config.AppConfig.StripeKey

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())

	// repositories.
	holdRepo := reservationRepoPkg.NewMongoReservationRepo()
	bookedRepo := bookingRepoPkg.NewMongoBookingRepo()
	eventRepo := webhookeventRepoPkg.NewMongoEventRepo()
	for _, ensure := range []func() error{holdRepo.EnsureIndexes, bookedRepo.EnsureIndexes, eventRepo.EnsureIndexes} {
		if err := ensure(); err != nil {
			logger.Sugar().Fatalf("main: failed to ensure indexes: %v", err)
		}
	}

	// services.
	clock := utils.SystemClock{}

	gateway := payment.NewStripeGateway(
		logger,
		payment.DefaultRetryPolicy(),
		config.AppConfig.CheckoutSuccessURL,
		config.AppConfig.CheckoutCancelURL,
	)

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	defer asynqClient.Close()
	dispatcher := notification.NewAsynqDispatcher(asynqClient, logger)

	checker := availability.NewDefaultChecker(nil, clock, availability.Rules{
		MinNotice:    time.Duration(config.AppConfig.MinNoticeMin) * time.Minute,
		BufferBefore: time.Duration(config.AppConfig.BufferBeforeMin) * time.Minute,
		BufferAfter:  time.Duration(config.AppConfig.BufferAfterMin) * time.Minute,
	})

	reservationService := &reservation.DefaultService{
		Holds:        holdRepo,
		Bookings:     bookedRepo,
		Gateway:      gateway,
		Idempotency:  idempotency.NewRedisStore(utils.GetCacheClient()),
		Availability: checker,
		Clock:        clock,
		HoldTTL:      config.HoldDuration(),
		IdemTTL:      config.IdempotencyTTL(),
		Logger:       logger,
	}

	reconcilerService := &reconciler.DefaultService{
		Holds:      holdRepo,
		Bookings:   bookedRepo,
		Events:     eventRepo,
		Gateway:    gateway,
		Dispatcher: dispatcher,
		Clock:      clock,
		HoldTTL:    config.HoldDuration(),
		Logger:     logger,
	}

	limiter := ratelimit.NewLimiter(ratelimit.NewRedisCounterStore(utils.GetRateLimitClient()))
	holderIdentity := func(c *gin.Context) string { return c.GetHeader("X-Holder-Identity") }

	// Assemble the handler bundle.
	handlerBundle := &routes.HandlerBundle{
		Reservation:      handlers.NewReservationHandler(reservationService, logger),
		Webhook:          handlers.NewWebhookHandler(reconcilerService, config.AppConfig.StripeWebhookSecret, logger),
		Admin:            handlers.NewAdminHandler(reconcilerService, reservationService, logger),
		ReserveRateLimit: middleware.RateLimitMiddleware(limiter, holderIdentity, true),
		AdminRateLimit:   middleware.RateLimitMiddleware(limiter, holderIdentity, false),
	}

	// Register routes with the assembled handler bundle.
	routes.RegisterRoutes(router, handlerBundle)

	// Background workers: notification queue consumer and expiration sweep.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	sweepCron.InitNotifyWorker(workerCtx, &notification.LogSender{Logger: logger})
	sweeper := sweepCron.StartSweeper(reservationService, logger)
	defer sweeper.Stop()

	utils.StartHealthMonitor(utils.GetCacheClient(), utils.GetRateLimitClient(), database.MongoClient)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
