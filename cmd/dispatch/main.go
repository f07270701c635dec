package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/movemobility/dispatch/internal/bookings"
	"github.com/movemobility/dispatch/internal/dispatch"
	"github.com/movemobility/dispatch/internal/drivers"
	"github.com/movemobility/dispatch/internal/events"
	"github.com/movemobility/dispatch/internal/notifications"
	"github.com/movemobility/dispatch/internal/offers"
	"github.com/movemobility/dispatch/internal/tracking"
	"github.com/movemobility/dispatch/pkg/config"
	"github.com/movemobility/dispatch/pkg/database"
	"github.com/movemobility/dispatch/pkg/eventbus"
	"github.com/movemobility/dispatch/pkg/logger"
	"github.com/movemobility/dispatch/pkg/middleware"
	redisclient "github.com/movemobility/dispatch/pkg/redis"
	"github.com/movemobility/dispatch/pkg/validation"
	"github.com/movemobility/dispatch/pkg/websocket"
)

const (
	serviceName = "dispatch-service"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.Load(serviceName)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if err := logger.Init(cfg.Server.Environment); err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting dispatch service",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.String("environment", cfg.Server.Environment),
	)

	if err := middleware.InitSentry(cfg.Sentry, serviceName, cfg.Server.Environment); err != nil {
		logger.Warn("Sentry disabled", zap.Error(err))
	} else {
		defer sentry.Flush(2 * time.Second)
		logger.Info("Sentry error tracking initialized")
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := validation.Register(v); err != nil {
			logger.Fatal("Failed to register validators", zap.Error(err))
		}
	}

	if err := database.Migrate(&cfg.Database); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	db, err := database.NewPostgresPool(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)
	logger.Info("Connected to database")

	redisClient, err := redisclient.NewRedisClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("Failed to close redis client", zap.Error(err))
		}
	}()
	logger.Info("Connected to redis")

	var busPublisher events.BusPublisher
	if cfg.NATS.Enabled {
		busCfg := eventbus.DefaultConfig()
		busCfg.URL = cfg.NATS.URL
		busCfg.Name = serviceName

		bus, err := eventbus.New(busCfg)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", zap.Error(err))
		}
		defer bus.Close()
		busPublisher = bus
		logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
	}

	hub := websocket.NewHub()
	go hub.Run()

	notificationRepo := notifications.NewRepository(db)

	var push events.PushSink
	if cfg.Firebase.Enabled {
		sink, err := events.NewFirebaseSink(cfg.Firebase.CredentialsPath, notificationRepo)
		if err != nil {
			logger.Warn("Push notifications disabled", zap.Error(err))
		} else {
			push = events.NewResilientSink(sink)
			logger.Info("Firebase push notifications initialized")
		}
	}

	emitter := events.NewEmitter(busPublisher, hub, push)
	defer emitter.Close()

	driverRepo := drivers.NewRepository(db)
	bookingRepo := bookings.NewRepository(db)
	offerRepo := offers.NewRepository(db)

	driverService := drivers.NewService(driverRepo, redisClient)
	bookingService := bookings.NewService(bookingRepo, emitter)
	lifecycle := offers.NewLifecycle(offerRepo, emitter)

	dispatcher := dispatch.NewService(bookingRepo, offerRepo, driverService, emitter, cfg.Dispatch)
	bookingService.SetDispatcher(dispatcher)
	lifecycle.SetDispatcher(dispatcher)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := dispatch.NewSweeper(offerRepo, dispatcher, bookingService, cfg.Dispatch.SweepInterval())
	go sweeper.Start(rootCtx)
	defer sweeper.Stop()

	driverHandler := drivers.NewHandler(driverService)
	bookingHandler := bookings.NewHandler(bookingService)
	offerHandler := offers.NewHandler(lifecycle)
	trackingHandler := tracking.NewHandler(
		tracking.NewService(bookingRepo, driverService, offerRepo))
	notificationHandler := notifications.NewHandler(notificationRepo)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RecoveryWithSentry())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(serviceName))
	router.Use(middleware.CORS(cfg.Server.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": serviceName,
			"version": version,
		})
	})
	router.GET("/health/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unreachable"})
			return
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "redis unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	bookingRoutes := api.Group("/bookings")
	{
		bookingRoutes.POST("", middleware.RequireRole(middleware.RoleRider), bookingHandler.CreateBooking)
		bookingRoutes.GET("", middleware.RequireRole(middleware.RoleRider), bookingHandler.ListBookings)
		bookingRoutes.GET("/:id", bookingHandler.GetBooking)
		bookingRoutes.POST("/:id/cancel", middleware.RequireRole(middleware.RoleRider), bookingHandler.CancelBooking)
		bookingRoutes.PUT("/:id/status", middleware.RequireRole(middleware.RoleDriver), bookingHandler.UpdateStatus)
		bookingRoutes.GET("/:id/tracking", trackingHandler.GetSnapshot)
	}

	driverRoutes := api.Group("/drivers")
	{
		driverRoutes.PUT("/location", middleware.RequireRole(middleware.RoleDriver), driverHandler.UpdateLocation)
		driverRoutes.PUT("/online", middleware.RequireRole(middleware.RoleDriver), driverHandler.SetOnline)
		driverRoutes.GET("/nearby", driverHandler.NearbyDrivers)
		driverRoutes.GET("/:id", driverHandler.GetDriver)
	}

	offerRoutes := api.Group("/offers", middleware.RequireRole(middleware.RoleDriver))
	{
		offerRoutes.GET("/pending", offerHandler.PendingOffer)
		offerRoutes.POST("/accept", offerHandler.AcceptOffer)
		offerRoutes.POST("/decline", offerHandler.DeclineOffer)
	}

	notificationRoutes := api.Group("/notifications", middleware.RequireRole(middleware.RoleDriver))
	{
		notificationRoutes.GET("", notificationHandler.ListNotifications)
		notificationRoutes.POST("/read", notificationHandler.MarkRead)
	}

	deviceRoutes := api.Group("/devices")
	{
		deviceRoutes.POST("", notificationHandler.RegisterDevice)
		deviceRoutes.DELETE("", notificationHandler.RemoveDevice)
	}

	api.GET("/ws", func(c *gin.Context) {
		websocket.HandleWebSocket(c, hub)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-rootCtx.Done()

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
