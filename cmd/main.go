package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"campaign-sheet-service/internal/clients"
	"campaign-sheet-service/internal/clients/freeway"
	"campaign-sheet-service/internal/config"
	"campaign-sheet-service/internal/events"
	"campaign-sheet-service/internal/handlers"
	"campaign-sheet-service/internal/lock"
	"campaign-sheet-service/internal/middleware"
	"campaign-sheet-service/internal/models"
	"campaign-sheet-service/internal/repository"
	"campaign-sheet-service/internal/services"

	gosharedmw "github.com/Tesseract-Nexus/go-shared/middleware"
	"github.com/Tesseract-Nexus/go-shared/secrets"
	"github.com/Tesseract-Nexus/go-shared/tracing"
)

// @title Campaign Sheet API
// @version 1.0.0
// @description Spreadsheet export, bulk update and publish for the Ju campaign back-offices

// @contact.name Campaign Sheet API Support
// @contact.url http://www.example.com/support
// @contact.email support@example.com

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8095
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); cfg.LogLevel != "" && err == nil {
		logger.SetLevel(level)
	} else if cfg.IsProduction() {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	var readiness []handlers.Dependency

	// Operation log, optional
	var (
		opStore  services.OperationStore
		opReader handlers.OperationReader
	)
	if cfg.OperationLogEnabled {
		db, err := config.InitDB(cfg, logger)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		repo := repository.NewOperationRepository(db)
		opStore, opReader = repo, repo
		if sqlDB, err := db.DB(); err == nil {
			readiness = append(readiness, handlers.Dependency{Name: "database", Ping: sqlDB.PingContext})
		}
		log.Println("✓ Operation log enabled")
	} else {
		log.Println("OPERATION_LOG_ENABLED=false, operations will not be recorded")
	}

	// Session locks go through Redis when it is reachable
	var locker lock.Locker
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (using in-process session locks)", err)
		locker = lock.NewLocalLocker()
	} else {
		redisOpts.Password = secrets.GetRedisPassword()
		redisClient := redis.NewClient(redisOpts)
		defer redisClient.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("WARNING: Failed to connect to Redis: %v (using in-process session locks)", err)
			locker = lock.NewLocalLocker()
		} else {
			log.Println("✓ Redis connected successfully")
			locker = lock.NewRedisLocker(redisClient)
			readiness = append(readiness, handlers.Dependency{
				Name: "redis",
				Ping: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			})
		}
		cancel()
	}

	// Completion events only if NATS_URL is set
	var opPublisher services.OperationPublisher
	if cfg.NATSURL != "" {
		eventsPublisher, err := events.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
		} else {
			log.Println("✓ Events publisher initialized (NATS connected)")
			opPublisher = eventsPublisher
			defer eventsPublisher.Close()
		}
	} else {
		log.Println("NATS_URL not set, skipping event publishing initialization")
	}

	// Back-office clients and services
	retry := clients.DefaultRetryConfig()
	retry.MaxRetries = cfg.RemoteMaxRetries
	opts := services.Options{
		PageConcurrency:   cfg.PageConcurrency,
		DetailConcurrency: cfg.DetailConcurrency,
		MaxArchiveSize:    cfg.MaxUploadSize,
		ImageClient:       &http.Client{Timeout: cfg.HTTPTimeout},
		MaxImageSize:      cfg.MaxUploadSize,
	}
	newClient := func(p models.Platform) *freeway.Client {
		client, err := freeway.NewClient(services.FreewayConfig(p, freeway.Config{
			BaseURL:   cfg.BaseURL(p),
			Timeout:   cfg.HTTPTimeout,
			RateLimit: cfg.RemoteRateLimit,
			RateBurst: cfg.RemoteRateBurst,
			Retry:     retry,
		}))
		if err != nil {
			log.Fatalf("Failed to create %s client: %v", p, err)
		}
		return client
	}
	registry := services.NewRegistry(
		services.NewJuService(newClient(models.PlatformJu), opts, logger),
		services.NewTaoQiangGouService(newClient(models.PlatformTaoQiangGou), opts, logger),
		services.NewTaoQingCangService(newClient(models.PlatformTaoQingCang), opts, logger),
	)
	articles := services.NewArticleImageService(opts.ImageClient, cfg.ArticleImageURL, cfg.ArticleImageConcurrency, opts.MaxImageSize, logger)
	tracker := services.NewTracker(opStore, opPublisher, logger)

	sheetHandler := handlers.NewSheetHandler(registry, articles, tracker, locker, handlers.SheetHandlerConfig{
		OperationTimeout: cfg.OperationTimeout,
		SessionLockTTL:   cfg.SessionLockTTL,
	}, logger)
	operationsHandler := handlers.NewOperationsHandler(opReader, logger)

	// Initialize OpenTelemetry tracing
	var tracerProvider *tracing.TracerProvider
	if cfg.IsProduction() {
		tracerProvider, err = tracing.InitTracer(tracing.ProductionConfig("campaign-sheet-service"))
	} else {
		tracerProvider, err = tracing.InitTracer(tracing.DefaultConfig("campaign-sheet-service"))
	}
	if err != nil {
		log.Printf("WARNING: Failed to initialize tracing: %v (continuing without tracing)", err)
	} else {
		log.Println("✓ OpenTelemetry tracing initialized")
	}

	// Initialize Prometheus metrics
	metrics := gosharedmw.InitGlobalMetrics("tesseract", "campaign_sheet_service")
	log.Println("✓ Prometheus metrics initialized")

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(metrics.Middleware())
	router.Use(tracing.GinMiddleware("campaign-sheet-service"))
	router.Use(gosharedmw.CompressionMiddleware())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.ReadinessCheck(readiness...))
	router.GET("/metrics", gosharedmw.Handler())

	api := router.Group("/api/v1")
	api.Use(middleware.MaxBodySize(cfg.MaxUploadSize))
	{
		platforms := api.Group("/platforms/:platform")
		{
			platforms.POST("/export", sheetHandler.Export)
			platforms.POST("/update", sheetHandler.Update)
			platforms.POST("/publish", sheetHandler.Publish)
		}

		api.POST("/articles/images", sheetHandler.ArticleImages)

		operations := api.Group("/operations")
		{
			operations.GET("", operationsHandler.ListOperations)
			operations.GET("/:id", operationsHandler.GetOperation)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("Campaign sheet service starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down campaign-sheet-service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	if tracerProvider != nil {
		if err := tracerProvider.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer provider: %v", err)
		} else {
			log.Println("✓ Tracer provider shut down")
		}
	}

	log.Println("Campaign sheet service stopped")
}
