package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidvest/internal/cache"
	"vidvest/internal/config"
	"vidvest/internal/database"
	"vidvest/internal/handlers"
	"vidvest/internal/logger"
	"vidvest/internal/metrics"
	"vidvest/internal/middleware"
	"vidvest/internal/services"
	"vidvest/internal/stats"
	"vidvest/internal/validator"
	"vidvest/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	_ "vidvest/internal/docs" // Import swagger docs
)

// @title           Vidvest API
// @version         1.0
// @description     Vidvest lets users buy shares of TikTok and Instagram videos priced from their likes, and track ROI as engagement changes.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey PipelineKey
// @in header
// @name X-API-Key

const shutdownTimeout = 15 * time.Second

func main() {
	logger.Init(os.Getenv("ENV"), os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Create database manager
	dbManager, err := database.NewManager(database.NewConfig(appConfig))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() { _ = dbManager.Close() }()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	redisCache, err := cache.New(ctx, appConfig.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	defer func() { _ = redisCache.Close() }()

	m := metrics.Default()
	provider := stats.NewApifyProvider(
		&http.Client{Timeout: appConfig.ApifyRequestTimeout},
		stats.ApifyConfig{
			Token:        appConfig.ApifyToken,
			BaseURL:      appConfig.ApifyBaseURL,
			PollAttempts: appConfig.ApifyPollAttempts,
			PollInterval: appConfig.ApifyPollInterval,
		},
	)

	// Initialize services
	db := dbManager.DB()
	// Start run, every poll and the dataset read, each bounded by the request timeout.
	fetchTimeout := time.Duration(appConfig.ApifyPollAttempts)*appConfig.ApifyPollInterval +
		time.Duration(appConfig.ApifyPollAttempts+2)*appConfig.ApifyRequestTimeout
	snapshotOpts := []services.SnapshotOption{
		services.WithMetrics(m),
		services.WithFetchTimeout(fetchTimeout),
	}
	if redisCache != nil {
		snapshotOpts = append(snapshotOpts, services.WithRateLimiter(redisCache, appConfig.StatsRateLimit))
	}
	snapshotService := services.NewSnapshotService(db, provider, snapshotOpts...)

	taskWorker := worker.NewTaskWorker(db, snapshotService, worker.Config{
		PollInterval:     appConfig.TaskPollInterval,
		BatchSize:        appConfig.TaskBatchSize,
		MaxAttempts:      appConfig.TaskMaxAttempts,
		MaxAge:           appConfig.StatsMaxAge,
		BackfillBaseline: appConfig.StatsBackfillBaseline,
	}, m)

	userService := services.NewUserService(db, appConfig.StartingBalance)
	videoService := services.NewVideoService(db, appConfig.DefaultTotalShares)
	ledgerService := services.NewLedgerService(db, taskWorker, m)
	refreshService := services.NewRefreshService(db, snapshotService, services.RefreshConfig{
		AllVideos:   appConfig.RefreshAllVideos,
		Concurrency: appConfig.RefreshConcurrency,
	}, m)
	auditService := services.NewAuditService(db)
	sweeper := worker.NewSweeper(refreshService, appConfig.RefreshInterval)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	investmentHandler := handlers.NewInvestmentHandler(videoService, snapshotService, ledgerService, auditService, appConfig.StatsMaxAge)
	videoHandler := handlers.NewVideoHandler(videoService, snapshotService)
	pipelineHandler := handlers.NewPipelineHandler(refreshService)

	checks := map[string]handlers.HealthChecker{"database": dbManager.Ping, "redis": nil}
	if redisCache != nil {
		checks["redis"] = redisCache.Health
	}
	healthHandler := handlers.NewHealthHandler(checks)

	validator.Register()
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.Metrics(m))
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/api/health", healthHandler.Health)

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/refresh", authHandler.Refresh)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	protected.GET("/profile", authHandler.GetProfile)
	protected.POST("/invest", investmentHandler.Invest)
	protected.POST("/preinvest", investmentHandler.Preinvest)
	protected.GET("/investments", investmentHandler.ListInvestments)
	protected.GET("/portfolio", investmentHandler.GetPortfolio)

	videos := protected.Group("/videos")
	videos.GET("/:id", videoHandler.GetVideo)
	videos.GET("/:id/snapshots", videoHandler.ListSnapshots)

	// Pipeline routes
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(appConfig.PipelineAPIKey))
	pipeline.POST("/refresh-stats", pipelineHandler.RefreshStats)
	pipeline.POST("/videos/:id/refresh", pipelineHandler.RefreshVideo)

	server := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		taskWorker.RunForever(gctx)
		return nil
	})
	if sweeper.Enabled() {
		g.Go(func() error {
			sweeper.RunForever(gctx)
			return nil
		})
	}
	g.Go(func() error {
		log.Infof("Starting Vidvest API server on port %s", appConfig.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
