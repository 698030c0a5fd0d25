package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/personal/ad-lifecycle/internal/application/service"
	"github.com/personal/ad-lifecycle/internal/domain/event"
	"github.com/personal/ad-lifecycle/internal/infrastructure/cache"
	"github.com/personal/ad-lifecycle/internal/infrastructure/eventsink"
	"github.com/personal/ad-lifecycle/internal/infrastructure/external"
	"github.com/personal/ad-lifecycle/internal/infrastructure/persistence"
	"github.com/personal/ad-lifecycle/internal/interfaces/http/handlers"
	"github.com/personal/ad-lifecycle/internal/lifecycle"
	"github.com/personal/ad-lifecycle/pkg/config"
	"github.com/personal/ad-lifecycle/pkg/logger"
	"github.com/personal/ad-lifecycle/pkg/monitoring"
)

func main() {
	// Handle health check command
	if len(os.Args) > 1 && os.Args[1] == "-health-check" {
		os.Exit(0)
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel, cfg.Environment)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sinkOpts := eventsink.Options{
		BufferSize:    cfg.Events.BufferSize,
		BatchSize:     cfg.Events.BatchSize,
		FlushInterval: time.Duration(cfg.Events.FlushIntervalMS) * time.Millisecond,
		WriteTimeout:  time.Duration(cfg.Events.PostgresWriteTimeout) * time.Second,
	}
	dependencies := make(map[string]handlers.Pinger)

	// Event pipeline: the in-memory ring always receives events and serves
	// queries unless Postgres is enabled
	memoryRepo := persistence.NewMemoryEventRepository(cfg.Events.MemoryCapacity)
	var eventRepo event.Repository = memoryRepo
	var asyncSinks []*eventsink.AsyncSink
	asyncSinks = append(asyncSinks, eventsink.NewAsyncSink("memory", memoryRepo, sinkOpts, logger))

	if cfg.Database.Enabled {
		db, err := initDatabase(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		defer db.Close()

		pgRepo := persistence.NewPostgresEventRepository(db)
		eventRepo = pgRepo
		asyncSinks = append(asyncSinks, eventsink.NewAsyncSink("postgres", pgRepo, sinkOpts, logger))
		dependencies["postgres"] = handlers.PingFunc(db.PingContext)
	}

	if cfg.Redis.Enabled {
		redisClient, err := initRedis(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize Redis: %v", err)
		}
		defer redisClient.Close()

		publisher := cache.NewRedisEventPublisher(redisClient, cfg.Events.RedisListKey, cfg.Events.RedisChannel, cfg.Events.RedisMaxListLength)
		asyncSinks = append(asyncSinks, eventsink.NewAsyncSink("redis", publisher, sinkOpts, logger))
		dependencies["redis"] = publisher
	}

	sinks := make(event.MultiSink, 0, len(asyncSinks)+1)
	for _, s := range asyncSinks {
		s.Start(ctx)
		sinks = append(sinks, s)
	}
	if cfg.Events.LogEvents {
		sinks = append(sinks, eventsink.NewLogSink(logger))
	}

	// Lifecycle controllers run on a single queue
	queue := lifecycle.NewMainQueue(logger)
	queue.Start(ctx)

	source := external.NewSimulatedSource(external.SimulatedOptions{
		FillRate:        cfg.Source.FillRate,
		MinLatency:      time.Duration(cfg.Source.MinLatencyMS) * time.Millisecond,
		MaxLatency:      time.Duration(cfg.Source.MaxLatencyMS) * time.Millisecond,
		DisplayDuration: time.Duration(cfg.Source.DisplayDurationMS) * time.Millisecond,
		PresentFailRate: cfg.Source.PresentFailRate,
		Revenue:         decimal.New(cfg.Source.RevenueMicros, -6),
		Currency:        cfg.Source.Currency,
		TestMode:        cfg.Source.TestMode,
		Seed:            cfg.Source.Seed,
	}, logger)

	dispatcher := service.NewDispatcher(source, queue, sinks, logger)
	if err := registerUnits(dispatcher, cfg.Ads.DocumentPath, logger); err != nil {
		logger.Fatalf("Failed to register ad units: %v", err)
	}

	// Initialize services and handlers
	unitService := service.NewUnitService(dispatcher, eventRepo, time.Duration(cfg.Server.ShowWaitSeconds)*time.Second)
	unitHandler := handlers.NewUnitHandler(unitService, dependencies)
	eventHandler := handlers.NewEventHandler(unitService)

	// Setup HTTP server
	router := setupRouter(cfg, logger)
	unitHandler.RegisterRoutes(router)
	eventHandler.RegisterRoutes(router)

	if cfg.Monitoring.Metrics.Enabled {
		router.GET(cfg.Monitoring.Metrics.Path, gin.WrapH(monitoring.PrometheusHandler()))
	}

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Starting Ad API server on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// Drain queued work so its events reach the sinks
	if err := queue.Call(shutdownCtx, func() {}); err != nil {
		logger.Warnf("Main queue did not drain: %v", err)
	}
	queue.Stop()
	for _, s := range asyncSinks {
		s.Stop()
	}

	logger.Info("Server exited")
}

// registerUnits loads the ad document and registers every unit it lists
func registerUnits(dispatcher *service.Dispatcher, path string, log *logger.Logger) error {
	doc, err := config.LoadAdDocument(path)
	if err != nil {
		return err
	}
	units, err := service.UnitsFromDocument(doc)
	if err != nil {
		return err
	}
	if len(units) == 0 {
		log.WithField("path", path).Warn("Ad document is disabled or empty")
		return nil
	}
	if err := dispatcher.RegisterAll(units); err != nil {
		return err
	}
	log.WithField("units", len(units)).Info("Registered ad units")
	return nil
}

func initDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	maxOpenConns := cfg.Database.MaxOpenConns
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	maxIdleConns := cfg.Database.MaxIdleConns
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(time.Duration(cfg.Database.ConnMaxLifetimeMinutes) * time.Minute)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

func initRedis(cfg *config.Config) (*redis.Client, error) {
	poolSize := cfg.Redis.PoolSize
	if poolSize == 0 {
		poolSize = 20
	}

	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     poolSize,
		ReadTimeout:  time.Duration(cfg.Redis.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Redis.WriteTimeoutSeconds) * time.Second,
		DialTimeout:  5 * time.Second,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}

func setupRouter(cfg *config.Config, logger *logger.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(loggingMiddleware(logger))
	router.Use(monitoring.MetricsMiddleware())

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

func loggingMiddleware(logger *logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output: logger.Writer(),
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[%s] %s %s %d %s %s\n",
				param.TimeStamp.Format("2006-01-02 15:04:05"),
				param.Method,
				param.Path,
				param.StatusCode,
				param.Latency,
				param.ClientIP,
			)
		},
	})
}
