package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"llmpedia-backend/internal/app"
	"llmpedia-backend/internal/cache"
	"llmpedia-backend/internal/config"
	"llmpedia-backend/internal/logger"
	"llmpedia-backend/internal/queue"
	"llmpedia-backend/internal/rag"
	"llmpedia-backend/internal/scheduler"
	"llmpedia-backend/internal/telemetry"
	"llmpedia-backend/middleware"
	"llmpedia-backend/routes"
	"llmpedia-backend/services"
)

const maxRequestBody = 64 << 10

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	shutdownTracer, err := telemetry.InitTracer(cfg)
	if err != nil {
		log.Fatal("Failed to initialize tracing:", err)
	}
	defer shutdownTracer()

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		log.Fatal("Failed to initialize metrics:", err)
	}

	ctx := context.Background()

	backends, err := app.Connect(cfg)
	if err != nil {
		log.Fatal("Failed to connect to databases:", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		backends.Close(ctx)
	}()

	// Redis backs the rate limiter, the answer memo and the async Q&A log.
	// The server still answers without it.
	rdb, err := config.NewRedisClient(cfg)
	if err != nil {
		if cfg.QnALogMode == "async" {
			log.Fatal("QNA_LOG_MODE=async requires Redis:", err)
		}
		logger.Warn("Redis unavailable, rate limiting and answer cache disabled", "error", err)
		rdb = nil
	} else {
		defer rdb.Close()
	}

	collections, err := app.BuildCollections(ctx, cfg, backends, metrics.RecordCircuitBreakerState)
	if err != nil {
		log.Fatal("Failed to build collection registry:", err)
	}
	defer collections.Close()

	var vectorCollections []string
	if cfg.VectorBackend == "mongo" {
		for _, spec := range collections.Registry.Specs() {
			vectorCollections = append(vectorCollections, spec.Collection)
		}
	}
	indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	if err := config.CreateIndexes(indexCtx, backends.Mongo, cfg.DBName, vectorCollections); err != nil {
		logger.Warn("Failed to create MongoDB indexes", "error", err)
	}
	cancel()

	reranker, err := app.NewReranker(cfg, metrics.RecordCircuitBreakerState)
	if err != nil {
		log.Fatal("Failed to initialize reranker:", err)
	}
	generator, closer, err := app.NewGenerator(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize generator:", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	linker := rag.NewLinker(cfg.CitationHost)
	opts := append(app.PipelineOptions(cfg), rag.WithObserver(metrics))

	switch cfg.QnALogMode {
	case "direct":
		opts = append(opts, rag.WithQALogger(services.NewQnALog(backends.DB)))
	case "async":
		client := asynq.NewClient(queue.RedisConnOpt(rdb.Options()))
		defer client.Close()
		opts = append(opts, rag.WithQALogger(queue.NewAsyncQnALogger(client)))
	}
	if cfg.AnswerCacheTTL > 0 && rdb != nil {
		opts = append(opts, rag.WithAnswerCache(cache.NewAnswerCache(rdb, cfg.AnswerCacheTTL)))
	}

	maestro := rag.NewOrchestrator(collections.Registry, reranker, generator,
		rag.NewAssembler(cfg.ContextMaxChars), linker, opts...)

	probe := newHealthProbe(cfg, backends, rdb)
	if err := probe.Start(); err != nil {
		log.Fatal("Failed to start health probe:", err)
	}
	defer probe.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.TracingMiddleware())
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.RequestSizeLimit(maxRequestBody))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs,
			time.Duration(cfg.RateLimitWindow)*time.Second))
	}

	// Setup routes
	routes.SetupHealthRoutes(router, probe)
	routes.SetupChatRoutes(router, maestro, cfg.DefaultCollection)
	routes.SetupPaperRoutes(router, services.NewPaperStore(backends.DB), linker)
	routes.SetupReportRoutes(router, services.NewWeeklyReviews(backends.DB, linker))

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "collections", collections.Registry.Len(),
			"default_collection", cfg.DefaultCollection, "qna_log", cfg.QnALogMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}

func newHealthProbe(cfg *config.Config, b *app.Backends, rdb *redis.Client) *scheduler.HealthProbe {
	probe := scheduler.NewHealthProbe(cfg.HealthProbeInterval)
	probe.Register("mongo", func(ctx context.Context) error {
		return b.Mongo.Ping(ctx, nil)
	})
	if b.Postgres != nil {
		probe.Register("postgres", func(ctx context.Context) error {
			return b.Postgres.Ping(ctx)
		})
	}
	if rdb != nil {
		probe.Register("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}
	return probe
}
