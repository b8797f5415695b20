package main

// @title           IVOR Core API
// @version         1.0
// @description     Content intake pipeline and cross-domain event coordination for the BLKOUT community platform.

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/blkout/ivor-core/docs"
	"github.com/blkout/ivor-core/internal/adapters/driven/ai"
	"github.com/blkout/ivor-core/internal/adapters/driven/auth"
	"github.com/blkout/ivor-core/internal/adapters/driven/legacy"
	"github.com/blkout/ivor-core/internal/adapters/driven/memory"
	"github.com/blkout/ivor-core/internal/adapters/driven/postgres"
	postgresqueue "github.com/blkout/ivor-core/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/blkout/ivor-core/internal/adapters/driven/queue/redis"
	redisadapter "github.com/blkout/ivor-core/internal/adapters/driven/redis"
	"github.com/blkout/ivor-core/internal/adapters/driven/sqlite"
	"github.com/blkout/ivor-core/internal/adapters/driven/supabase"
	"github.com/blkout/ivor-core/internal/adapters/driven/vespa"
	"github.com/blkout/ivor-core/internal/adapters/driving/http"
	"github.com/blkout/ivor-core/internal/config"
	"github.com/blkout/ivor-core/internal/core/ports/driven"
	"github.com/blkout/ivor-core/internal/core/services"
	"github.com/blkout/ivor-core/internal/normalisers"
	"github.com/blkout/ivor-core/internal/observability"
	"github.com/blkout/ivor-core/internal/worker"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	// Command line arg overrides RUN_MODE
	if len(os.Args) > 1 {
		cfg.Mode = os.Args[1]
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid run mode: %v", err)
		}
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	logger.Info("ivor-core starting", "version", version, "mode", cfg.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ===== PostgreSQL =====
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.DB.URL,
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.DB.ConnMaxIdleTime,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	logger.Info("postgres connected and schema initialized")

	// ===== Redis (optional) =====
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		logger.Info("redis connected")
	}

	// ===== Driven adapters =====
	collector := observability.NewCollector(cfg.Metrics.Namespace)

	eventStore, closeEvents := openEventStore(cfg, db)
	defer closeEvents()

	var (
		broker    driven.Broker
		lock      driven.DistributedLock
		taskQueue driven.TaskQueue
		cache     driven.MetricsCache
	)
	if redisClient != nil {
		broker = redisadapter.NewBroker(redisClient, logger)
		lock = redisadapter.NewLock(redisClient)
		cache = redisadapter.NewMetricsCache(redisClient)
		hostname, _ := os.Hostname()
		taskQueue, err = redisqueue.NewQueue(ctx, redisClient, fmt.Sprintf("%s-%d", hostname, os.Getpid()))
		if err != nil {
			log.Fatalf("Failed to create Redis task queue: %v", err)
		}
	} else {
		logger.Warn("REDIS_URL not set: using in-process broker, postgres advisory lock and postgres task queue")
		broker = memory.NewBroker(logger)
		lock = postgres.NewAdvisoryLock(db)
		taskQueue = postgresqueue.NewQueue(db.DB)
	}
	defer taskQueue.Close()

	var index driven.VectorIndex
	if cfg.Vespa.URL != "" {
		vespaIndex := vespa.NewVectorIndex(vespa.Config{BaseURL: cfg.Vespa.URL, Timeout: cfg.Vespa.Timeout})
		if err := vespaIndex.HealthCheck(ctx); err != nil {
			logger.Warn("vespa health check failed, duplicate detection may not work", "error", err)
		}
		index = vespaIndex
	} else {
		logger.Warn("vespa url empty: using in-process vector index (not durable)")
		index = memory.NewVectorIndex()
	}

	var reviews driven.ReviewQueue = postgres.NewReviewQueue(db)
	if cfg.UseSupabaseReviews() {
		supabaseReviews, err := supabase.NewReviewQueue(cfg.Review.SupabaseURL, cfg.Review.SupabaseServiceKey, logger)
		if err != nil {
			log.Fatalf("Failed to create Supabase review queue: %v", err)
		}
		reviews = supabaseReviews
	}

	var legacyPublisher driven.LegacyPublisher
	if cfg.Legacy.Enabled {
		legacyCfg := legacy.DefaultConfig(cfg.Legacy.APIBase)
		legacyCfg.Timeout = cfg.Legacy.Timeout
		legacyCfg.Logger = logger
		legacyPublisher = legacy.NewPublisher(legacyCfg)
	}

	// ===== Services =====
	aggregator := services.NewMetricsAggregator(services.MetricsAggregatorConfig{
		Store:    eventStore,
		Cache:    cache,
		Recorder: collector,
		Logger:   logger,
		Interval: cfg.Metrics.Interval,
		TTL:      cfg.Metrics.TTL,
	})

	registry := services.NewHandlerRegistry()
	if _, err := services.RegisterDefaultHandlers(registry, logger); err != nil {
		log.Fatalf("Failed to register domain handlers: %v", err)
	}
	registry.Seal()

	coordinator := services.NewCoordinator(services.CoordinatorConfig{
		Store:     eventStore,
		Broker:    broker,
		Registry:  registry,
		TaskQueue: taskQueue,
		Observer:  aggregator,
		Recorder:  collector,
		Logger:    logger,
		Domains:   cfg.Events.Domains,
	})

	var wg sync.WaitGroup
	background := func(name string, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
			logger.Info("stopped", "component", name)
		}()
	}
	background("metrics aggregator", aggregator.Run)

	switch cfg.Mode {
	case config.ModeAPI:
		intake := newIntakeService(cfg, logger, index, db, reviews, legacyPublisher, coordinator, collector)
		runAPI(ctx, cfg, logger, intake, coordinator, aggregator, collector, db, eventStore, redisClient)

	case config.ModeWorker:
		background("coordinator", func(ctx context.Context) { runCoordinator(ctx, logger, coordinator) })
		runWorkerMode(ctx, cfg, logger, taskQueue, coordinator, eventStore, lock)

	case config.ModeAll:
		intake := newIntakeService(cfg, logger, index, db, reviews, legacyPublisher, coordinator, collector)
		background("coordinator", func(ctx context.Context) { runCoordinator(ctx, logger, coordinator) })
		background("worker", func(ctx context.Context) {
			runWorkerMode(ctx, cfg, logger, taskQueue, coordinator, eventStore, lock)
		})
		runAPI(ctx, cfg, logger, intake, coordinator, aggregator, collector, db, eventStore, redisClient)
	}

	stop()
	wg.Wait()
	logger.Info("ivor-core stopped")
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// openEventStore returns the configured durable event store and its closer
func openEventStore(cfg config.Config, db *postgres.DB) (driven.EventStore, func()) {
	if cfg.Events.Store == config.EventStoreSQLite {
		store, err := sqlite.NewEventStore(cfg.Events.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open SQLite event store: %v", err)
		}
		slog.Info("using sqlite event store", "path", cfg.Events.SQLitePath)
		return store, func() { store.Close() }
	}
	return postgres.NewEventStore(db), func() {}
}

func newIntakeService(
	cfg config.Config,
	logger *slog.Logger,
	index driven.VectorIndex,
	db *postgres.DB,
	reviews driven.ReviewQueue,
	legacyPublisher driven.LegacyPublisher,
	coordinator *services.Coordinator,
	collector *observability.Collector,
) *services.IntakeService {
	aiFactory := ai.NewFactory(ai.Config{
		APIKey:          cfg.AI.APIKey,
		BaseURL:         cfg.AI.BaseURL,
		EmbeddingModel:  cfg.AI.EmbeddingModel,
		Dimensions:      cfg.AI.Dimensions,
		ClassifierModel: cfg.AI.ClassifierModel,
	})
	embedder, err := aiFactory.CreateEmbeddingService()
	if err != nil {
		log.Fatalf("Failed to create embedding service: %v", err)
	}
	classifier, err := aiFactory.CreateClassifier()
	if err != nil {
		log.Fatalf("Failed to create classifier: %v", err)
	}

	return services.NewIntakeService(services.IntakeServiceConfig{
		Normalisers: normalisers.DefaultRegistry(),
		Embedder:    embedder,
		Classifier:  classifier,
		Scorer:      services.NewRelevanceScorer(cfg.Intake.Keywords),
		Validation: services.NewValidationEngine(services.ValidationEngineConfig{
			Duplicates: services.NewDuplicateDetector(index),
			Safety:     services.NewSafetyScreener(cfg.Intake.UnsafeTerms),
			Logger:     logger,
		}),
		Index:           index,
		Contents:        postgres.NewContentStore(db),
		Reviews:         reviews,
		Legacy:          legacyPublisher,
		Events:          coordinator,
		Recorder:        collector,
		Logger:          logger,
		CallDelay:       cfg.Intake.CallDelay,
		DecisionTargets: cfg.Intake.DecisionTargets,
	})
}

// pingFunc adapts a ping function to http.Pinger
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func runAPI(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	intake *services.IntakeService,
	coordinator *services.Coordinator,
	aggregator *services.MetricsAggregator,
	collector *observability.Collector,
	db *postgres.DB,
	eventStore driven.EventStore,
	redisClient *redis.Client,
) {
	checks := map[string]http.Pinger{
		"postgres": db,
		"events":   eventStore,
	}
	if redisClient != nil {
		checks["redis"] = pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	server := http.NewServer(http.Config{
		Host:           "0.0.0.0",
		Port:           cfg.Port,
		Version:        version,
		AllowedOrigins: cfg.CORSOrigins,
	}, http.Deps{
		Intake:         intake,
		Events:         coordinator,
		Metrics:        aggregator,
		Tokens:         auth.NewAdapter(cfg.Auth.JWTSecret),
		MetricsHandler: collector.Handler(),
		Recorder:       collector,
		Checks:         checks,
		Logger:         logger,
	})

	if err := server.Start(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runCoordinator consumes broker notifications until ctx is cancelled
func runCoordinator(ctx context.Context, logger *slog.Logger, coordinator *services.Coordinator) {
	if err := coordinator.Run(ctx); err != nil {
		logger.Error("coordinator stopped with error", "error", err)
	}
}

// runWorkerMode processes handler retries and runs the recovery sweeper.
func runWorkerMode(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	taskQueue driven.TaskQueue,
	coordinator *services.Coordinator,
	eventStore driven.EventStore,
	lock driven.DistributedLock,
) {
	sweeper := services.NewSweeper(services.SweeperConfig{
		Store:        eventStore,
		Processor:    coordinator,
		Lock:         lock,
		Logger:       logger,
		Interval:     cfg.Sweeper.Interval,
		StaleAfter:   cfg.Sweeper.StaleAfter,
		BatchSize:    cfg.Sweeper.BatchSize,
		LockRequired: cfg.Sweeper.LockRequired,
	})

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      taskQueue,
		Retries:        coordinator,
		Sweeper:        sweeper,
		Logger:         logger,
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Worker.DequeueTimeout,
	})

	if err := w.Start(ctx); err != nil {
		log.Fatalf("Failed to start worker: %v", err)
	}
	logger.Info("worker started", "handles", "handler_retry")

	<-ctx.Done()

	logger.Info("stopping worker")
	w.Stop()
}
