package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/LevelUp/pkg/database"
	"github.com/utafrali/LevelUp/pkg/health"
	"github.com/utafrali/LevelUp/pkg/httpclient"
	pkgkafka "github.com/utafrali/LevelUp/pkg/kafka"
	"github.com/utafrali/LevelUp/pkg/tracing"
	"github.com/utafrali/LevelUp/services/mission/internal/completion"
	"github.com/utafrali/LevelUp/services/mission/internal/config"
	"github.com/utafrali/LevelUp/services/mission/internal/event"
	"github.com/utafrali/LevelUp/services/mission/internal/feed"
	handler "github.com/utafrali/LevelUp/services/mission/internal/handler/http"
	"github.com/utafrali/LevelUp/services/mission/internal/repository/postgres"
	redisrepo "github.com/utafrali/LevelUp/services/mission/internal/repository/redis"
	"github.com/utafrali/LevelUp/services/mission/internal/saga"
	"github.com/utafrali/LevelUp/services/mission/migrations"
)

// App wires together all dependencies and runs the mission service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	rdb            *redis.Client
	producer       *pkgkafka.Producer
	sagaProducer   *pkgkafka.Producer
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "mission",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// PostgreSQL
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: time.Duration(cfg.DBMaxConnLifetimeMins) * time.Minute,
		MaxConnIdleTime: time.Duration(cfg.DBMaxConnIdleTimeMins) * time.Minute,
	}

	pool, err := database.NewPostgresPoolWithLogger(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "mission")

	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, logger)
	}

	// Redis backs the completion lock only, so the service starts without it.
	redisCfg := database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	}
	rdb, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		logger.Warn("redis unavailable, completions run without a lock until it recovers",
			slog.String("error", err.Error()),
		)
		rdb = redis.NewClient(redisCfg.Options())
	}

	// Kafka: synchronous writes for mission.completed, async for saga lifecycle events.
	producer := pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	sagaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	sagaCfg.Async = true
	sagaProducer := pkgkafka.NewProducer(sagaCfg, logger)
	logger.Info("kafka producers initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Feed service client behind a circuit breaker.
	baseClient := httpclient.New(httpclient.Config{
		Timeout:         5 * time.Second,
		MaxRetries:      1,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    time.Second,
		MaxConnsPerHost: 50,
	})
	cbCfg := httpclient.CircuitBreakerConfig{
		Name:         "mission-feed",
		MaxRequests:  cfg.CBMaxRequests,
		Interval:     time.Duration(cfg.CBInterval) * time.Second,
		Timeout:      time.Duration(cfg.CBTimeout) * time.Second,
		FailureRatio: cfg.CBFailureRatio,
		MinRequests:  cfg.CBMinRequests,
	}
	cbClient := httpclient.NewCircuitBreakerClient(baseClient, cbCfg, logger).
		WithFallback(feed.CircuitOpenFallback)
	logger.Info("circuit breaker initialized",
		slog.String("name", cbCfg.Name),
		slog.String("feed_url", cfg.FeedServiceURL),
	)

	// Build the dependency graph.
	steps := completion.NewSteps(completion.Deps{
		Missions:     postgres.NewMissionRepository(pool),
		Participants: postgres.NewParticipantRepository(pool),
		Executions:   postgres.NewExecutionRepository(pool),
		Instances:    postgres.NewDailyInstanceRepository(pool),
		Experience:   postgres.NewExperienceRepository(pool),
		Stats:        postgres.NewUserStatsRepository(pool),
		Feed:         feed.NewClient(cbClient, cfg.FeedServiceURL),
		Logger:       logger,
	}, completion.RetryPolicy{
		StepRetries: cfg.SagaStepMaxRetries,
		StepDelay:   cfg.StepRetryDelay(),
		FeedRetries: cfg.SagaFeedMaxRetries,
		FeedDelay:   cfg.FeedRetryDelay(),
	})

	sinks := saga.MultiSink{
		saga.NewLogSink(logger),
		saga.NewMetricsSink(prometheus.DefaultRegisterer),
	}
	if cfg.SagaEventsEnabled {
		sinks = append(sinks, event.NewProducer(sagaProducer, logger))
	}

	completionService := completion.NewService(
		steps,
		sinks,
		redisrepo.NewCompletionLock(rdb, cfg.LockTTL()),
		event.NewProducer(producer, logger),
		logger,
	)

	// Health checks.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	router := handler.NewRouter(
		completionService,
		healthHandler,
		logger,
		cfg.PprofAllowedCIDRs,
		time.Duration(cfg.CompletionTimeoutSecs)*time.Second,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      time.Duration(cfg.CompletionTimeoutSecs+10) * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		rdb:            rdb,
		producer:       producer,
		sagaProducer:   sagaProducer,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
	}, nil
}

// Run starts the HTTP server and blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// Shutdown stops components in order: HTTP server, tracer, Kafka producers,
// Redis and finally the PostgreSQL pool.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	for name, p := range map[string]*pkgkafka.Producer{"kafka producer": a.producer, "kafka saga producer": a.sagaProducer} {
		if err := p.Close(); err != nil {
			a.logger.Error(name+" close error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	if err := a.rdb.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
