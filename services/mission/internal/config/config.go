package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/utafrali/LevelUp/pkg/config"
)

// Config holds all configuration for the mission service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"MISSION_HTTP_PORT" envDefault:"8010"`

	// PostgreSQL
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"levelup"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"levelup_secret"`
	PostgresDB   string `env:"MISSION_DB_NAME" envDefault:"mission_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Redis, used for the completion lock
	RedisHost string `env:"REDIS_HOST" envDefault:"localhost"`
	RedisPort int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPass string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB   int    `env:"MISSION_REDIS_DB" envDefault:"0"`

	// Seconds a completion lock is held before it expires on its own.
	CompletionLockTTL int `env:"COMPLETION_LOCK_TTL_SECONDS" envDefault:"30"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Publish every saga lifecycle event to Kafka in addition to logs and metrics.
	SagaEventsEnabled bool `env:"SAGA_EVENTS_ENABLED" envDefault:"true"`

	// Feed service
	FeedServiceURL string `env:"FEED_SERVICE_URL" envDefault:"http://localhost:8011"`

	// Circuit breaker settings for feed service calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Saga retry policy
	SagaStepMaxRetries    int `env:"SAGA_STEP_MAX_RETRIES" envDefault:"2"`
	SagaStepRetryDelayMs  int `env:"SAGA_STEP_RETRY_DELAY_MS" envDefault:"100"`
	SagaFeedMaxRetries    int `env:"SAGA_FEED_MAX_RETRIES" envDefault:"1"`
	SagaFeedRetryDelayMs  int `env:"SAGA_FEED_RETRY_DELAY_MS" envDefault:"250"`
	CompletionTimeoutSecs int `env:"COMPLETION_TIMEOUT_SECONDS" envDefault:"20"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	// Pprof debug endpoints (IP allowlist in CIDR notation)
	PprofAllowedCIDRs []string `env:"PPROF_ALLOWED_CIDRS" envDefault:"10.0.0.0/8,172.16.0.0/12,192.168.0.0/16,127.0.0.0/8,::1/128" envSeparator:","`

	// Slow query logging
	SlowQueryThresholdMs int `env:"LOG_SLOW_QUERY_MS" envDefault:"500"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load mission config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.RedisPort < 1 || c.RedisPort > 65535 {
		return fmt.Errorf("invalid REDIS_PORT: %d", c.RedisPort)
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.CompletionLockTTL <= 0 {
		return fmt.Errorf("COMPLETION_LOCK_TTL_SECONDS must be > 0, got %d", c.CompletionLockTTL)
	}
	if c.SagaStepMaxRetries < 0 || c.SagaFeedMaxRetries < 0 {
		return fmt.Errorf("saga retry counts must be >= 0")
	}
	if c.SagaStepRetryDelayMs < 0 || c.SagaFeedRetryDelayMs < 0 {
		return fmt.Errorf("saga retry delays must be >= 0")
	}
	if c.CompletionTimeoutSecs <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT_SECONDS must be > 0, got %d", c.CompletionTimeoutSecs)
	}
	if c.CBFailureRatio <= 0 || c.CBFailureRatio > 1.0 {
		return fmt.Errorf("CB_FAILURE_RATIO must be in (0, 1], got %f", c.CBFailureRatio)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	if c.FeedServiceURL == "" {
		return fmt.Errorf("FEED_SERVICE_URL is required")
	}
	if _, err := url.ParseRequestURI(c.FeedServiceURL); err != nil {
		return fmt.Errorf("invalid FEED_SERVICE_URL %q: %w", c.FeedServiceURL, err)
	}
	return nil
}

// LockTTL returns the completion lock TTL.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.CompletionLockTTL) * time.Second
}

// StepRetryDelay returns the wait between attempts of store-backed steps.
func (c *Config) StepRetryDelay() time.Duration {
	return time.Duration(c.SagaStepRetryDelayMs) * time.Millisecond
}

// FeedRetryDelay returns the wait between feed step attempts.
func (c *Config) FeedRetryDelay() time.Duration {
	return time.Duration(c.SagaFeedRetryDelayMs) * time.Millisecond
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}
