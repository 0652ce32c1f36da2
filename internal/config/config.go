// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	ServiceName        string        `env:"SERVICE_NAME" envDefault:"cart-checkout"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort           string        `env:"HTTP_PORT" envDefault:"8080"`
	GRPCPort           string        `env:"GRPC_PORT" envDefault:"50056"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	Mongo    MongoConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig
	Catalog  CatalogConfig
	Checkout CheckoutConfig
	Outbox   OutboxConfig
}

type MongoConfig struct {
	URI    string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	DBName string `env:"MONGO_DB_NAME" envDefault:"cartdb"`
}

type RedisConfig struct {
	Addr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string        `env:"REDIS_PASSWORD"`
	DB       int           `env:"REDIS_DB" envDefault:"0"`
	CacheTTL time.Duration `env:"CART_CACHE_TTL" envDefault:"15m"`
}

type PostgresConfig struct {
	Host         string `env:"DB_HOST" envDefault:"localhost"`
	Port         int    `env:"DB_PORT" envDefault:"5432"`
	User         string `env:"DB_USER" envDefault:"postgres"`
	Password     string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName       string `env:"DB_NAME" envDefault:"ecommerce"`
	MaxOpenConns int    `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	MaxIdleConns int    `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
}

type KafkaConfig struct {
	Enabled bool     `env:"KAFKA_ENABLED" envDefault:"true"`
	Brokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	Topic   string   `env:"KAFKA_ORDER_TOPIC" envDefault:"order-events"`
	GroupID string   `env:"KAFKA_GROUP_ID" envDefault:"cart-reconciler"`
}

// Catalog sources.
const (
	CatalogSourceHTTP   = "http"
	CatalogSourceSQLite = "sqlite"
)

type CatalogConfig struct {
	Source           string        `env:"CATALOG_SOURCE" envDefault:"http"`
	BaseURL          string        `env:"CATALOG_BASE_URL" envDefault:"https://fakestoreapi.com"`
	SQLitePath       string        `env:"CATALOG_SQLITE_PATH" envDefault:"./catalog.db"`
	RequestTimeout   time.Duration `env:"CATALOG_REQUEST_TIMEOUT" envDefault:"3s"`
	BreakerFailures  uint32        `env:"CATALOG_BREAKER_FAILURES" envDefault:"5"`
	BreakerOpenDelay time.Duration `env:"CATALOG_BREAKER_OPEN_DELAY" envDefault:"30s"`
}

type CheckoutConfig struct {
	LookupTimeout        time.Duration `env:"CHECKOUT_LOOKUP_TIMEOUT" envDefault:"3s"`
	LookupAttempts       int           `env:"CHECKOUT_LOOKUP_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay       time.Duration `env:"CHECKOUT_RETRY_BASE_DELAY" envDefault:"100ms"`
	MaxConcurrentLookups int           `env:"CHECKOUT_MAX_CONCURRENT_LOOKUPS" envDefault:"8"`
	ClearAttempts        int           `env:"CHECKOUT_CLEAR_ATTEMPTS" envDefault:"3"`
	LockTTL              time.Duration `env:"CHECKOUT_LOCK_TTL" envDefault:"30s"`
	LockWait             time.Duration `env:"CHECKOUT_LOCK_WAIT" envDefault:"5s"`
}

type OutboxConfig struct {
	EventTick     time.Duration `env:"OUTBOX_EVENT_TICK" envDefault:"1s"`
	RecoveryTick  time.Duration `env:"OUTBOX_RECOVERY_TICK" envDefault:"30s"`
	RecoveryGrace time.Duration `env:"OUTBOX_RECOVERY_GRACE" envDefault:"1m"`
	BatchSize     int           `env:"OUTBOX_BATCH_SIZE" envDefault:"100"`
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Catalog.Source {
	case CatalogSourceHTTP, CatalogSourceSQLite:
	default:
		return fmt.Errorf("invalid CATALOG_SOURCE %q: want %q or %q", c.Catalog.Source, CatalogSourceHTTP, CatalogSourceSQLite)
	}
	if c.Checkout.LookupAttempts < 1 {
		return fmt.Errorf("CHECKOUT_LOOKUP_ATTEMPTS must be at least 1")
	}
	if c.Checkout.ClearAttempts < 1 {
		return fmt.Errorf("CHECKOUT_CLEAR_ATTEMPTS must be at least 1")
	}
	if c.Checkout.MaxConcurrentLookups < 1 {
		return fmt.Errorf("CHECKOUT_MAX_CONCURRENT_LOOKUPS must be at least 1")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	return nil
}
