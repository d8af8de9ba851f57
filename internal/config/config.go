package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	Storage     string `envconfig:"STORAGE" default:"postgres"`
	DBDSN       string `envconfig:"DB_DSN"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	JWTSecret   string `envconfig:"JWT_SECRET" required:"true"`

	// Каналы уведомлений; пустое значение отключает канал
	TelegramToken string `envconfig:"TELEGRAM_TOKEN"`
	AMQPURL       string `envconfig:"AMQP_URL"`
	AMQPExchange  string `envconfig:"AMQP_EXCHANGE" default:"booking.notifications"`

	// Polling нужен только одному инстансу, остальные лишь отправляют уведомления
	TelegramPolling bool `envconfig:"TELEGRAM_POLLING" default:"true"`

	// Redis нужен только чтобы фоновые задачи не шли параллельно на нескольких инстансах
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`

	ReconcileInterval   time.Duration `envconfig:"RECONCILE_INTERVAL" default:"1m"`
	ReviewSweepInterval time.Duration `envconfig:"REVIEW_SWEEP_INTERVAL" default:"24h"`
	Timezone            string        `envconfig:"TIMEZONE" default:"UTC"`
	MigrateOnStart      bool          `envconfig:"MIGRATE_ON_START" default:"true"`

	location *time.Location
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required but not set")
	}

	switch c.Storage {
	case StoragePostgres:
		if c.DBDSN == "" {
			return fmt.Errorf("DB_DSN is required but not set")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("STORAGE must be %q or %q, got %q", StoragePostgres, StorageMemory, c.Storage)
	}

	if c.ReconcileInterval <= 0 || c.ReviewSweepInterval <= 0 {
		return fmt.Errorf("sweep intervals must be positive")
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	c.location = loc
	return nil
}

// Location зона, в которой считаются календарные дни
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

func (c *Config) GetDBDSN() string {
	return c.DBDSN
}
