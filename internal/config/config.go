// Package config собирает настройки сервиса из переменных окружения.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"

	EventsNone  = "none"
	EventsNATS  = "nats"
	EventsKafka = "kafka"
)

type Config struct {
	Port        string
	Env         string
	Storage     string
	DatabaseURL string
	AutoMigrate bool

	JWTSecret   string
	JWTAudience string

	S3 S3Config
	// MaxUploadSize ограничивает тело multipart-запроса.
	MaxUploadSize int64

	RedisURL      string
	RateLimit     int64
	RateLimitSpan time.Duration

	EventsDriver string
	NATSURL      string
	KafkaBrokers []string
	KafkaTopic   string

	OTLPEndpoint string
	CORSOrigins  []string
}

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string
}

func (c *Config) IsLocal() bool { return c.Env == "local" }

// Load читает .env (если он есть) и переменные окружения.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	return FromEnv()
}

// FromEnv собирает конфигурацию только из окружения процесса.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("APP_ENV", "local"),
		Storage:     getEnv("STORAGE", StorageInMemory),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		JWTAudience: getEnv("JWT_AUDIENCE", "authenticated"),
		S3: S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    getEnv("S3_BUCKET", "media"),
			PublicURL: os.Getenv("S3_PUBLIC_URL"),
		},
		RedisURL:      os.Getenv("REDIS_URL"),
		RateLimitSpan: time.Minute,
		EventsDriver:  strings.ToLower(getEnv("EVENTS_DRIVER", EventsNone)),
		NATSURL:       getEnv("NATS_URL", "nats://localhost:4222"),
		KafkaBrokers:  splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:    getEnv("KAFKA_TOPIC", "social-feed.notifications"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
	}

	var err error
	if cfg.AutoMigrate, err = getBool("AUTO_MIGRATE", true); err != nil {
		return nil, err
	}
	if cfg.S3.UseSSL, err = getBool("S3_USE_SSL", false); err != nil {
		return nil, err
	}

	size, err := humanize.ParseBytes(getEnv("MAX_UPLOAD_SIZE", "25MB"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_SIZE: %w", err)
	}
	cfg.MaxUploadSize = int64(size)

	if cfg.RateLimit, err = strconv.ParseInt(getEnv("RATE_LIMIT", "120"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT: %w", err)
	}

	return cfg, cfg.Validate()
}

// Validate проверяет сочетания настроек, которые нельзя исправить значением по умолчанию.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageInMemory:
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL must be set for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}

	switch c.EventsDriver {
	case EventsNone, EventsNATS:
	case EventsKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS must be set for kafka events")
		}
	default:
		return fmt.Errorf("unknown events driver %q", c.EventsDriver)
	}

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
