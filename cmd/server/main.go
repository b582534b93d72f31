package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/UkralStul/social-feed-service/internal/config"
	"github.com/UkralStul/social-feed-service/internal/events"
	"github.com/UkralStul/social-feed-service/internal/media"
	"github.com/UkralStul/social-feed-service/internal/ratelimit"
	"github.com/UkralStul/social-feed-service/internal/storage"
	"github.com/UkralStul/social-feed-service/internal/storage/inmemory"
	"github.com/UkralStul/social-feed-service/internal/storage/postgres"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm/logger"
)

var storageFlag string

var rootCmd = &cobra.Command{
	Use:   "social-feed",
	Short: "Social feed backend: posts, comments, reactions, follows and notifications",
	// без подкоманды запускается сервер
	RunE: runServe,
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().StringVar(&storageFlag, "storage", "", "storage type (in-memory or postgres), overrides STORAGE")
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig читает окружение и применяет флаг --storage.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if storageFlag == "" || cfg == nil {
		return cfg, err
	}
	// Validate уже проверил STORAGE из окружения, флаг перепроверяется отдельно
	cfg.Storage = storageFlag
	return cfg, cfg.Validate()
}

func initLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	var handler slog.Handler
	if cfg.IsLocal() {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}

// openStorage возвращает хранилище и функцию его закрытия.
func openStorage(cfg *config.Config, migrate bool) (storage.Storage, func() error, error) {
	if cfg.Storage != config.StoragePostgres {
		return inmemory.New(), func() error { return nil }, nil
	}
	level := logger.Warn
	if cfg.IsLocal() {
		level = logger.Info
	}
	store, err := postgres.New(postgres.Options{DSN: cfg.DatabaseURL, AutoMigrate: migrate, LogLevel: level})
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

func openMedia(ctx context.Context, cfg *config.Config) (media.Store, error) {
	if cfg.S3.Endpoint == "" {
		return media.NewMemoryStore(""), nil
	}
	store, err := media.NewMinioStore(media.MinioConfig{
		Endpoint:  cfg.S3.Endpoint,
		AccessKey: cfg.S3.AccessKey,
		SecretKey: cfg.S3.SecretKey,
		UseSSL:    cfg.S3.UseSSL,
		Bucket:    cfg.S3.Bucket,
		PublicURL: cfg.S3.PublicURL,
	})
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.S3.Bucket, err)
	}
	return store, nil
}

func openEvents(cfg *config.Config) (events.Publisher, error) {
	switch cfg.EventsDriver {
	case config.EventsNATS:
		return events.NewNATSPublisher(cfg.NATSURL)
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return events.Noop{}, nil
	}
}

// openCounter выбирает счетчик ограничителя: Redis, если он настроен, иначе память процесса.
func openCounter(ctx context.Context, cfg *config.Config) (ratelimit.Counter, func() error, error) {
	if cfg.RedisURL == "" {
		return ratelimit.NewMemoryCounter(), func() error { return nil }, nil
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return ratelimit.NewRedisCounter(rdb), rdb.Close, nil
}

func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "@"); i > 0 {
		if j := strings.Index(dsn, "://"); j > 0 && j < i {
			return dsn[:j+3] + "***" + dsn[i:]
		}
	}
	return dsn
}
