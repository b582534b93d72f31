package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/UkralStul/social-feed-service/internal/auth"
	"github.com/UkralStul/social-feed-service/internal/comments"
	"github.com/UkralStul/social-feed-service/internal/config"
	"github.com/UkralStul/social-feed-service/internal/engagement"
	"github.com/UkralStul/social-feed-service/internal/feed"
	"github.com/UkralStul/social-feed-service/internal/httpapi"
	"github.com/UkralStul/social-feed-service/internal/notify"
	"github.com/UkralStul/social-feed-service/internal/posts"
	"github.com/UkralStul/social-feed-service/internal/profiles"
	"github.com/UkralStul/social-feed-service/internal/ratelimit"
	"github.com/UkralStul/social-feed-service/internal/telemetry"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := initLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, cfg.OTLPEndpoint, cfg.Env)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	verifier, err := auth.NewJWTVerifier(cfg.JWTSecret, cfg.JWTAudience)
	if err != nil {
		return err
	}

	log.Info("starting server", "storage", cfg.Storage, "env", cfg.Env)
	if cfg.Storage == config.StoragePostgres {
		log.Info("connecting to postgres", "dsn", redactDSN(cfg.DatabaseURL))
	}
	store, closeStore, err := openStorage(cfg, cfg.AutoMigrate)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer closeStore()

	// память процесса стартует пустой: заполняем ее тестовыми профилями, как делает seed
	if cfg.Storage != config.StoragePostgres {
		users, err := fillWithMockData(ctx, store, log, defaultSeedUsers, defaultSeedPosts)
		if err != nil {
			return fmt.Errorf("seed in-memory storage: %w", err)
		}
		if err := printTokens(cmd.OutOrStdout(), cfg, users); err != nil {
			return err
		}
	}

	objects, err := openMedia(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open media store: %w", err)
	}

	pub, err := openEvents(cfg)
	if err != nil {
		return fmt.Errorf("open events publisher: %w", err)
	}
	defer pub.Close()

	counter, closeCounter, err := openCounter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCounter()
	limiter := ratelimit.New(counter, cfg.RateLimit, cfg.RateLimitSpan, log)

	n := notify.New(store, pub, log)
	f := feed.New(store)
	handler := httpapi.New(store, httpapi.Services{
		Feed:       f,
		Posts:      posts.New(store, objects, f, log),
		Comments:   comments.New(store, n, log),
		Engagement: engagement.New(store, n, log),
		Notify:     n,
		Profiles:   profiles.New(store, objects, log),
	}, httpapi.Options{
		Verifier:      verifier,
		Limiter:       limiter,
		MaxUploadSize: cfg.MaxUploadSize,
		CORSOrigins:   cfg.CORSOrigins,
		Log:           log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr, "max_upload", humanize.Bytes(uint64(cfg.MaxUploadSize)), "events", cfg.EventsDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(sctx)
}
