package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/clinic-autoresponder/cmd/mainconfig"
	"github.com/wolfman30/clinic-autoresponder/internal/api/router"
	"github.com/wolfman30/clinic-autoresponder/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-autoresponder/internal/config"
	"github.com/wolfman30/clinic-autoresponder/internal/conversation"
	"github.com/wolfman30/clinic-autoresponder/internal/http/handlers"
	"github.com/wolfman30/clinic-autoresponder/internal/messaging"
	observemetrics "github.com/wolfman30/clinic-autoresponder/internal/observability/metrics"
	"github.com/wolfman30/clinic-autoresponder/internal/scripts"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info("starting clinic-autoresponder API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"similarity", cfg.SimilarityStrategy,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, cleanup, err := buildServer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.WebhookTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// buildServer wires stores, matching, dispatch and HTTP routing. The
// returned cleanup closes database and Redis handles.
func buildServer(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (http.Handler, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool := connectPostgresPool(ctx, cfg.DatabaseURL, logger)
	var db *sql.DB
	if pool != nil {
		db = stdlib.OpenDBFromPool(pool)
		closers = append(closers, pool.Close, func() { _ = db.Close() })
	} else {
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}
	stores := bootstrap.BuildStores(pool, db)

	metricsHandler, metrics := setupMessagingMetrics()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		closers = append(closers, func() { _ = redisClient.Close() })
	}
	locker := bootstrap.BuildLocker(cfg, redisClient, logger)
	deduper := bootstrap.BuildDeduper(cfg, pool)

	var awsCfg *aws.Config
	if strings.EqualFold(cfg.EmbeddingProvider, "bedrock") {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}
	provider, err := bootstrap.BuildEmbeddingProvider(ctx, cfg, awsCfg, metrics, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	scriptService := scripts.NewService(stores.Scripts, provider, logger)
	matcher := scripts.NewMatcher(bootstrap.BuildStrategy(provider), metrics, logger)

	dispatcher, err := buildDispatcher(cfg, metrics, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	engine := conversation.NewEngine(conversation.Deps{
		Patients:   stores.Patients,
		Scripts:    scriptService,
		Settings:   stores.Settings,
		Turns:      stores.Turns,
		Matcher:    matcher,
		Dispatcher: dispatcher,
		Locker:     locker,
		Deduper:    deduper,
		Observer:   metrics,
		Logger:     logger,
	})

	adminCfg := handlers.AdminConfig{
		Settings:   stores.Settings,
		Scripts:    scriptService,
		Patients:   stores.Patients,
		Turns:      stores.Turns,
		Dispatcher: dispatcher,
		Locker:     locker,
		Logger:     logger,
	}
	if stores.Stats != nil {
		adminCfg.Stats = stores.Stats
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin API disabled")
	}

	var health func(context.Context) error
	if pool != nil {
		health = pool.Ping
	}

	handler := router.New(&router.Config{
		Logger: logger,
		WhatsApp: handlers.NewWhatsAppWebhookHandler(handlers.WhatsAppWebhookConfig{
			Engine:      engine,
			VerifyToken: cfg.WhatsAppVerifyToken,
			AppSecret:   cfg.WhatsAppAppSecret,
			Timeout:     cfg.WebhookTimeout,
			Metrics:     metrics,
			Logger:      logger,
		}),
		Admin:            handlers.NewAdminHandler(adminCfg),
		AdminAuthSecret:  cfg.AdminJWTSecret,
		MetricsHandler:   metricsHandler,
		WebhookRateLimit: cfg.WebhookRateLimit,
		WebhookRateBurst: cfg.WebhookRateBurst,
		HealthCheck:      health,
	})
	return handler, cleanup, nil
}

func buildDispatcher(cfg *appconfig.Config, metrics *observemetrics.MessagingMetrics, logger *logging.Logger) (conversation.Dispatcher, error) {
	dispatcher, reason, err := bootstrap.BuildDispatcher(cfg, metrics, logger)
	if err != nil {
		return nil, err
	}
	if dispatcher == nil {
		logger.Warn("whatsapp dispatch disabled; replies are only logged", "reason", reason)
		return messaging.NewLogDispatcher(logger), nil
	}
	return dispatcher, nil
}

func setupMessagingMetrics() (http.Handler, *observemetrics.MessagingMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observemetrics.NewMessagingMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics
}

func connectPostgresPool(ctx context.Context, url string, logger *logging.Logger) *pgxpool.Pool {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Error("failed to reach postgres", "error", err)
		os.Exit(1)
	}
	return pool
}
