package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-autoresponder/cmd/mainconfig"
	"github.com/wolfman30/clinic-autoresponder/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-autoresponder/internal/config"
	"github.com/wolfman30/clinic-autoresponder/internal/http/middleware"
	"github.com/wolfman30/clinic-autoresponder/internal/scripts"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

func main() {
	issueToken := flag.Bool("token", false, "print a signed admin token")
	tokenSubject := flag.String("subject", "admin", "subject of the admin token")
	tokenTTL := flag.Duration("ttl", 24*time.Hour, "lifetime of the admin token")
	flag.Parse()

	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{Level: cfg.LogLevel, Format: "text"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("seed failed", "error", err)
		os.Exit(1)
	}

	if *issueToken {
		token, err := middleware.IssueAdminToken(cfg.AdminJWTSecret, *tokenSubject, *tokenTTL)
		if err != nil {
			logger.Error("issue admin token failed", "error", err)
			os.Exit(1)
		}
		fmt.Println(token)
	}
}

func run(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	stores := bootstrap.BuildStores(pool, db)
	if _, err := stores.Settings.GetOrInit(ctx); err != nil {
		return err
	}

	var awsCfg *aws.Config
	if strings.EqualFold(cfg.EmbeddingProvider, "bedrock") {
		loaded, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		awsCfg = &loaded
	}
	provider, err := bootstrap.BuildEmbeddingProvider(ctx, cfg, awsCfg, nil, logger)
	if err != nil {
		return err
	}

	n, err := scripts.NewService(stores.Scripts, provider, logger).SeedDemo(ctx)
	if err != nil {
		return err
	}
	logger.Info("seed complete", "scripts_created", n, "embedded", provider != nil)
	return nil
}
