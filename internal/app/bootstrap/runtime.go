package bootstrap

import (
	"context"
	"crypto/tls"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	appconfig "github.com/wolfman30/clinic-autoresponder/internal/config"
	"github.com/wolfman30/clinic-autoresponder/internal/events"
	"github.com/wolfman30/clinic-autoresponder/internal/locking"
	"github.com/wolfman30/clinic-autoresponder/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildLocker serializes per-phone handling across replicas through Redis
// and falls back to an in-process lock.
func BuildLocker(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) locking.Locker {
	if logger == nil {
		logger = logging.Default()
	}
	if redisClient == nil {
		logger.Info("using in-process patient locks")
		return locking.NewLocalLocker()
	}
	opts := locking.RedisOptions{}
	if cfg != nil {
		opts.TTL = cfg.LockTTL
		opts.Wait = cfg.LockWait
	}
	logger.Info("using redis patient locks", "ttl", opts.TTL, "wait", opts.Wait)
	return locking.NewRedisLocker(redisClient, opts)
}

// BuildDeduper records handled message ids in Postgres when a pool is
// available, in memory otherwise.
func BuildDeduper(cfg *appconfig.Config, pool *pgxpool.Pool) events.Deduper {
	if pool != nil {
		return events.NewProcessedStore(pool)
	}
	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.DedupeTTL
	}
	return events.NewMemoryProcessedStore(ttl)
}
