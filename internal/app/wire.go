package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/truemarket/internal/blob/s3"
	"github.com/alanyoungcy/truemarket/internal/cache/redis"
	"github.com/alanyoungcy/truemarket/internal/config"
	"github.com/alanyoungcy/truemarket/internal/crypto"
	"github.com/alanyoungcy/truemarket/internal/domain"
	"github.com/alanyoungcy/truemarket/internal/feed"
	"github.com/alanyoungcy/truemarket/internal/linera"
	"github.com/alanyoungcy/truemarket/internal/notify"
	"github.com/alanyoungcy/truemarket/internal/server/middleware"
	"github.com/alanyoungcy/truemarket/internal/session"
	"github.com/alanyoungcy/truemarket/internal/store/postgres"
)

// localBusBuffer is the per-subscriber buffer of the in-process signal bus.
const localBusBuffer = 64

// Dependencies bundles every infrastructure dependency the run modes need.
// It is constructed by Wire and torn down by the returned cleanup function.
// Optional stores are nil when their backend is disabled.
type Dependencies struct {
	Signer *crypto.Signer
	Module *linera.Module
	Flags  domain.FlagStore

	// Stores
	TradeStore domain.TradeStore
	AuditStore domain.AuditStore

	// Caches
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Blob storage
	BlobReader domain.BlobReader

	// Notifications
	Notifier *notify.Notifier

	// Checks reports on each connected backend for the health endpoint.
	Checks map[string]func(context.Context) error
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(step string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", step, err)
	}

	deps := &Dependencies{Checks: make(map[string]func(context.Context) error)}

	// --- Wallet signer ---
	signer, err := crypto.LoadSigner(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
		Ephemeral:        cfg.Wallet.Ephemeral,
	})
	if err != nil {
		return fail("signer", err)
	}
	deps.Signer = signer

	// --- Chain module ---
	deps.Module = linera.NewModule(linera.ModuleConfig{
		NodeURL:         cfg.Linera.NodeURL,
		RequestTimeout:  cfg.Linera.RequestTimeout.Duration,
		DecodeResponses: cfg.Linera.DecodeResponses,
	}, logger)

	// --- PostgreSQL (trade history and audit log) ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		}, logger)
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)
		deps.Checks["postgres"] = pgClient.Ping

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- Redis (signal bus, rate limiter, optional flag store) ---
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.Checks["redis"] = redisClient.Ping

		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	} else {
		deps.RateLimiter = middleware.NewLocalLimiter()
		deps.SignalBus = feed.NewLocalBus(localBusBuffer)
	}

	flags, err := newFlagStore(cfg.Session, redisClient)
	if err != nil {
		return fail("flag store", err)
	}
	deps.Flags = flags

	// --- S3 blob storage (only for the s3 catalog source) ---
	if strings.EqualFold(cfg.Catalog.Source, "s3") {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail("s3", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.Checks["s3"] = s3Client.Health
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	// --- Notifications ---
	deps.Notifier = notify.FromConfig(notify.Config{
		TelegramToken:     cfg.Notify.TelegramToken,
		TelegramChatID:    cfg.Notify.TelegramChatID,
		DiscordWebhookURL: cfg.Notify.DiscordWebhookURL,
		Events:            cfg.Notify.Events,
	}, logger)

	return deps, cleanup, nil
}

// newFlagStore picks the auto-reconnect flag backend.
func newFlagStore(cfg config.SessionConfig, rc *redis.Client) (domain.FlagStore, error) {
	switch strings.ToLower(cfg.FlagStore) {
	case "", "file":
		return session.NewFileFlags(cfg.FlagPath), nil
	case "memory":
		return &session.MemoryFlags{}, nil
	case "redis":
		if rc == nil {
			return nil, fmt.Errorf("flag store %q requires redis.enabled", cfg.FlagStore)
		}
		return redis.NewFlagStore(rc, cfg.FlagKey), nil
	default:
		return nil, fmt.Errorf("unknown flag store %q", cfg.FlagStore)
	}
}
