package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path (skipped when empty), merges it on top of the
// built-in defaults, applies TRUEMARKET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRUEMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "TRUEMARKET_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "TRUEMARKET_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "TRUEMARKET_WALLET_KEY_PASSWORD")
	setBool(&cfg.Wallet.Ephemeral, "TRUEMARKET_WALLET_EPHEMERAL")

	// ── Linera ──
	setStr(&cfg.Linera.NodeURL, "TRUEMARKET_LINERA_NODE_URL")
	setStr(&cfg.Linera.FaucetURL, "TRUEMARKET_LINERA_FAUCET_URL")
	setDuration(&cfg.Linera.RequestTimeout, "TRUEMARKET_LINERA_REQUEST_TIMEOUT")
	setBool(&cfg.Linera.DecodeResponses, "TRUEMARKET_LINERA_DECODE_RESPONSES")
	setBool(&cfg.Linera.SkipInbox, "TRUEMARKET_LINERA_SKIP_INBOX")

	// ── Apps ──
	setStr(&cfg.Apps.TokenAppID, "TRUEMARKET_APPS_TOKEN_APP_ID")
	setStr(&cfg.Apps.MarketAppID, "TRUEMARKET_APPS_MARKET_APP_ID")
	setStr(&cfg.Apps.CounterAppID, "TRUEMARKET_APPS_COUNTER_APP_ID")

	// ── Session ──
	setStr(&cfg.Session.FlagStore, "TRUEMARKET_SESSION_FLAG_STORE")
	setStr(&cfg.Session.FlagPath, "TRUEMARKET_SESSION_FLAG_PATH")
	setStr(&cfg.Session.FlagKey, "TRUEMARKET_SESSION_FLAG_KEY")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "TRUEMARKET_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "TRUEMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "TRUEMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRUEMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRUEMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRUEMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRUEMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRUEMARKET_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRUEMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRUEMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRUEMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TRUEMARKET_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TRUEMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRUEMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRUEMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRUEMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRUEMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRUEMARKET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TRUEMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRUEMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRUEMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRUEMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRUEMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRUEMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRUEMARKET_S3_FORCE_PATH_STYLE")

	// ── Catalog ──
	setStr(&cfg.Catalog.Source, "TRUEMARKET_CATALOG_SOURCE")
	setStr(&cfg.Catalog.Key, "TRUEMARKET_CATALOG_KEY")
	setDuration(&cfg.Catalog.RefreshInterval, "TRUEMARKET_CATALOG_REFRESH_INTERVAL")

	// ── Chat ──
	setStr(&cfg.Chat.APIKey, "TRUEMARKET_CHAT_API_KEY")
	setStr(&cfg.Chat.APIKey, "GEMINI_API_KEY") // compatibility alias
	setStr(&cfg.Chat.Model, "TRUEMARKET_CHAT_MODEL")

	// ── Server ──
	setInt(&cfg.Server.Port, "TRUEMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRUEMARKET_SERVER_CORS_ORIGINS")
	setStringSlice(&cfg.Server.TrustedProxies, "TRUEMARKET_SERVER_TRUSTED_PROXIES")
	setStr(&cfg.Server.APIKey, "TRUEMARKET_SERVER_API_KEY")
	setInt(&cfg.Server.MintLimit, "TRUEMARKET_SERVER_MINT_LIMIT")
	setDuration(&cfg.Server.MintWindow, "TRUEMARKET_SERVER_MINT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRUEMARKET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRUEMARKET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRUEMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRUEMARKET_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRUEMARKET_MODE")
	setStr(&cfg.LogLevel, "TRUEMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
