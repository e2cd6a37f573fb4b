// Package config defines the top-level configuration for the truemarket
// gateway and provides validation helpers.
package config

import (
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by TRUEMARKET_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Linera   LineraConfig   `toml:"linera"`
	Apps     AppsConfig     `toml:"apps"`
	Session  SessionConfig  `toml:"session"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Catalog  CatalogConfig  `toml:"catalog"`
	Chat     ChatConfig     `toml:"chat"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the signer key source. With Ephemeral set and no raw
// key, a fresh key is generated at startup; it is kept in EncryptedKeyPath
// when that file does not exist yet.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	Ephemeral        bool   `toml:"ephemeral"`
}

// LineraConfig holds node-service and faucet endpoints.
type LineraConfig struct {
	NodeURL         string   `toml:"node_url"`
	FaucetURL       string   `toml:"faucet_url"`
	RequestTimeout  duration `toml:"request_timeout"`
	DecodeResponses bool     `toml:"decode_responses"`
	SkipInbox       bool     `toml:"skip_inbox"`
}

// AppsConfig holds the deployed application ids.
type AppsConfig struct {
	TokenAppID   string `toml:"token_app_id"`
	MarketAppID  string `toml:"market_app_id"`
	CounterAppID string `toml:"counter_app_id"`
}

// SessionConfig selects where the auto-reconnect flag lives.
type SessionConfig struct {
	// FlagStore is one of "file", "redis" or "memory".
	FlagStore string `toml:"flag_store"`
	FlagPath  string `toml:"flag_path"`
	FlagKey   string `toml:"flag_key"`
}

// PostgresConfig holds PostgreSQL connection parameters for trade history
// and the audit log.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CatalogConfig selects the market catalog source.
type CatalogConfig struct {
	// Source is "embedded" or "s3".
	Source          string   `toml:"source"`
	Key             string   `toml:"key"`
	RefreshInterval duration `toml:"refresh_interval"`
}

// ChatConfig holds the assistant's model settings. An empty APIKey disables
// the assistant.
type ChatConfig struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey, when set, is required on mutating routes.
	APIKey string `toml:"api_key"`
	// MintLimit caps faucet mints per client per MintWindow.
	MintLimit  int      `toml:"mint_limit"`
	MintWindow duration `toml:"mint_window"`
	// TrustedProxies lists the CIDRs or addresses allowed to report the
	// client address in X-Forwarded-For. Empty trusts only the TCP peer.
	TrustedProxies []string `toml:"trusted_proxies"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Wallet: WalletConfig{
			Ephemeral: true,
		},
		Linera: LineraConfig{
			NodeURL:   "http://localhost:8080",
			FaucetURL: "https://faucet.testnet-conway.linera.net",
		},
		Session: SessionConfig{
			FlagStore: "file",
			FlagPath:  "data/session.json",
			FlagKey:   "truemarket:linera_auto_connect",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "truemarket-data",
			ForcePathStyle: true,
		},
		Catalog: CatalogConfig{
			Source:          "embedded",
			Key:             "catalog/markets.json",
			RefreshInterval: duration{5 * time.Minute},
		},
		Chat: ChatConfig{
			Model: "gemini-2.0-flash",
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			MintLimit:   5,
			MintWindow:  duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"session_init_failed", "session_connect_failed", "trade_executed", "trade_failed"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"watch":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validFlagStores = map[string]bool{
	"file":   true,
	"redis":  true,
	"memory": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, watch)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet
	if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" && !c.Wallet.Ephemeral {
		errs = append(errs, "wallet: set private_key, encrypted_key_path or ephemeral = true")
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Linera
	if c.Linera.NodeURL == "" {
		errs = append(errs, "linera: node_url must not be empty")
	}
	if c.Linera.FaucetURL == "" {
		errs = append(errs, "linera: faucet_url must not be empty")
	}
	if c.Linera.RequestTimeout.Duration < 0 {
		errs = append(errs, "linera: request_timeout must not be negative")
	}

	// Apps
	if c.Apps.TokenAppID == "" {
		errs = append(errs, "apps: token_app_id must not be empty")
	}
	if c.Apps.MarketAppID == "" {
		errs = append(errs, "apps: market_app_id must not be empty")
	}

	// Session
	if !validFlagStores[strings.ToLower(c.Session.FlagStore)] {
		errs = append(errs, fmt.Sprintf("session: unknown flag_store %q (valid: file, redis, memory)", c.Session.FlagStore))
	}
	if c.Session.FlagStore == "file" && c.Session.FlagPath == "" {
		errs = append(errs, "session: flag_path must not be empty for the file flag store")
	}
	if c.Session.FlagStore == "redis" && !c.Redis.Enabled {
		errs = append(errs, "session: flag_store = redis requires redis.enabled")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Catalog and S3
	switch c.Catalog.Source {
	case "embedded":
	case "s3":
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
		if c.Catalog.Key == "" {
			errs = append(errs, "catalog: key must not be empty for the s3 source")
		}
	default:
		errs = append(errs, fmt.Sprintf("catalog: unknown source %q (valid: embedded, s3)", c.Catalog.Source))
	}

	// Server
	if c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.MintLimit < 0 {
			errs = append(errs, "server: mint_limit must be >= 0")
		}
		if c.Server.MintLimit > 0 && c.Server.MintWindow.Duration <= 0 {
			errs = append(errs, "server: mint_window must be > 0 when mint_limit is set")
		}
		for _, p := range c.Server.TrustedProxies {
			if !validProxy(p) {
				errs = append(errs, fmt.Sprintf("server: trusted_proxies entry %q is not an IP or CIDR", p))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validProxy(s string) bool {
	s = strings.TrimSpace(s)
	if _, err := netip.ParsePrefix(s); err == nil {
		return true
	}
	_, err := netip.ParseAddr(s)
	return err == nil
}
