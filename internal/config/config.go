package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/pendergraft/questhub/internal/chains"
)

// Config holds all configuration for the server
type Config struct {
	Server       ServerConfig       `toml:"server"`
	Storage      StorageConfig      `toml:"storage"`
	Logging      LoggingConfig      `toml:"logging"`
	RateLimit    RateLimitConfig    `toml:"rate_limit"`
	Security     SecurityConfig     `toml:"security"`
	Proxy        ProxyConfig        `toml:"proxy"`
	Metrics      MetricsConfig      `toml:"metrics"`
	Chains       ChainsConfig       `toml:"chains"`
	Verification VerificationConfig `toml:"verification"`
	Sync         SyncConfig         `toml:"sync"`
	Registry     RegistryConfig     `toml:"registry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int    `toml:"port"`
	Host           string `toml:"host"`
	ReadTimeout    int    `toml:"read_timeout"`    // seconds
	WriteTimeout   int    `toml:"write_timeout"`   // seconds
	IdleTimeout    int    `toml:"idle_timeout"`    // seconds
	RequestTimeout int    `toml:"request_timeout"` // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string         `toml:"type"` // "sqlite", "postgres", "json" or "memory"
	Postgres PostgresConfig `toml:"postgres"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	JSON     JSONConfig     `toml:"json"`
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string `toml:"url"`
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string `toml:"path"`
}

// JSONConfig holds the JSON document store settings
type JSONConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	Enabled        bool `toml:"enabled"`
	RequestsPerMin int  `toml:"requests_per_min"`
	BurstSize      int  `toml:"burst_size"`
	CleanupMinutes int  `toml:"cleanup_minutes"`
	// VerifyRequestsPerMin is the separate budget for routes that call chain RPC.
	VerifyRequestsPerMin int `toml:"verify_requests_per_min"`
	VerifyBurstSize      int `toml:"verify_burst_size"`
}

// SecurityConfig holds security filter settings
type SecurityConfig struct {
	FilterEnabled bool `toml:"filter_enabled"`
	MaxBodySizeKB int  `toml:"max_body_size_kb"`
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy     bool     `toml:"trust_proxy"`
	TrustedProxies []string `toml:"trusted_proxies"` // CIDR notation
}

// MetricsConfig holds Prometheus settings
type MetricsConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
}

// ChainsConfig holds chain RPC settings
type ChainsConfig struct {
	// RPCURLs overrides the built-in endpoint per chain ID.
	RPCURLs           map[string]string `toml:"rpc_urls"`
	RPCTimeout        int               `toml:"rpc_timeout"` // seconds
	RequestsPerSecond float64           `toml:"requests_per_second"`
	Burst             int               `toml:"burst"`
}

// VerificationConfig bounds the work of one verification
type VerificationConfig struct {
	LookbackBlocks  uint64 `toml:"lookback_blocks"`
	SenderBatchSize int    `toml:"sender_batch_size"`
	MaxSenderTxs    int    `toml:"max_sender_txs"`
}

// SyncConfig holds settings for the sync endpoint
type SyncConfig struct {
	Concurrency int `toml:"concurrency"`
	MaxJitterMS int `toml:"max_jitter_ms"`
}

// RegistryConfig holds quest catalogue settings
type RegistryConfig struct {
	// Path replaces the embedded catalogue when set.
	Path string `toml:"path"`
}

// RPCTimeoutDuration returns the per-call RPC timeout.
func (c ChainsConfig) RPCTimeoutDuration() time.Duration {
	return time.Duration(c.RPCTimeout) * time.Second
}

// RPCURLOverrides returns the configured endpoints keyed by chain ID.
func (c ChainsConfig) RPCURLOverrides() (map[int64]string, error) {
	out := make(map[int64]string, len(c.RPCURLs))
	for k, url := range c.RPCURLs {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id %q in rpc_urls", k)
		}
		out[id] = url
	}
	return out, nil
}

// MaxJitter returns the sync jitter bound.
func (c SyncConfig) MaxJitter() time.Duration {
	return time.Duration(c.MaxJitterMS) * time.Millisecond
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			Host:           "0.0.0.0",
			ReadTimeout:    30,
			WriteTimeout:   60,
			IdleTimeout:    120,
			RequestTimeout: 60,
		},
		Storage: StorageConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "./data/questhub.db"},
			JSON:   JSONConfig{Path: "./data/db.json"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			Enabled:              true,
			RequestsPerMin:       300,
			BurstSize:            50,
			CleanupMinutes:       10,
			VerifyRequestsPerMin: 30,
			VerifyBurstSize:      5,
		},
		Security: SecurityConfig{
			FilterEnabled: true,
			MaxBodySizeKB: 256,
		},
		Proxy: ProxyConfig{
			TrustedProxies: []string{"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		},
		Metrics: MetricsConfig{
			Enabled:     true,
			ServiceName: "questhub",
		},
		Chains: ChainsConfig{
			RPCURLs:           map[string]string{},
			RPCTimeout:        15,
			RequestsPerSecond: 10,
			Burst:             20,
		},
		Verification: VerificationConfig{
			LookbackBlocks:  2000,
			SenderBatchSize: 20,
			MaxSenderTxs:    500,
		},
		Sync: SyncConfig{
			Concurrency: 4,
			MaxJitterMS: 500,
		},
	}
}

// Load loads configuration from the optional TOML file named by
// QUESTHUB_CONFIG, then applies environment variables on top.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("QUESTHUB_CONFIG"); path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile decodes a TOML file over cfg.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parsing TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Port = getEnvInt("PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("HOST", cfg.Server.Host)
	cfg.Server.ReadTimeout = getEnvInt("SERVER_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvInt("SERVER_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvInt("SERVER_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.RequestTimeout = getEnvInt("SERVER_REQUEST_TIMEOUT", cfg.Server.RequestTimeout)

	cfg.Storage.Type = getEnv("STORAGE_TYPE", cfg.Storage.Type)
	cfg.Storage.Postgres.URL = getEnv("DATABASE_URL", cfg.Storage.Postgres.URL)
	cfg.Storage.SQLite.Path = getEnv("SQLITE_PATH", cfg.Storage.SQLite.Path)
	cfg.Storage.JSON.Path = getEnv("JSON_DB_PATH", cfg.Storage.JSON.Path)

	// If DATABASE_URL is set, default to postgres
	if os.Getenv("DATABASE_URL") != "" && os.Getenv("STORAGE_TYPE") == "" {
		cfg.Storage.Type = "postgres"
	}

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.RateLimit.Enabled = getEnvBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMin = getEnvInt("RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMin)
	cfg.RateLimit.BurstSize = getEnvInt("RATE_LIMIT_BURST", cfg.RateLimit.BurstSize)
	cfg.RateLimit.CleanupMinutes = getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", cfg.RateLimit.CleanupMinutes)
	cfg.RateLimit.VerifyRequestsPerMin = getEnvInt("RATE_LIMIT_VERIFY_RPM", cfg.RateLimit.VerifyRequestsPerMin)
	cfg.RateLimit.VerifyBurstSize = getEnvInt("RATE_LIMIT_VERIFY_BURST", cfg.RateLimit.VerifyBurstSize)

	cfg.Security.FilterEnabled = getEnvBool("SECURITY_FILTER_ENABLED", cfg.Security.FilterEnabled)
	cfg.Security.MaxBodySizeKB = getEnvInt("SECURITY_MAX_BODY_SIZE_KB", cfg.Security.MaxBodySizeKB)

	cfg.Proxy.TrustProxy = getEnvBool("TRUST_PROXY", cfg.Proxy.TrustProxy)
	cfg.Proxy.TrustedProxies = getEnvStringSlice("TRUSTED_PROXIES", cfg.Proxy.TrustedProxies)

	cfg.Metrics.Enabled = getEnvBool("METRICS_ENABLED", cfg.Metrics.Enabled)
	cfg.Metrics.ServiceName = getEnv("METRICS_SERVICE_NAME", cfg.Metrics.ServiceName)

	if cfg.Chains.RPCURLs == nil {
		cfg.Chains.RPCURLs = map[string]string{}
	}
	for name, id := range map[string]int64{
		"RPC_URL_ETHEREUM": chains.ChainIDEthereum,
		"RPC_URL_BASE":     chains.ChainIDBase,
		"RPC_URL_INK":      chains.ChainIDInk,
	} {
		key := strconv.FormatInt(id, 10)
		cfg.Chains.RPCURLs[key] = getEnv(name, cfg.Chains.RPCURLs[key])
		if cfg.Chains.RPCURLs[key] == "" {
			delete(cfg.Chains.RPCURLs, key)
		}
	}
	cfg.Chains.RPCTimeout = getEnvInt("RPC_TIMEOUT_SECONDS", cfg.Chains.RPCTimeout)
	cfg.Chains.RequestsPerSecond = getEnvFloat("RPC_REQUESTS_PER_SECOND", cfg.Chains.RequestsPerSecond)
	cfg.Chains.Burst = getEnvInt("RPC_BURST", cfg.Chains.Burst)

	cfg.Verification.LookbackBlocks = uint64(getEnvInt("VERIFY_LOOKBACK_BLOCKS", int(cfg.Verification.LookbackBlocks)))
	cfg.Verification.SenderBatchSize = getEnvInt("VERIFY_SENDER_BATCH_SIZE", cfg.Verification.SenderBatchSize)
	cfg.Verification.MaxSenderTxs = getEnvInt("VERIFY_MAX_SENDER_TXS", cfg.Verification.MaxSenderTxs)

	cfg.Sync.Concurrency = getEnvInt("SYNC_CONCURRENCY", cfg.Sync.Concurrency)
	cfg.Sync.MaxJitterMS = getEnvInt("SYNC_MAX_JITTER_MS", cfg.Sync.MaxJitterMS)

	cfg.Registry.Path = getEnv("QUESTS_FILE", cfg.Registry.Path)
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server port %d out of range", c.Server.Port))
	}
	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			errs = append(errs, errors.New("sqlite path is required"))
		}
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for postgres storage"))
		}
	case "json":
		if c.Storage.JSON.Path == "" {
			errs = append(errs, errors.New("json path is required"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown storage type %q", c.Storage.Type))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Logging.Format))
	}
	if c.RateLimit.Enabled && (c.RateLimit.RequestsPerMin <= 0 || c.RateLimit.VerifyRequestsPerMin <= 0) {
		errs = append(errs, errors.New("rate limits must be positive when enabled"))
	}
	if c.Chains.RPCTimeout <= 0 {
		errs = append(errs, errors.New("rpc timeout must be positive"))
	}
	if c.Chains.RequestsPerSecond < 0 {
		errs = append(errs, errors.New("rpc requests per second cannot be negative"))
	}
	if _, err := c.Chains.RPCURLOverrides(); err != nil {
		errs = append(errs, err)
	}
	if c.Verification.LookbackBlocks == 0 {
		errs = append(errs, errors.New("lookback blocks must be positive"))
	}
	if c.Verification.SenderBatchSize <= 0 || c.Verification.MaxSenderTxs <= 0 {
		errs = append(errs, errors.New("sender scan limits must be positive"))
	}
	if c.Sync.Concurrency <= 0 {
		errs = append(errs, errors.New("sync concurrency must be positive"))
	}
	if c.Sync.MaxJitterMS < 0 {
		errs = append(errs, errors.New("sync jitter cannot be negative"))
	}

	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
