package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig      `mapstructure:"server"`
	Database   DatabaseConfig    `mapstructure:"database"`
	Redis      RedisConfig       `mapstructure:"redis"`
	JWT        JWTConfig         `mapstructure:"jwt"`
	Encryption EncryptionConfig  `mapstructure:"encryption"`
	Solana     SolanaConfig      `mapstructure:"solana"`
	Sweep      SweepConfig       `mapstructure:"sweep"`
	Helius     HeliusConfig      `mapstructure:"helius"`
	Monitor    MonitorConfig     `mapstructure:"monitor"`
	Notify     NotifyConfig      `mapstructure:"notify"`
	RateLimit  RateLimitConfig   `mapstructure:"rate_limit"`
	Operators  map[string]string `mapstructure:"operators"` // name -> argon2id hash
	Log        LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Mode         string `mapstructure:"mode"` // debug, release, test
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"` // overrides the discrete fields when set
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	SkipMigrations  bool          `mapstructure:"skip_migrations"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	URL      string `mapstructure:"url"` // redis:// or rediss://; overrides host/port
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type EncryptionConfig struct {
	Secret string `mapstructure:"secret"` // PBKDF2 input for the key-material cipher
}

type SolanaConfig struct {
	RPCURL            string        `mapstructure:"rpc_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type SweepConfig struct {
	ColdWallet      string        `mapstructure:"cold_wallet"`
	Threshold       string        `mapstructure:"threshold"` // SOL
	FeeReserve      uint64        `mapstructure:"fee_reserve"`
	SendRetries     int           `mapstructure:"send_retries"`
	RetryInterval   time.Duration `mapstructure:"retry_interval"`
	ConfirmAttempts int           `mapstructure:"confirm_attempts"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"`
}

// ThresholdLamports converts the SOL threshold to lamports.
func (s SweepConfig) ThresholdLamports() (uint64, error) {
	d, err := decimal.NewFromString(s.Threshold)
	if err != nil {
		return 0, fmt.Errorf("parsing sweep threshold %q: %w", s.Threshold, err)
	}
	if !d.IsPositive() {
		return 0, fmt.Errorf("sweep threshold must be positive, got %s", s.Threshold)
	}
	return uint64(d.Shift(9).IntPart()), nil
}

type HeliusConfig struct {
	APIKey        string `mapstructure:"api_key"`
	WebhookID     string `mapstructure:"webhook_id"`
	WebhookSecret string `mapstructure:"webhook_secret"`
	BaseURL       string `mapstructure:"base_url"`
}

type MonitorConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Expiry       time.Duration `mapstructure:"expiry"`
}

type NotifyConfig struct {
	URL     string        `mapstructure:"url"`
	Secret  string        `mapstructure:"secret"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // trace, debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// legacyEnv maps config keys to the unprefixed variable names older
// deployments set. The prefixed CGW_ form always wins.
var legacyEnv = map[string]string{
	"encryption.secret":     "ENCRYPTION_SECRET",
	"solana.rpc_url":        "SOLANA_RPC_URL",
	"sweep.cold_wallet":     "COLD_WALLET_ADDRESS",
	"sweep.threshold":       "SWEEP_THRESHOLD",
	"redis.url":             "REDIS_URL",
	"database.url":          "DATABASE_URL",
	"helius.webhook_secret": "HELIUS_WEBHOOK_SECRET",
	"helius.api_key":        "HELIUS_API_KEY",
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: CGW_ (Custody Gateway).
// Nested keys use underscore: CGW_DATABASE_HOST, CGW_SWEEP_COLD_WALLET, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "custody_gateway")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.skip_migrations", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "12h")
	v.SetDefault("jwt.issuer", "solana-custody-gateway")
	v.SetDefault("encryption.secret", "")
	v.SetDefault("solana.rpc_url", "https://api.devnet.solana.com")
	v.SetDefault("solana.requests_per_second", 10)
	v.SetDefault("solana.burst", 5)
	v.SetDefault("solana.timeout", "15s")
	v.SetDefault("sweep.cold_wallet", "")
	v.SetDefault("sweep.threshold", "0.1")
	v.SetDefault("sweep.fee_reserve", 5000)
	v.SetDefault("sweep.send_retries", 3)
	v.SetDefault("sweep.retry_interval", "500ms")
	v.SetDefault("sweep.confirm_attempts", 30)
	v.SetDefault("sweep.confirm_interval", "2s")
	v.SetDefault("helius.api_key", "")
	v.SetDefault("helius.webhook_id", "")
	v.SetDefault("helius.webhook_secret", "")
	v.SetDefault("helius.base_url", "https://api.helius.xyz")
	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.poll_interval", "5s")
	v.SetDefault("monitor.expiry", "1h")
	v.SetDefault("notify.url", "")
	v.SetDefault("notify.secret", "")
	v.SetDefault("notify.timeout", "10s")
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: CGW_DATABASE_HOST -> database.host
	v.SetEnvPrefix("CGW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := "CGW_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects configurations the gateway must not start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Encryption.Secret == "" {
		errs = append(errs, errors.New("encryption.secret (ENCRYPTION_SECRET) is required"))
	}
	if c.JWT.Secret == "" && len(c.Operators) > 0 {
		errs = append(errs, errors.New("jwt.secret is required when operators are configured"))
	}
	if _, err := c.Sweep.ThresholdLamports(); err != nil {
		errs = append(errs, err)
	}
	if c.Helius.WebhookID != "" && c.Helius.APIKey == "" {
		errs = append(errs, errors.New("helius.api_key is required when helius.webhook_id is set"))
	}
	return errors.Join(errs...)
}
