// Package config loads the bot configuration from a config file, SANDWICH_*
// environment variables, an optional .env file and command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. SANDWICH_RPC_URL.
const EnvPrefix = "SANDWICH"

// Config is the full runtime configuration.
type Config struct {
	RPC       RPCConfig       `mapstructure:"rpc"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Strategy  StrategyConfig  `mapstructure:"strategy"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Log       LogConfig       `mapstructure:"log"`
}

type RPCConfig struct {
	URL        string        `mapstructure:"url"`
	WSURL      string        `mapstructure:"ws_url"`
	Commitment string        `mapstructure:"commitment"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// WaitTimeout bounds the throttle wait of a single call.
	WaitTimeout time.Duration `mapstructure:"wait_timeout"`
}

type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
	Burst    int           `mapstructure:"burst"`
}

// StrategyConfig holds the evaluation and leg-building knobs. Amounts are in
// base units of the traded token.
type StrategyConfig struct {
	MaxTradeSize     uint64 `mapstructure:"max_trade_size"`
	MinMargin        int64  `mapstructure:"min_margin"`
	FeeBps           uint64 `mapstructure:"fee_bps"`
	TxFee            uint64 `mapstructure:"tx_fee"`
	ToleranceBps     uint64 `mapstructure:"tolerance_bps"`
	GridSteps        int    `mapstructure:"grid_steps"`
	SlippageBps      uint64 `mapstructure:"slippage_bps"`
	ComputeUnitLimit uint32 `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice uint64 `mapstructure:"compute_unit_price"`
}

type ExecutionConfig struct {
	DryRun         bool          `mapstructure:"dry_run"`
	MaxInFlight    int           `mapstructure:"max_in_flight"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
	MaxSlotLag     int64         `mapstructure:"max_slot_lag"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
}

type MonitorConfig struct {
	// Source is "poll" or "stream".
	Source       string        `mapstructure:"source"`
	ProgramID    string        `mapstructure:"program_id"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PollLimit    int           `mapstructure:"poll_limit"`
	ErrorBackoff time.Duration `mapstructure:"error_backoff"`
	SeenSize     int           `mapstructure:"seen_size"`
	// PoolMaxAge is how long a cached pool snapshot may be served.
	PoolMaxAge time.Duration `mapstructure:"pool_max_age"`
}

type WalletConfig struct {
	KeygenFile string `mapstructure:"keygen_file"`
	Base58     string `mapstructure:"base58"`
}

type StorageConfig struct {
	// Driver is "memory" or "postgres".
	Driver           string        `mapstructure:"driver"`
	PostgresDSN      string        `mapstructure:"postgres_dsn"`
	PostgresMaxConns int32         `mapstructure:"postgres_max_conns"`
	PostgresConnLife time.Duration `mapstructure:"postgres_conn_lifetime"`
	// ClickhouseDSN enables the evaluation recorder when set.
	ClickhouseDSN string        `mapstructure:"clickhouse_dsn"`
	RunMigrations bool          `mapstructure:"run_migrations"`
	BatchSize     int           `mapstructure:"batch_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// RedisConfig enables the shared wallet lock and pool cache when Addr is set.
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MaxRetries   int           `mapstructure:"max_retries"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
	PoolCacheTTL time.Duration `mapstructure:"pool_cache_ttl"`
}

type NotifyConfig struct {
	TelegramToken     string        `mapstructure:"telegram_token"`
	TelegramChatID    string        `mapstructure:"telegram_chat_id"`
	TelegramBaseURL   string        `mapstructure:"telegram_base_url"`
	DiscordWebhookURL string        `mapstructure:"discord_webhook_url"`
	Events            []string      `mapstructure:"events"`
	RetryAttempts     int           `mapstructure:"retry_attempts"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
}

// JournalConfig enables the JSONL event journal when Dir is set, and S3
// archiving of rotated files when S3.Bucket is set.
type JournalConfig struct {
	Dir      string        `mapstructure:"dir"`
	MaxBytes int64         `mapstructure:"max_bytes"`
	MaxAge   time.Duration `mapstructure:"max_age"`
	// Kinds limits the journal to these event kinds. Empty records all.
	Kinds []string `mapstructure:"kinds"`
	S3    S3Config `mapstructure:"s3"`
}

type S3Config struct {
	Endpoint       string `mapstructure:"endpoint"`
	Region         string `mapstructure:"region"`
	Bucket         string `mapstructure:"bucket"`
	Prefix         string `mapstructure:"prefix"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	UseSSL         bool   `mapstructure:"use_ssl"`
	ForcePathStyle bool   `mapstructure:"force_path_style"`
	RemoveLocal    bool   `mapstructure:"remove_local"`
}

type MetricsConfig struct {
	// Addr serves /metrics and /health. Empty disables the server.
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// Raydium AMM v4.
const defaultProgramID = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc.url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("rpc.ws_url", "")
	v.SetDefault("rpc.commitment", "confirmed")
	v.SetDefault("rpc.timeout", 10*time.Second)
	v.SetDefault("rpc.wait_timeout", 2*time.Second)

	v.SetDefault("rate_limit.requests", 15)
	v.SetDefault("rate_limit.window", time.Second)
	v.SetDefault("rate_limit.burst", 1)

	v.SetDefault("strategy.max_trade_size", uint64(1_000_000_000))
	v.SetDefault("strategy.min_margin", int64(10_000))
	v.SetDefault("strategy.fee_bps", uint64(0))
	v.SetDefault("strategy.tx_fee", uint64(5_000))
	v.SetDefault("strategy.tolerance_bps", uint64(0))
	v.SetDefault("strategy.grid_steps", 32)
	v.SetDefault("strategy.slippage_bps", uint64(50))
	v.SetDefault("strategy.compute_unit_limit", uint32(200_000))
	v.SetDefault("strategy.compute_unit_price", uint64(0))

	v.SetDefault("execution.dry_run", true)
	v.SetDefault("execution.max_in_flight", 1)
	v.SetDefault("execution.poll_interval", 400*time.Millisecond)
	v.SetDefault("execution.confirm_timeout", 30*time.Second)
	v.SetDefault("execution.max_slot_lag", int64(4))
	v.SetDefault("execution.lock_ttl", 2*time.Minute)

	v.SetDefault("monitor.source", "poll")
	v.SetDefault("monitor.program_id", defaultProgramID)
	v.SetDefault("monitor.poll_interval", time.Second)
	v.SetDefault("monitor.poll_limit", 25)
	v.SetDefault("monitor.error_backoff", 500*time.Millisecond)
	v.SetDefault("monitor.seen_size", 4096)
	v.SetDefault("monitor.pool_max_age", 2*time.Second)

	v.SetDefault("wallet.keygen_file", "")
	v.SetDefault("wallet.base58", "")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.postgres_max_conns", int32(10))
	v.SetDefault("storage.postgres_conn_lifetime", time.Hour)
	v.SetDefault("storage.clickhouse_dsn", "")
	v.SetDefault("storage.run_migrations", false)
	v.SetDefault("storage.batch_size", 500)
	v.SetDefault("storage.flush_interval", 2*time.Second)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.key_prefix", "sandwich")
	v.SetDefault("redis.pool_cache_ttl", time.Minute)

	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", "")
	v.SetDefault("notify.telegram_base_url", "")
	v.SetDefault("notify.discord_webhook_url", "")
	v.SetDefault("notify.events", []string{})
	v.SetDefault("notify.retry_attempts", 3)
	v.SetDefault("notify.retry_backoff", time.Second)

	v.SetDefault("journal.dir", "")
	v.SetDefault("journal.max_bytes", int64(64<<20))
	v.SetDefault("journal.max_age", time.Hour)
	v.SetDefault("journal.kinds", []string{})
	v.SetDefault("journal.s3.endpoint", "")
	v.SetDefault("journal.s3.region", "")
	v.SetDefault("journal.s3.bucket", "")
	v.SetDefault("journal.s3.prefix", "journal")
	v.SetDefault("journal.s3.access_key", "")
	v.SetDefault("journal.s3.secret_key", "")
	v.SetDefault("journal.s3.use_ssl", true)
	v.SetDefault("journal.s3.force_path_style", false)
	v.SetDefault("journal.s3.remove_local", false)

	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"rpc-url":      "rpc.url",
	"ws-url":       "rpc.ws_url",
	"dry-run":      "execution.dry_run",
	"source":       "monitor.source",
	"storage":      "storage.driver",
	"metrics-addr": "metrics.addr",
	"log-level":    "log.level",
	"keygen-file":  "wallet.keygen_file",
	"journal-dir":  "journal.dir",
}

// RegisterFlags defines the flags Load knows how to bind.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("rpc-url", "https://api.mainnet-beta.solana.com", "Solana JSON-RPC endpoint")
	fs.String("ws-url", "", "Solana WebSocket endpoint (stream source)")
	fs.Bool("dry-run", true, "build and log bundles without submitting them")
	fs.String("source", "poll", "transaction source: poll or stream")
	fs.String("storage", "memory", "outcome store: memory or postgres")
	fs.String("metrics-addr", ":9090", "metrics and health listen address, empty to disable")
	fs.String("log-level", "info", "log level")
	fs.String("keygen-file", "", "solana-keygen JSON wallet file")
	fs.String("journal-dir", "", "directory for the JSONL event journal")
}

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	// File is an explicit config file. When empty, ./sandwich.{yaml,toml,json}
	// is read if present.
	File string
	// EnvFile is loaded into the environment before reading overrides. A
	// missing file is ignored.
	EnvFile string
	Flags   *pflag.FlagSet
}

// Load merges defaults, config file, environment and flags. The result is
// not validated.
func Load(opts LoadOptions) (*Config, error) {
	if opts.EnvFile != "" {
		if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("sandwich")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Notify.Events = cleanStrings(cfg.Notify.Events)
	cfg.Journal.Kinds = cleanStrings(cfg.Journal.Kinds)
	return &cfg, nil
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.RPC.URL == "" {
		fail("rpc.url is required")
	}
	if c.RateLimit.Requests <= 0 {
		fail("rate_limit.requests must be positive")
	}
	if c.RateLimit.Window <= 0 {
		fail("rate_limit.window must be positive")
	}
	if c.RateLimit.Burst < 1 {
		fail("rate_limit.burst must be at least 1")
	}

	s := c.Strategy
	if s.MaxTradeSize == 0 || s.MaxTradeSize > math.MaxInt64 {
		fail("strategy.max_trade_size must be in (0, %d]", int64(math.MaxInt64))
	}
	if s.MinMargin < 0 {
		fail("strategy.min_margin must not be negative")
	}
	if s.ToleranceBps > 10_000 {
		fail("strategy.tolerance_bps must be at most 10000")
	}
	if s.SlippageBps >= 10_000 {
		fail("strategy.slippage_bps must be below 10000")
	}
	if s.FeeBps >= 10_000 {
		fail("strategy.fee_bps must be below 10000")
	}
	if s.GridSteps < 0 {
		fail("strategy.grid_steps must not be negative")
	}

	if c.Execution.MaxInFlight < 1 {
		fail("execution.max_in_flight must be at least 1")
	}
	if !c.Execution.DryRun && c.Wallet.KeygenFile == "" && c.Wallet.Base58 == "" {
		fail("live execution needs wallet.keygen_file or wallet.base58")
	}

	switch c.Monitor.Source {
	case "poll":
	case "stream":
		if c.RPC.WSURL == "" {
			fail("monitor.source stream needs rpc.ws_url")
		}
	default:
		fail("monitor.source must be poll or stream, got %q", c.Monitor.Source)
	}
	if c.Monitor.ProgramID == "" {
		fail("monitor.program_id is required")
	}

	switch c.Storage.Driver {
	case "memory":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			fail("storage.driver postgres needs storage.postgres_dsn")
		}
	default:
		fail("storage.driver must be memory or postgres, got %q", c.Storage.Driver)
	}

	if c.Notify.TelegramToken != "" && c.Notify.TelegramChatID == "" {
		fail("notify.telegram_token needs notify.telegram_chat_id")
	}

	for _, k := range c.Journal.Kinds {
		if !knownEventKinds[k] {
			fail("journal.kinds: unknown event kind %q", k)
		}
	}
	if b := c.Journal.S3.Bucket; b != "" {
		if c.Journal.Dir == "" {
			fail("journal.s3.bucket needs journal.dir")
		}
		if c.Journal.S3.Region == "" {
			fail("journal.s3.bucket needs journal.s3.region")
		}
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		fail("log.level: %v", err)
	}

	return errors.Join(errs...)
}

var knownEventKinds = map[string]bool{
	"swap_decoded":        true,
	"decode_failed":       true,
	"plan_built":          true,
	"plan_rejected":       true,
	"bundle_transition":   true,
	"outcome":             true,
	"opportunity_dropped": true,
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
