package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the engine.
type Config struct {
	General     GeneralConfig     `yaml:"general"`
	Solana      SolanaConfig      `yaml:"solana"`
	Raydium     RaydiumConfig     `yaml:"raydium"`
	Dexscreener DexscreenerConfig `yaml:"dexscreener"`
	Storage     StorageConfig     `yaml:"storage"`
	Redis       RedisConfig       `yaml:"redis"`
	Telegram    TelegramConfig    `yaml:"telegram"`
	Server      ServerConfig      `yaml:"server"`
	Execution   ExecutionConfig   `yaml:"execution"`
	Jobs        JobsConfig        `yaml:"jobs"`
	StopLoss    StopLossConfig    `yaml:"stoploss"`
	Launch      LaunchConfig      `yaml:"launch"`
}

type GeneralConfig struct {
	InstanceID  string `yaml:"instance_id"`
	Environment string `yaml:"environment"` // production|staging|development
	DryRun      bool   `yaml:"dry_run"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|console
}

type SolanaConfig struct {
	RPCEndpoint  string        `yaml:"rpc_endpoint"`
	WSEndpoint   string        `yaml:"ws_endpoint"`
	Timeout      time.Duration `yaml:"timeout"`
	RateLimitRPS int           `yaml:"rate_limit_rps"`
	MaxRetries   int           `yaml:"max_retries"`
}

type RaydiumConfig struct {
	APIURL  string        `yaml:"api_url"`
	SwapURL string        `yaml:"swap_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type DexscreenerConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type StorageConfig struct {
	Driver      string `yaml:"driver"` // postgres|memory
	PostgresDSN string `yaml:"postgres_dsn"`
	Migrate     bool   `yaml:"migrate"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type ServerConfig struct {
	ListenAddr      string        `yaml:"listen_addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type ExecutionConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
	ConfirmMode     string        `yaml:"confirm_mode"` // poll|websocket
	ConfirmTimeout  time.Duration `yaml:"confirm_timeout"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	BuySlippageBps  int           `yaml:"buy_slippage_bps"`
	SellSlippageBps int           `yaml:"sell_slippage_bps"`
}

// JobsConfig holds cron specs with a seconds field.
type JobsConfig struct {
	PriceFeed  string `yaml:"price_feed"`
	StopLoss   string `yaml:"stoploss"`
	Watchlist  string `yaml:"watchlist"`
	Metadata   string `yaml:"metadata"`
	RugWatcher string `yaml:"rug_watcher"`
}

type StopLossConfig struct {
	Concurrency int           `yaml:"concurrency"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
}

type LaunchConfig struct {
	MetadataRetryDelay time.Duration `yaml:"metadata_retry_delay"`
	BuyConcurrency     int           `yaml:"buy_concurrency"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a configuration with every default applied, for runs
// without a config file.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("config: storage.postgres_dsn is required for the postgres driver")
	}
	switch c.Execution.ConfirmMode {
	case "poll", "websocket":
	default:
		return fmt.Errorf("config: unknown confirm mode %q", c.Execution.ConfirmMode)
	}
	if c.Execution.MaxAttempts < 1 {
		return fmt.Errorf("config: execution.max_attempts must be at least 1")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "sling-1"
	}
	if cfg.General.Environment == "" {
		cfg.General.Environment = "development"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}

	if cfg.Solana.RPCEndpoint == "" {
		cfg.Solana.RPCEndpoint = "https://api.mainnet-beta.solana.com"
	}
	if cfg.Solana.WSEndpoint == "" {
		cfg.Solana.WSEndpoint = "wss://api.mainnet-beta.solana.com"
	}
	if cfg.Solana.Timeout == 0 {
		cfg.Solana.Timeout = 10 * time.Second
	}
	if cfg.Solana.RateLimitRPS == 0 {
		cfg.Solana.RateLimitRPS = 10
	}
	if cfg.Solana.MaxRetries == 0 {
		cfg.Solana.MaxRetries = 3
	}

	if cfg.Raydium.APIURL == "" {
		cfg.Raydium.APIURL = "https://api-v3.raydium.io"
	}
	if cfg.Raydium.SwapURL == "" {
		cfg.Raydium.SwapURL = "https://transaction-v1.raydium.io"
	}
	if cfg.Raydium.Timeout == 0 {
		cfg.Raydium.Timeout = 15 * time.Second
	}
	if cfg.Dexscreener.BaseURL == "" {
		cfg.Dexscreener.BaseURL = "https://api.dexscreener.com"
	}
	if cfg.Dexscreener.Timeout == 0 {
		cfg.Dexscreener.Timeout = 10 * time.Second
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "memory"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}

	if cfg.Execution.MaxAttempts == 0 {
		cfg.Execution.MaxAttempts = 3
	}
	if cfg.Execution.RetryDelay == 0 {
		cfg.Execution.RetryDelay = time.Second
	}
	if cfg.Execution.ConfirmMode == "" {
		cfg.Execution.ConfirmMode = "poll"
	}
	if cfg.Execution.ConfirmTimeout == 0 {
		cfg.Execution.ConfirmTimeout = 60 * time.Second
	}
	if cfg.Execution.PollInterval == 0 {
		cfg.Execution.PollInterval = 2 * time.Second
	}
	if cfg.Execution.BuySlippageBps == 0 {
		cfg.Execution.BuySlippageBps = 100
	}
	if cfg.Execution.SellSlippageBps == 0 {
		cfg.Execution.SellSlippageBps = 50
	}

	if cfg.Jobs.PriceFeed == "" {
		cfg.Jobs.PriceFeed = "*/30 * * * * *"
	}
	if cfg.Jobs.StopLoss == "" {
		cfg.Jobs.StopLoss = "0 * * * * *"
	}
	if cfg.Jobs.Watchlist == "" {
		cfg.Jobs.Watchlist = "0 */10 * * * *"
	}
	if cfg.Jobs.Metadata == "" {
		cfg.Jobs.Metadata = "0 */5 * * * *"
	}
	if cfg.Jobs.RugWatcher == "" {
		cfg.Jobs.RugWatcher = "0 */2 * * * *"
	}

	if cfg.StopLoss.Concurrency == 0 {
		cfg.StopLoss.Concurrency = 8
	}
	if cfg.StopLoss.LockTTL == 0 {
		cfg.StopLoss.LockTTL = 2 * time.Minute
	}
	if cfg.Launch.MetadataRetryDelay == 0 {
		cfg.Launch.MetadataRetryDelay = 30 * time.Second
	}
	if cfg.Launch.BuyConcurrency == 0 {
		cfg.Launch.BuyConcurrency = 4
	}
}
