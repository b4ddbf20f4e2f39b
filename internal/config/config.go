// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (PUMP_SNIPER_RPC_URL, ...).
const EnvPrefix = "PUMP_SNIPER"

type Config struct {
	PrivateKey   string `mapstructure:"private_key"`
	RPCURL       string `mapstructure:"rpc_url"`
	Simulate     bool   `mapstructure:"simulate"`
	DebugLogging bool   `mapstructure:"debug_logging"`
	TUI          bool   `mapstructure:"tui"`
	MetricsAddr  string `mapstructure:"metrics_addr"`

	License LicenseConfig `mapstructure:"license"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Relay   RelayConfig   `mapstructure:"relay"`
	Trading TradingConfig `mapstructure:"trading"`
	Risk    RiskConfig    `mapstructure:"risk"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Ledger  LedgerConfig  `mapstructure:"ledger"`
	Log     LogConfig     `mapstructure:"log"`
}

type LicenseConfig struct {
	Key       string `mapstructure:"key"`
	AccountID string `mapstructure:"account_id"`
	ProductID string `mapstructure:"product_id"`
	Token     string `mapstructure:"token"`
}

type StreamConfig struct {
	URL          string `mapstructure:"url"`
	APIKey       string `mapstructure:"api_key"`
	CurveUpdates bool   `mapstructure:"curve_updates"`
	Slots        bool   `mapstructure:"slots"`
}

type RelayConfig struct {
	URL     string        `mapstructure:"url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// TradingConfig holds the position lifecycle knobs.
type TradingConfig struct {
	BuySol            float64       `mapstructure:"buy_sol"`
	BuySlippageBps    uint64        `mapstructure:"buy_slippage_bps"`
	SellTimeout       time.Duration `mapstructure:"sell_timeout"`
	StopLossTimeout   time.Duration `mapstructure:"stop_loss_timeout"`
	NoActivityTimeout time.Duration `mapstructure:"no_activity_timeout"`
	StopLossFraction  float64       `mapstructure:"stop_loss_fraction"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	MaxUnconfirmed    int           `mapstructure:"max_unconfirmed"`
	MaxUnsold         int           `mapstructure:"max_unsold"`
	SellMultipliers   []float64     `mapstructure:"sell_multipliers"`
	SendBackoff       time.Duration `mapstructure:"send_backoff"`
	RejectBackoff     time.Duration `mapstructure:"reject_backoff"`
	PollDelay         time.Duration `mapstructure:"poll_delay"`
	PendingTTL        time.Duration `mapstructure:"pending_ttl"`
	SweepInterval     time.Duration `mapstructure:"sweep_interval"`
	HealthInterval    time.Duration `mapstructure:"health_interval"`
}

type RiskConfig struct {
	BreakerThreshold int           `mapstructure:"breaker_threshold"`
	BreakerReset     time.Duration `mapstructure:"breaker_reset"`
	FeeWarnRatio     float64       `mapstructure:"fee_warn_ratio"`
	FeeConfirmRatio  float64       `mapstructure:"fee_confirm_ratio"`
	FeeRejectRatio   float64       `mapstructure:"fee_reject_ratio"`
	FeeOverride      bool          `mapstructure:"fee_override"`
}

type CacheConfig struct {
	BlockhashInterval time.Duration `mapstructure:"blockhash_interval"`
	BlockhashMaxAge   time.Duration `mapstructure:"blockhash_max_age"`
	FeeInterval       time.Duration `mapstructure:"fee_interval"`
	FeeMaxAge         time.Duration `mapstructure:"fee_max_age"`
	FeePercentile     int           `mapstructure:"fee_percentile"`
	MinCUPrice        uint64        `mapstructure:"min_cu_price"`
	MaxCUPrice        uint64        `mapstructure:"max_cu_price"`
}

// LedgerConfig selects the trade store: "sqlite" (default), "postgres" or
// "memory".
type LedgerConfig struct {
	Driver      string `mapstructure:"driver"`
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

var defaults = map[string]interface{}{
	"private_key":   "",
	"rpc_url":       "https://api.mainnet-beta.solana.com",
	"simulate":      false,
	"debug_logging": false,
	"tui":           false,
	"metrics_addr":  "",

	"license.key":        "",
	"license.account_id": "",
	"license.product_id": "",
	"license.token":      "",

	"stream.url":           "",
	"stream.api_key":       "",
	"stream.curve_updates": true,
	"stream.slots":         true,

	"relay.url":     "",
	"relay.api_key": "",
	"relay.timeout": "2s",

	"trading.buy_sol":             0.01,
	"trading.buy_slippage_bps":    500,
	"trading.sell_timeout":        "60s",
	"trading.stop_loss_timeout":   "20s",
	"trading.no_activity_timeout": "10s",
	"trading.stop_loss_fraction":  0.40,
	"trading.cooldown":            "60s",
	"trading.max_unconfirmed":     1,
	"trading.max_unsold":          0,
	"trading.sell_multipliers":    []float64{0.98, 0.95, 0.90},
	"trading.send_backoff":        "2s",
	"trading.reject_backoff":      "3s",
	"trading.poll_delay":          "10s",
	"trading.pending_ttl":         "60s",
	"trading.sweep_interval":      "30s",
	"trading.health_interval":     "30s",

	"risk.breaker_threshold": 1,
	"risk.breaker_reset":     "30s",
	"risk.fee_warn_ratio":    0.02,
	"risk.fee_confirm_ratio": 0.05,
	"risk.fee_reject_ratio":  0.10,
	"risk.fee_override":      false,

	"cache.blockhash_interval": "400ms",
	"cache.blockhash_max_age":  "5s",
	"cache.fee_interval":       "3s",
	"cache.fee_max_age":        "15s",
	"cache.fee_percentile":     75,
	"cache.min_cu_price":       10_000,
	"cache.max_cu_price":       5_000_000,

	"ledger.driver":       "sqlite",
	"ledger.sqlite_path":  "data/trades.db",
	"ledger.postgres_url": "",

	"log.file":         "logs/pump-sniper.log",
	"log.max_size_mb":  50,
	"log.max_backups":  5,
	"log.max_age_days": 14,
}

// Secrets are also read from their unprefixed names, as written in .env.
var secretEnv = map[string]string{
	"private_key":    "PRIVATE_KEY",
	"stream.api_key": "STREAM_API_KEY",
	"relay.api_key":  "RELAY_API_KEY",
	"license.key":    "LICENSE",
}

// Command-line flags bound over file and environment values.
var flagKeys = map[string]string{
	"simulate":      "simulate",
	"tui":           "tui",
	"debug":         "debug_logging",
	"metrics-addr":  "metrics_addr",
	"rpc-url":       "rpc_url",
	"stream-url":    "stream.url",
	"ledger-driver": "ledger.driver",
}

// Load reads path (optional), then .env, environment and flags. Later
// sources win.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range secretEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.PrivateKey == "" {
		add("private_key is required")
	}
	if err := validateURL(c.RPCURL, "http"); err != nil {
		add("rpc_url: %w", err)
	}
	if err := validateURL(c.Stream.URL, "ws"); err != nil {
		add("stream.url: %w", err)
	}
	if c.Relay.URL != "" {
		if err := validateURL(c.Relay.URL, "http"); err != nil {
			add("relay.url: %w", err)
		}
	}

	t := c.Trading
	if t.BuySol <= 0 {
		add("trading.buy_sol must be positive")
	}
	if t.SellTimeout <= 0 {
		add("trading.sell_timeout must be positive")
	}
	for name, d := range map[string]time.Duration{
		"stop_loss_timeout":   t.StopLossTimeout,
		"no_activity_timeout": t.NoActivityTimeout,
		"cooldown":            t.Cooldown,
	} {
		if d < 0 {
			add("trading.%s must not be negative", name)
		}
	}
	if len(t.SellMultipliers) == 0 {
		add("trading.sell_multipliers must not be empty")
	}
	for i, m := range t.SellMultipliers {
		if m <= 0 || m > 1 {
			add("trading.sell_multipliers[%d] = %.2f out of (0,1]", i, m)
		}
		if i > 0 && m > t.SellMultipliers[i-1] {
			add("trading.sell_multipliers must be non-increasing")
		}
	}

	r := c.Risk
	if !(r.FeeWarnRatio < r.FeeConfirmRatio && r.FeeConfirmRatio < r.FeeRejectRatio) {
		add("risk fee ratios must satisfy warn < confirm < reject")
	}
	if r.BreakerReset <= 0 {
		add("risk.breaker_reset must be positive")
	}

	if c.Cache.FeePercentile < 0 || c.Cache.FeePercentile > 100 {
		add("cache.fee_percentile %d out of [0,100]", c.Cache.FeePercentile)
	}
	if c.Cache.MinCUPrice > c.Cache.MaxCUPrice {
		add("cache.min_cu_price above max_cu_price")
	}

	switch c.Ledger.Driver {
	case "sqlite", "memory":
	case "postgres":
		if c.Ledger.PostgresURL == "" {
			add("ledger.postgres_url is required for the postgres driver")
		}
	default:
		add("unknown ledger.driver %q", c.Ledger.Driver)
	}
	return errors.Join(errs...)
}

func validateURL(rawURL, scheme string) error {
	if rawURL == "" {
		return errors.New("missing URL")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if !strings.HasPrefix(parsed.Scheme, scheme) {
		return fmt.Errorf("invalid URL protocol %q", parsed.Scheme)
	}
	return nil
}
