// internal/config/components.go
package config

import (
	"net/http"

	"github.com/rovshanmuradov/pump-sniper/internal/cache"
	"github.com/rovshanmuradov/pump-sniper/internal/engine"
	"github.com/rovshanmuradov/pump-sniper/internal/execution"
	"github.com/rovshanmuradov/pump-sniper/internal/logger"
	"github.com/rovshanmuradov/pump-sniper/internal/risk"
	"github.com/rovshanmuradov/pump-sniper/internal/stream"
	"github.com/shopspring/decimal"
)

// BuyLamports converts the configured SOL amount, rounding down.
func (c *Config) BuyLamports() uint64 {
	return uint64(decimal.NewFromFloat(c.Trading.BuySol).Shift(9).IntPart())
}

// Engine returns the lifecycle configuration.
func (c *Config) Engine() engine.Config {
	cfg := engine.DefaultConfig()
	t := c.Trading
	cfg.BuyLamports = c.BuyLamports()
	cfg.SellTimeout = t.SellTimeout
	cfg.StopLossTimeout = t.StopLossTimeout
	cfg.NoActivityTimeout = t.NoActivityTimeout
	cfg.StopLossFraction = t.StopLossFraction
	cfg.Cooldown = t.Cooldown
	cfg.MaxUnconfirmed = t.MaxUnconfirmed
	cfg.MaxUnsold = t.MaxUnsold
	cfg.SellMultipliers = append([]float64(nil), t.SellMultipliers...)
	cfg.SendBackoff = t.SendBackoff
	cfg.RejectBackoff = t.RejectBackoff
	cfg.PollDelay = t.PollDelay
	cfg.PendingTTL = t.PendingTTL
	cfg.SweepInterval = t.SweepInterval
	cfg.HealthInterval = t.HealthInterval
	return cfg
}

// Breaker returns the circuit breaker configuration.
func (c *Config) Breaker() risk.BreakerConfig {
	return risk.BreakerConfig{Threshold: c.Risk.BreakerThreshold, ResetAfter: c.Risk.BreakerReset}
}

// FeeGuard returns the fee ratio bands.
func (c *Config) FeeGuard() risk.FeeGuardConfig {
	return risk.FeeGuardConfig{
		WarnRatio:    c.Risk.FeeWarnRatio,
		ConfirmRatio: c.Risk.FeeConfirmRatio,
		RejectRatio:  c.Risk.FeeRejectRatio,
		Override:     c.Risk.FeeOverride,
	}
}

// Caches returns the blockhash and fee refresh policy.
func (c *Config) Caches() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.BlockhashInterval = c.Cache.BlockhashInterval
	cfg.BlockhashMaxAge = c.Cache.BlockhashMaxAge
	cfg.FeeInterval = c.Cache.FeeInterval
	cfg.FeeMaxAge = c.Cache.FeeMaxAge
	cfg.FeePercentile = c.Cache.FeePercentile
	cfg.MinCUPrice = c.Cache.MinCUPrice
	cfg.MaxCUPrice = c.Cache.MaxCUPrice
	return cfg
}

// StreamClient returns the subscription configuration.
func (c *Config) StreamClient() stream.Config {
	cfg := stream.DefaultConfig(c.Stream.URL)
	cfg.CurveUpdates = c.Stream.CurveUpdates
	cfg.Slots = c.Stream.Slots
	if c.Stream.APIKey != "" {
		cfg.Header = http.Header{"x-api-key": []string{c.Stream.APIKey}}
	}
	return cfg
}

func (c *Config) FastRelay() execution.RelayConfig {
	return execution.RelayConfig{URL: c.Relay.URL, APIKey: c.Relay.APIKey, Timeout: c.Relay.Timeout}
}

func (c *Config) Submitter() execution.SubmitterConfig {
	return execution.SubmitterConfig{Simulate: c.Simulate, SendTimeout: c.Relay.Timeout}
}

func (c *Config) Trader() execution.TraderConfig {
	cfg := execution.DefaultTraderConfig()
	cfg.BuySlippageBps = c.Trading.BuySlippageBps
	return cfg
}

// Logger returns the log output configuration. The console is silenced
// while the dashboard runs.
func (c *Config) Logger() logger.Config {
	cfg := logger.DefaultConfig()
	cfg.File = c.Log.File
	cfg.MaxSizeMB = c.Log.MaxSizeMB
	cfg.MaxBackups = c.Log.MaxBackups
	cfg.MaxAgeDays = c.Log.MaxAgeDays
	cfg.Debug = c.DebugLogging
	cfg.Quiet = c.TUI
	return cfg
}
