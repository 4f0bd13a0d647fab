// Package config defines the top-level configuration for tickbot and
// provides validation helpers. Configuration is static: it is read once at
// startup and never changes during a session.
package config

import (
	"fmt"
	"strings"

	"github.com/quantrove/tickbot/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TICKBOT_* environment
// variables.
type Config struct {
	Mode     string `toml:"mode"`
	LogLevel string `toml:"log_level"`

	Engine      EngineConfig       `toml:"engine"`
	Server      ServerConfig       `toml:"server"`
	Replay      ReplayConfig       `toml:"replay"`
	Postgres    PostgresConfig     `toml:"postgres"`
	Redis       RedisConfig        `toml:"redis"`
	S3          S3Config           `toml:"s3"`
	Instruments []InstrumentConfig `toml:"instruments"`
}

// EngineConfig holds engine-wide parameters.
type EngineConfig struct {
	// TickDuration is the host timestamp increment between consecutive
	// ticks.
	TickDuration int64 `toml:"tick_duration"`
}

// ServerConfig holds the websocket host-adapter listen parameters.
type ServerConfig struct {
	Addr string `toml:"addr"`
	Path string `toml:"path"`
}

// ReplayConfig holds the offline replay feeder parameters.
type ReplayConfig struct {
	// InputPath is a JSONL file of TickInput values, one per line.
	InputPath string `toml:"input_path"`
	// OutputPath receives one TickResult JSON line per input tick. Empty
	// writes to stdout.
	OutputPath string `toml:"output_path"`
}

// PostgresConfig holds the tick decision store connection parameters. The
// store is optional; with Enabled false no pool is opened.
type PostgresConfig struct {
	Enabled      bool   `toml:"enabled"`
	DSN          string `toml:"dsn"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds the carried-state mirror connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`

	// RecoverRunID, when set, seeds the first served tick with the
	// carried state mirrored under that run.
	RecoverRunID string `toml:"recover_run_id"`
}

// S3Config holds the session archive object-storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// InstrumentConfig configures one instrument and the strategy that runs it.
// Only the parameter group matching the strategy kind is consulted.
type InstrumentConfig struct {
	Symbol        string  `toml:"symbol"`
	PositionLimit int     `toml:"position_limit"`
	StorageCost   float64 `toml:"storage_cost"`
	Strategy      string  `toml:"strategy"`

	// Market making (fixed_mm, regression_mm, basket).
	FairValue   float64 `toml:"fair_value"`
	SLInventory int     `toml:"sl_inventory"`
	SLSpread    int     `toml:"sl_spread"`
	MMSpread    float64 `toml:"mm_spread"`
	OrderSkew   float64 `toml:"order_skew"`

	// Regression (regression_mm).
	MinWindowSize int `toml:"min_window_size"`
	MaxWindowSize int `toml:"max_window_size"`
	PredictShift  int `toml:"predict_shift"`

	// OTC arbitrage (otc_arbitrage).
	ExpStorageTime float64 `toml:"exp_storage_time"`
	MinEdge        float64 `toml:"min_edge"`
	MMEdge         float64 `toml:"mm_edge"`

	// Basket premium (basket).
	PremiumMean          float64             `toml:"premium_mean"`
	PremiumStd           float64             `toml:"premium_std"`
	LinearSensitivity    float64             `toml:"linear_sensitivity"`
	QuadraticSensitivity float64             `toml:"quadratic_sensitivity"`
	SLTarget             int                 `toml:"sl_target"`
	Constituents         []ConstituentConfig `toml:"constituents"`
}

// ConstituentConfig describes one basket member.
type ConstituentConfig struct {
	Symbol        string  `toml:"symbol"`
	PositionLimit int     `toml:"position_limit"`
	PerBasket     float64 `toml:"per_basket"`
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":  true,
	"replay": true,
	"once":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for invalid or missing values and returns a
// combined error describing every problem found. Any error here is fatal at
// startup; per-tick code assumes a validated config.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, replay, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}
	if c.Engine.TickDuration <= 0 {
		errs = append(errs, fmt.Sprintf("engine: tick_duration must be positive, got %d", c.Engine.TickDuration))
	}
	if strings.ToLower(c.Mode) == "serve" && c.Server.Addr == "" {
		errs = append(errs, "server: addr must not be empty in serve mode")
	}
	if strings.ToLower(c.Mode) == "replay" && c.Replay.InputPath == "" {
		errs = append(errs, "replay: input_path must not be empty in replay mode")
	}
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			errs = append(errs, "postgres: dsn must not be empty when enabled")
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}
	if c.Redis.RecoverRunID != "" && !c.Redis.Enabled {
		errs = append(errs, "redis: recover_run_id requires redis to be enabled")
	}
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty when enabled")
	}

	if len(c.Instruments) == 0 {
		errs = append(errs, "instruments: at least one instrument must be configured")
	}
	seen := make(map[string]bool, len(c.Instruments))
	arbCount := 0
	for i, inst := range c.Instruments {
		prefix := fmt.Sprintf("instruments[%d] (%s)", i, inst.Symbol)
		if inst.Symbol == "" {
			errs = append(errs, prefix+": symbol must not be empty")
		}
		if seen[inst.Symbol] {
			errs = append(errs, prefix+": duplicate symbol")
		}
		seen[inst.Symbol] = true
		if inst.PositionLimit <= 0 {
			errs = append(errs, fmt.Sprintf("%s: position_limit must be positive, got %d", prefix, inst.PositionLimit))
		}
		kind := domain.StrategyKind(strings.ToLower(inst.Strategy))
		if !kind.Valid() {
			errs = append(errs, fmt.Sprintf("%s: unknown strategy %q", prefix, inst.Strategy))
			continue
		}
		if kind == domain.StrategyOTCArbitrage {
			arbCount++
			// The tick result carries a single conversion figure, so only
			// one instrument may convert against the OTC quote.
			if arbCount > 1 {
				errs = append(errs, prefix+": only one otc_arbitrage instrument may be configured")
			}
		}
		errs = append(errs, inst.validateStrategy(prefix, kind)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

func (ic *InstrumentConfig) validateStrategy(prefix string, kind domain.StrategyKind) []string {
	var errs []string
	switch kind {
	case domain.StrategyFixedMM, domain.StrategyRegressionMM:
		if ic.MMSpread <= 0 {
			errs = append(errs, prefix+": mm_spread must be positive")
		}
		if ic.SLSpread < 0 {
			errs = append(errs, prefix+": sl_spread must not be negative")
		}
		if ic.OrderSkew < 0 {
			errs = append(errs, prefix+": order_skew must not be negative")
		}
		if kind == domain.StrategyRegressionMM {
			if ic.MinWindowSize < 2 {
				errs = append(errs, prefix+": min_window_size must be >= 2")
			}
			if ic.MaxWindowSize < ic.MinWindowSize {
				errs = append(errs, prefix+": max_window_size must be >= min_window_size")
			}
			if ic.PredictShift < 0 {
				errs = append(errs, prefix+": predict_shift must not be negative")
			}
		}
	case domain.StrategyOTCArbitrage:
		if ic.MinEdge <= 0 {
			errs = append(errs, prefix+": min_edge must be positive")
		}
		if ic.MMEdge < 0 {
			errs = append(errs, prefix+": mm_edge must not be negative")
		}
		if ic.ExpStorageTime < 0 {
			errs = append(errs, prefix+": exp_storage_time must not be negative")
		}
	case domain.StrategyBasket:
		if ic.PremiumStd <= 0 {
			errs = append(errs, prefix+": premium_std must be positive")
		}
		if ic.MMSpread <= 0 {
			errs = append(errs, prefix+": mm_spread must be positive")
		}
		if len(ic.Constituents) == 0 {
			errs = append(errs, prefix+": basket requires at least one constituent")
		}
		for _, con := range ic.Constituents {
			if con.Symbol == "" {
				errs = append(errs, prefix+": constituent symbol must not be empty")
			}
			if con.PerBasket <= 0 {
				errs = append(errs, fmt.Sprintf("%s: constituent %s: per_basket must be positive", prefix, con.Symbol))
			}
			if con.PositionLimit <= 0 {
				errs = append(errs, fmt.Sprintf("%s: constituent %s: position_limit must be positive", prefix, con.Symbol))
			}
		}
	}
	return errs
}
