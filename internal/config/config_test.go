package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantrove/tickbot/internal/domain"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Instruments = []InstrumentConfig{
		{
			Symbol:        "AMETHYSTS",
			PositionLimit: 20,
			Strategy:      "fixed_mm",
			FairValue:     10000,
			SLInventory:   20,
			SLSpread:      1,
			MMSpread:      2,
			OrderSkew:     1,
		},
		{
			Symbol:        "ORCHIDS",
			PositionLimit: 100,
			StorageCost:   0.1,
			Strategy:      "otc_arbitrage",
			MinEdge:       1,
			MMEdge:        1.5,
		},
	}
	return cfg
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveLimit(t *testing.T) {
	cfg := validConfig()
	cfg.Instruments[0].PositionLimit = 0
	err := cfg.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "position_limit")
}

func TestValidateRejectsZeroPremiumStd(t *testing.T) {
	cfg := validConfig()
	cfg.Instruments = append(cfg.Instruments, InstrumentConfig{
		Symbol:        "GIFT_BASKET",
		PositionLimit: 60,
		Strategy:      "basket",
		MMSpread:      2,
		PremiumMean:   385,
		PremiumStd:    0,
		Constituents: []ConstituentConfig{
			{Symbol: "ROSES", PositionLimit: 60, PerBasket: 1},
		},
	})
	err := cfg.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "premium_std")
}

func TestValidateRejectsWindowInversion(t *testing.T) {
	cfg := validConfig()
	cfg.Instruments = append(cfg.Instruments, InstrumentConfig{
		Symbol:        "STARFRUIT",
		PositionLimit: 20,
		Strategy:      "regression_mm",
		MMSpread:      2,
		MinWindowSize: 10,
		MaxWindowSize: 5,
	})
	err := cfg.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "max_window_size")
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Instruments[0].PositionLimit = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mode")
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "position_limit")
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := validConfig()
	cfg.Instruments[0].Strategy = "momentum"
	err := cfg.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestValidateRejectsDuplicateSymbols(t *testing.T) {
	cfg := validConfig()
	cfg.Instruments = append(cfg.Instruments, cfg.Instruments[0])
	err := cfg.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestValidateRejectsRecoveryWithoutRedis(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Enabled = false
	cfg.Redis.RecoverRunID = "b2f9d1f7-2a4e-4c2f-8f64-7aa0d3a1c001"
	err := cfg.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "recover_run_id")
}

func TestValidateRejectsSecondArbitrageInstrument(t *testing.T) {
	cfg := validConfig()
	second := cfg.Instruments[1]
	second.Symbol = "TULIPS"
	cfg.Instruments = append(cfg.Instruments, second)

	err := cfg.Validate()
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "only one otc_arbitrage")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "replay"
log_level = "debug"

[replay]
input_path = "ticks.jsonl"

[[instruments]]
symbol = "AMETHYSTS"
position_limit = 20
strategy = "fixed_mm"
fair_value = 10000.0
sl_inventory = 20
sl_spread = 1
mm_spread = 2.0
order_skew = 1.0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "replay", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	// Defaults survive for sections the file does not mention.
	assert.Equal(t, int64(100), cfg.Engine.TickDuration)
	assert.Equal(t, ":8090", cfg.Server.Addr)
	require.Len(t, cfg.Instruments, 1)
	assert.Equal(t, "AMETHYSTS", cfg.Instruments[0].Symbol)
	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TICKBOT_MODE", "once")
	t.Setenv("TICKBOT_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("TICKBOT_POSTGRES_POOL_MAX_CONNS", "9")

	cfg := Defaults()
	applyEnvOverrides(&cfg)
	assert.Equal(t, "once", cfg.Mode)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 9, cfg.Postgres.PoolMaxConns)
}
