package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quantrove/tickbot/internal/config"
	"github.com/quantrove/tickbot/internal/domain"
)

func TestBuildSpecsMapsStrategyParameters(t *testing.T) {
	cfg := config.Defaults()
	cfg.Engine.TickDuration = 100
	cfg.Instruments = []config.InstrumentConfig{
		{
			Symbol:        "AMETHYSTS",
			PositionLimit: 20,
			Strategy:      "fixed_mm",
			FairValue:     10000,
			SLInventory:   10,
			SLSpread:      2,
			MMSpread:      4,
			OrderSkew:     0.5,
		},
		{
			Symbol:        "STARFRUIT",
			PositionLimit: 20,
			Strategy:      "regression_mm",
			MinWindowSize: 5,
			MaxWindowSize: 10,
			PredictShift:  1,
			SLInventory:   10,
			SLSpread:      2,
			MMSpread:      4,
			OrderSkew:     0.5,
		},
		{
			Symbol:        "GIFT_BASKET",
			PositionLimit: 60,
			Strategy:      "basket",
			PremiumMean:   379.5,
			PremiumStd:    76.4,
			SLInventory:   30,
			SLSpread:      3,
			MMSpread:      5,
			OrderSkew:     1,
			Constituents: []config.ConstituentConfig{
				{Symbol: "CHOCOLATE", PositionLimit: 250, PerBasket: 4},
				{Symbol: "STRAWBERRIES", PositionLimit: 350, PerBasket: 6},
				{Symbol: "ROSES", PositionLimit: 60, PerBasket: 1},
			},
		},
	}

	specs, err := BuildSpecs(&cfg)
	require.NoError(t, err)
	require.Len(t, specs, 3)

	require.Equal(t, domain.StrategyFixedMM, specs[0].Kind)
	require.Equal(t, 10000.0, specs[0].Maker.FairValue)
	require.Equal(t, 10, specs[0].Maker.SLInventory)

	require.Equal(t, domain.StrategyRegressionMM, specs[1].Kind)
	require.Equal(t, 5, specs[1].Regression.MinWindow)
	require.Equal(t, int64(100), specs[1].Regression.TickDuration)

	require.Equal(t, domain.StrategyBasket, specs[2].Kind)
	require.Equal(t, 379.5, specs[2].Basket.PremiumMean)
	require.Equal(t, specs[2].Maker, specs[2].Basket.Maker)
	require.Len(t, specs[2].Constituents, 3)
	require.Equal(t, 4.0, specs[2].Constituents[0].PerBasket)
}

func TestBuildSpecsRejectsUnknownStrategy(t *testing.T) {
	cfg := config.Defaults()
	cfg.Instruments = []config.InstrumentConfig{
		{Symbol: "X", PositionLimit: 1, Strategy: "martingale"},
	}

	_, err := BuildSpecs(&cfg)
	require.ErrorIs(t, err, domain.ErrInvalidConfig)
}
