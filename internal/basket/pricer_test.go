package basket

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantrove/tickbot/internal/book"
	"github.com/quantrove/tickbot/internal/domain"
	"github.com/quantrove/tickbot/internal/strategy"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// flatBook builds a two-level book whose mid-VWAP is exactly mid.
func flatBook(symbol string, mid int) domain.BookSnapshot {
	return domain.BookSnapshot{
		Symbol: symbol,
		Bids: []domain.PriceLevel{
			{Price: mid - 2, Quantity: 10},
			{Price: mid - 4, Quantity: 10},
		},
		Asks: []domain.PriceLevel{
			{Price: mid + 2, Quantity: 10},
			{Price: mid + 4, Quantity: 10},
		},
	}
}

func feat(t *testing.T, snap domain.BookSnapshot) book.Features {
	t.Helper()
	f, err := book.Compute(snap)
	require.NoError(t, err)
	return f
}

func basketConfig() Config {
	return Config{
		PremiumMean:          385,
		PremiumStd:           75,
		LinearSensitivity:    1.0,
		QuadraticSensitivity: 0.0,
		SLTarget:             0,
		Maker: strategy.MakerConfig{
			SLInventory: 57,
			SLSpread:    1,
			MMSpread:    2,
			OrderSkew:   1.0,
		},
	}
}

func giftBasket() domain.Instrument {
	return domain.Instrument{Symbol: "GIFT_BASKET", PositionLimit: 60}
}

func constituents(t *testing.T) []Constituent {
	return []Constituent{
		{
			Instrument: domain.Instrument{Symbol: "CHOCOLATE", PositionLimit: 250, PerBasket: 4},
			Features:   feat(t, flatBook("CHOCOLATE", 8000)),
		},
		{
			Instrument: domain.Instrument{Symbol: "STRAWBERRIES", PositionLimit: 350, PerBasket: 6},
			Features:   feat(t, flatBook("STRAWBERRIES", 4000)),
		},
		{
			Instrument: domain.Instrument{Symbol: "ROSES", PositionLimit: 60, PerBasket: 1},
			Features:   feat(t, flatBook("ROSES", 14000)),
		},
	}
}

func TestNAVAndPremium(t *testing.T) {
	// NAV = 4*8000 + 6*4000 + 1*14000 = 70000
	nav := 70000.0
	snap := flatBook("GIFT_BASKET", 70385)
	p := New(giftBasket(), feat(t, snap), 0, constituents(t), basketConfig(), testLogger)

	assert.InDelta(t, nav, p.NAV(), 1e-9)
	assert.InDelta(t, 385, p.Premium(), 1e-9)
	assert.InDelta(t, 0, p.ZScore(), 1e-9)
}

func TestZeroCorrectionAtMeanPremium(t *testing.T) {
	snap := flatBook("GIFT_BASKET", 70385)
	f := feat(t, snap)
	p := New(giftBasket(), f, 0, constituents(t), basketConfig(), testLogger)
	p.PriceFairValue()
	// Premium exactly at its long-run mean: fair value stays at mid-VWAP.
	assert.InDelta(t, f.MidVWAP, p.Maker().FairValue(), 1e-9)
}

func TestCorrectionOpposesPremiumDrift(t *testing.T) {
	// Premium 460 = mean + 1 std: demeaned 75, |z| = 1, shift = -75.
	snap := flatBook("GIFT_BASKET", 70460)
	f := feat(t, snap)
	p := New(giftBasket(), f, 0, constituents(t), basketConfig(), testLogger)
	p.PriceFairValue()
	assert.InDelta(t, f.MidVWAP-75, p.Maker().FairValue(), 1e-9)

	// Quadratic term adds beta*z^2 on top.
	cfg := basketConfig()
	cfg.QuadraticSensitivity = 0.5
	p = New(giftBasket(), f, 0, constituents(t), cfg, testLogger)
	p.PriceFairValue()
	assert.InDelta(t, f.MidVWAP-75*1.5, p.Maker().FairValue(), 1e-9)
}

func TestEffectiveLimitFromConstituents(t *testing.T) {
	cons := constituents(t)
	// ROSES 60/1 = 60, CHOCOLATE 250/4 = 62, STRAWBERRIES 350/6 = 58.
	p := New(giftBasket(), feat(t, flatBook("GIFT_BASKET", 70385)), 0, cons, basketConfig(), testLogger)
	assert.Equal(t, 58, p.Maker().Ledger().Limit)

	// The basket's own limit caps the result when it is tighter.
	tight := giftBasket()
	tight.PositionLimit = 30
	p = New(tight, feat(t, flatBook("GIFT_BASKET", 70385)), 0, cons, basketConfig(), testLogger)
	assert.Equal(t, 30, p.Maker().Ledger().Limit)
}

func TestRunEmitsQuotesWithinLimit(t *testing.T) {
	snap := flatBook("GIFT_BASKET", 70385)
	p := New(giftBasket(), feat(t, snap), 0, constituents(t), basketConfig(), testLogger)
	orders := p.Run()
	require.NotEmpty(t, orders)

	var sumBuy, sumSell int
	for _, o := range orders {
		if o.IsBuy() {
			sumBuy += o.Quantity
		} else {
			sumSell += o.Quantity
		}
	}
	assert.LessOrEqual(t, sumBuy, 58)
	assert.GreaterOrEqual(t, sumSell, -58)
}

func TestRunAggressiveStopLoss(t *testing.T) {
	snap := flatBook("GIFT_BASKET", 70385)
	f := feat(t, snap)
	// Position beyond the 57 band triggers the aggressive variant: worst
	// bid, liquidation toward the zero target.
	p := New(giftBasket(), f, 58, constituents(t), basketConfig(), testLogger)
	orders := p.Run()
	require.NotEmpty(t, orders)
	assert.Equal(t, f.WorstBid, orders[0].Price)
	assert.Equal(t, -20, orders[0].Quantity) // full bid volume, less than the 58 to target
}
