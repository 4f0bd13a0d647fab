package strategy

import (
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantrove/tickbot/internal/book"
	"github.com/quantrove/tickbot/internal/domain"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func amethysts() domain.Instrument {
	return domain.Instrument{Symbol: "AMETHYSTS", PositionLimit: 20}
}

func makerConfig() MakerConfig {
	return MakerConfig{
		FairValue:   10000,
		SLInventory: 10,
		SLSpread:    1,
		MMSpread:    2,
		OrderSkew:   1.0,
	}
}

func features(t *testing.T, snap domain.BookSnapshot) book.Features {
	t.Helper()
	f, err := book.Compute(snap)
	require.NoError(t, err)
	return f
}

func balancedBook() domain.BookSnapshot {
	return domain.BookSnapshot{
		Symbol: "AMETHYSTS",
		Bids: []domain.PriceLevel{
			{Price: 9998, Quantity: 10},
			{Price: 9996, Quantity: 20},
		},
		Asks: []domain.PriceLevel{
			{Price: 10002, Quantity: 10},
			{Price: 10004, Quantity: 20},
		},
	}
}

func TestScratchSellsOverpricedBid(t *testing.T) {
	snap := balancedBook()
	snap.Bids[0] = domain.PriceLevel{Price: 10001, Quantity: 5}

	m := NewMarketMaker(amethysts(), features(t, snap), 0, makerConfig(), testLogger)
	m.Scratch(false)

	orders := m.Ledger().Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.Order{Symbol: "AMETHYSTS", Price: 10001, Quantity: -5}, orders[0])
	assert.Equal(t, -5, m.Ledger().Expected)
}

func TestScratchBuysUnderpricedAsk(t *testing.T) {
	snap := balancedBook()
	snap.Asks[0] = domain.PriceLevel{Price: 9999, Quantity: 7}

	m := NewMarketMaker(amethysts(), features(t, snap), -3, makerConfig(), testLogger)
	m.Scratch(false)

	orders := m.Ledger().Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.Order{Symbol: "AMETHYSTS", Price: 9999, Quantity: 7}, orders[0])
}

func TestScratchInactiveOutsideBand(t *testing.T) {
	snap := balancedBook()
	snap.Bids[0] = domain.PriceLevel{Price: 10001, Quantity: 5}

	m := NewMarketMaker(amethysts(), features(t, snap), 11, makerConfig(), testLogger)
	m.Scratch(false)
	assert.Empty(t, m.Ledger().Orders())
}

func TestScratchRequiresDepthBehindTouch(t *testing.T) {
	snap := balancedBook()
	snap.Bids = []domain.PriceLevel{{Price: 10001, Quantity: 5}} // sole level
	m := NewMarketMaker(amethysts(), features(t, snap), 0, makerConfig(), testLogger)
	m.Scratch(false)
	assert.Empty(t, m.Ledger().Orders())
}

func TestScratchBoundedByShortCapacity(t *testing.T) {
	snap := balancedBook()
	snap.Bids[0] = domain.PriceLevel{Price: 10001, Quantity: 50}

	// Already short 8: only 12 more can be sold against the 20 limit.
	m := NewMarketMaker(amethysts(), features(t, snap), -8, makerConfig(), testLogger)
	m.Scratch(false)

	orders := m.Ledger().Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, -12, orders[0].Quantity)
}

func TestScratchUsesMidVWAPReference(t *testing.T) {
	snap := balancedBook()
	m := NewMarketMaker(amethysts(), features(t, snap), 0, makerConfig(), testLogger)
	// With a depressed fair value the best bid would look over-priced, but
	// against the mid-VWAP reference it is not.
	m.SetFairValue(9000)
	m.Scratch(true)
	assert.Empty(t, m.Ledger().Orders())

	m = NewMarketMaker(amethysts(), features(t, snap), 0, makerConfig(), testLogger)
	m.SetFairValue(9000)
	m.Scratch(false)
	assert.NotEmpty(t, m.Ledger().Orders())
}

func TestStopLossSellTowardBandEdge(t *testing.T) {
	snap := balancedBook()
	snap.Bids[0] = domain.PriceLevel{Price: 9999, Quantity: 30}

	m := NewMarketMaker(amethysts(), features(t, snap), 15, makerConfig(), testLogger)
	m.StopLoss(true)

	orders := m.Ledger().Orders()
	require.Len(t, orders, 1)
	// Liquidates back to the band edge (+10), not to flat.
	assert.Equal(t, domain.Order{Symbol: "AMETHYSTS", Price: 9999, Quantity: -5}, orders[0])
	assert.Equal(t, 10, m.Ledger().Expected)
}

func TestStopLossBoundedByRestingQuantity(t *testing.T) {
	snap := balancedBook()
	snap.Bids[0] = domain.PriceLevel{Price: 9999, Quantity: 2}

	m := NewMarketMaker(amethysts(), features(t, snap), 15, makerConfig(), testLogger)
	m.StopLoss(true)

	orders := m.Ledger().Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, -2, orders[0].Quantity)
}

func TestStopLossSpreadGuard(t *testing.T) {
	snap := balancedBook()
	snap.Bids[0] = domain.PriceLevel{Price: 9998, Quantity: 30} // 2 below fair, spread allows 1

	m := NewMarketMaker(amethysts(), features(t, snap), 15, makerConfig(), testLogger)
	m.StopLoss(true)
	assert.Empty(t, m.Ledger().Orders())
}

func TestStopLossBuyCoversShort(t *testing.T) {
	snap := balancedBook()
	snap.Asks[0] = domain.PriceLevel{Price: 10001, Quantity: 30}

	m := NewMarketMaker(amethysts(), features(t, snap), -14, makerConfig(), testLogger)
	m.StopLoss(true)

	orders := m.Ledger().Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, domain.Order{Symbol: "AMETHYSTS", Price: 10001, Quantity: 4}, orders[0])
}

func TestAggressiveStopLossUsesWorstPriceAndFullVolume(t *testing.T) {
	snap := balancedBook()
	m := NewMarketMaker(amethysts(), features(t, snap), 18, makerConfig(), testLogger)
	m.AggressiveStopLoss(0)

	orders := m.Ledger().Orders()
	require.Len(t, orders, 1)
	// Target 0 wants -18; full bid volume is 30, so the order is -18 at the
	// worst bid.
	assert.Equal(t, domain.Order{Symbol: "AMETHYSTS", Price: 9996, Quantity: -18}, orders[0])
}

func TestAggressiveStopLossBoundedBySideVolume(t *testing.T) {
	snap := balancedBook()
	snap.Bids = []domain.PriceLevel{{Price: 9998, Quantity: 4}}
	m := NewMarketMaker(amethysts(), features(t, snap), 18, makerConfig(), testLogger)
	m.AggressiveStopLoss(0)

	orders := m.Ledger().Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, -4, orders[0].Quantity)
}

func TestQuoteSymmetricFlat(t *testing.T) {
	m := NewMarketMaker(amethysts(), features(t, balancedBook()), 0, makerConfig(), testLogger)
	m.Quote()

	orders := m.Ledger().Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, domain.Order{Symbol: "AMETHYSTS", Price: 9998, Quantity: 20}, orders[0])
	assert.Equal(t, domain.Order{Symbol: "AMETHYSTS", Price: 10002, Quantity: -20}, orders[1])
}

func TestQuoteNeverCrossesFairValue(t *testing.T) {
	fair := 10000.7
	cfg := makerConfig()
	cfg.FairValue = fair
	m := NewMarketMaker(amethysts(), features(t, balancedBook()), 0, cfg, testLogger)
	m.Quote()

	orders := m.Ledger().Orders()
	require.Len(t, orders, 2)
	for _, o := range orders {
		if o.IsBuy() {
			assert.LessOrEqual(t, float64(o.Price), fair)
		} else {
			assert.GreaterOrEqual(t, float64(o.Price), fair)
		}
	}
}

func TestQuoteSkewShrinksHeavySideOnly(t *testing.T) {
	m := NewMarketMaker(amethysts(), features(t, balancedBook()), 10, makerConfig(), testLogger)
	m.Quote()

	orders := m.Ledger().Orders()
	// Long 10 with skew 1.0 wipes out the bid entirely; only the ask quote
	// survives at the raw-limit cap.
	require.Len(t, orders, 1)
	assert.True(t, orders[0].IsSell())
	assert.Equal(t, -20, orders[0].Quantity)
}

func TestQuoteSkewRounding(t *testing.T) {
	cfg := makerConfig()
	cfg.OrderSkew = 0.5
	m := NewMarketMaker(amethysts(), features(t, balancedBook()), 3, cfg, testLogger)
	m.Quote()

	orders := m.Ledger().Orders()
	require.Len(t, orders, 2)
	// bid capacity min(20,17,17,17)=17, skew ceil(0.5*3)=2 -> 15
	assert.Equal(t, 15, orders[0].Quantity)
	// ask capacity max(-20,-23,-23,-23)=-20, skew floor(0.5*min(3,0))=0
	assert.Equal(t, -20, orders[1].Quantity)
}

func TestRunFullFillStaysWithinLimit(t *testing.T) {
	for _, pos := range []int{-20, -15, -8, 0, 7, 12, 20} {
		snap := balancedBook()
		snap.Bids[0] = domain.PriceLevel{Price: 10001, Quantity: 9}

		m := NewMarketMaker(amethysts(), features(t, snap), pos, makerConfig(), testLogger)
		orders := m.Run()

		var sumBuy, sumSell int
		for _, o := range orders {
			if o.IsBuy() {
				sumBuy += o.Quantity
			} else {
				sumSell += o.Quantity
			}
		}
		// Even if every buy (or every sell) fills in full, the position
		// cannot leave [-limit, +limit].
		assert.LessOrEqual(t, pos+sumBuy, 20, "pos=%d", pos)
		assert.GreaterOrEqual(t, pos+sumSell, -20, "pos=%d", pos)
		assert.LessOrEqual(t, int(math.Abs(float64(m.Ledger().Expected))), 20, "pos=%d", pos)
	}
}
