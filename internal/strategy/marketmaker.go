package strategy

import (
	"log/slog"
	"math"

	"github.com/quantrove/tickbot/internal/book"
	"github.com/quantrove/tickbot/internal/domain"
)

// MakerConfig holds the per-instrument market-making parameters.
type MakerConfig struct {
	// FairValue seeds the maker's reference price. Regression and basket
	// callers overwrite it via SetFairValue before running.
	FairValue float64
	// SLInventory is the stop-loss inventory band: scratching is only
	// active inside [-SLInventory, +SLInventory] and stop-loss only
	// triggers outside it.
	SLInventory int
	// SLSpread is how far from fair value a stop-loss fill may execute.
	SLSpread int
	// MMSpread is the half-spread for passive quoting around fair value.
	MMSpread float64
	// OrderSkew scales the extra quantity shaved off the inventory-heavy
	// side of the quote.
	OrderSkew float64
}

// MarketMaker runs the three market-making sub-strategies for one instrument
// on one tick. All sizing flows through the shared Ledger so the sub-strategy
// ordering dependency is explicit.
type MarketMaker struct {
	cfg    MakerConfig
	fair   float64
	feat   book.Features
	ledger *Ledger
	logger *slog.Logger
}

// NewMarketMaker creates a maker over the given tick's features. The fair
// value starts at cfg.FairValue.
func NewMarketMaker(inst domain.Instrument, feat book.Features, position int, cfg MakerConfig, logger *slog.Logger) *MarketMaker {
	return &MarketMaker{
		cfg:    cfg,
		fair:   cfg.FairValue,
		feat:   feat,
		ledger: NewLedger(inst.Symbol, inst.PositionLimit, position),
		logger: logger.With(slog.String("component", "market_maker"), slog.String("symbol", inst.Symbol)),
	}
}

// SetFairValue overrides the reference price, used by the regression and
// basket pricers after the maker is constructed.
func (m *MarketMaker) SetFairValue(v float64) { m.fair = v }

// FairValue returns the current reference price.
func (m *MarketMaker) FairValue() float64 { return m.fair }

// Ledger exposes the tick ledger for callers that interleave their own
// sub-strategies (basket, tests).
func (m *MarketMaker) Ledger() *Ledger { return m.ledger }

// Scratch takes resting orders priced at-or-better than the reference price,
// but only while the position sits inside the stop-loss band and only when
// there is at least one more level behind the touch, so the sole remaining
// resting quote is never consumed. With useMidVWAP the noisier fair value is
// replaced by the mid-VWAP as the crossing reference.
func (m *MarketMaker) Scratch(useMidVWAP bool) {
	reserve := m.fair
	if useMidVWAP {
		reserve = m.feat.MidVWAP
	}
	l := m.ledger
	if l.Position < -m.cfg.SLInventory || l.Position > m.cfg.SLInventory {
		return
	}

	if float64(m.feat.BestBid) >= reserve && m.feat.BidLevels >= 2 {
		// Sell into an over-priced best bid, bounded by its resting size
		// and the remaining short capacity.
		qty := min(max(-m.feat.BestBidQty, -l.Limit-min(l.Position, 0)), 0)
		l.Add(m.feat.BestBid, qty)
		if qty != 0 {
			m.logger.Debug("scratch sell", slog.Int("price", m.feat.BestBid), slog.Int("quantity", qty))
		}
	} else if float64(m.feat.BestAsk) <= reserve && m.feat.AskLevels >= 2 {
		// Buy an under-priced best ask, mirror of the sell case.
		qty := max(min(m.feat.BestAskQty, l.Limit-max(l.Position, 0)), 0)
		l.Add(m.feat.BestAsk, qty)
		if qty != 0 {
			m.logger.Debug("scratch buy", slog.Int("price", m.feat.BestAsk), slog.Int("quantity", qty))
		}
	}
}

// StopLoss liquidates toward the edge of the inventory band once the
// position has escaped it, but only when the touch is still within SLSpread
// of fair value; a market in free fall is not chased. With ignoreWorst the
// touch is skipped when it is also the last level on its side.
func (m *MarketMaker) StopLoss(ignoreWorst bool) {
	l := m.ledger
	minLevels := 1
	if ignoreWorst {
		minLevels = 2
	}

	if l.Position > m.cfg.SLInventory && float64(m.feat.BestBid) >= m.fair-float64(m.cfg.SLSpread) {
		if m.feat.BidLevels >= minLevels {
			qty := max(-m.feat.BestBidQty, -l.Position+m.cfg.SLInventory)
			l.Add(m.feat.BestBid, qty)
			if qty != 0 {
				m.logger.Debug("stop loss sell", slog.Int("price", m.feat.BestBid), slog.Int("quantity", qty))
			}
		}
	} else if l.Position < -m.cfg.SLInventory && float64(m.feat.BestAsk) <= m.fair+float64(m.cfg.SLSpread) {
		if m.feat.AskLevels >= minLevels {
			qty := min(m.feat.BestAskQty, -l.Position-m.cfg.SLInventory)
			l.Add(m.feat.BestAsk, qty)
			if qty != 0 {
				m.logger.Debug("stop loss buy", slog.Int("price", m.feat.BestAsk), slog.Int("quantity", qty))
			}
		}
	}
}

// AggressiveStopLoss is the basket variant: once outside the band it dumps
// inventory back toward the target level using the full resting volume at
// the worst price on the side, accepting a bad fill to guarantee the
// inventory comes under control.
func (m *MarketMaker) AggressiveStopLoss(target int) {
	l := m.ledger
	if l.Position > m.cfg.SLInventory {
		qty := max(-m.feat.BidVolume, target-l.Position)
		l.Add(m.feat.WorstBid, qty)
		if qty != 0 {
			m.logger.Debug("aggressive stop loss sell", slog.Int("price", m.feat.WorstBid), slog.Int("quantity", qty))
		}
	} else if l.Position < -m.cfg.SLInventory {
		qty := min(m.feat.AskVolume, -target-l.Position)
		l.Add(m.feat.WorstAsk, qty)
		if qty != 0 {
			m.logger.Debug("aggressive stop loss buy", slog.Int("price", m.feat.WorstAsk), slog.Int("quantity", qty))
		}
	}
}

// Quote posts the two-sided passive quote around fair value. Sizes start from
// the ledger's four-way capacity bound and are shrunk on the inventory-heavy
// side by the skew term; prices round outward so the quote never crosses the
// maker's own fair value.
func (m *MarketMaker) Quote() {
	l := m.ledger
	bidLimit := l.BidCapacity()
	askLimit := l.AskCapacity()

	bidSkew := int(math.Ceil(m.cfg.OrderSkew * float64(max(l.Expected, 0))))
	askSkew := int(math.Floor(m.cfg.OrderSkew * float64(min(l.Expected, 0))))
	bidQty := min(max(bidLimit-bidSkew, 0), bidLimit)
	askQty := max(min(askLimit-askSkew, 0), askLimit)

	bidPrice := int(math.Ceil(m.fair - m.cfg.MMSpread))
	askPrice := int(math.Floor(m.fair + m.cfg.MMSpread))
	l.Add(bidPrice, bidQty)
	l.Add(askPrice, askQty)
	m.logger.Debug("quote",
		slog.Int("bid_price", bidPrice), slog.Int("bid_quantity", bidQty),
		slog.Int("ask_price", askPrice), slog.Int("ask_quantity", askQty),
	)
}

// Run sequences the standard market-making tick: scratch, stop-loss, quote.
// The returned slice preserves emission order.
func (m *MarketMaker) Run() []domain.Order {
	m.Scratch(false)
	m.StopLoss(true)
	m.Quote()
	return m.ledger.Orders()
}
