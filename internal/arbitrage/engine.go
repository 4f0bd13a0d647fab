// Package arbitrage trades exchange order-book levels against an external
// (OTC) reference quote, quotes a safety margin around the arbitrage-free
// price, and converts residual inventory back through the external venue
// every tick.
package arbitrage

import (
	"log/slog"
	"math"

	"github.com/quantrove/tickbot/internal/book"
	"github.com/quantrove/tickbot/internal/domain"
	"github.com/quantrove/tickbot/internal/strategy"
)

// Config holds the arbitrage strategy parameters.
type Config struct {
	// ExpStorageTime is the expected number of ticks long inventory is held
	// before conversion; it scales the instrument's per-unit storage cost
	// into the effective export cost.
	ExpStorageTime float64
	// MinEdge is the minimum per-unit profit required to take a level.
	MinEdge float64
	// MMEdge is the safety margin added around the arbitrage-free price
	// when quoting passively.
	MMEdge float64
}

// Engine evaluates one convertible instrument for one tick.
type Engine struct {
	cfg    Config
	snap   domain.BookSnapshot
	feat   book.Features
	quote  domain.ExternalQuote
	ledger *strategy.Ledger
	logger *slog.Logger

	// Effective one-way costs of moving inventory through the external
	// venue. Exports additionally pay storage for the expected holding time.
	costImport float64
	costExport float64
}

// New creates an arbitrage engine for the given tick.
func New(inst domain.Instrument, snap domain.BookSnapshot, feat book.Features, quote domain.ExternalQuote, position int, cfg Config, logger *slog.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		snap:       snap,
		feat:       feat,
		quote:      quote,
		ledger:     strategy.NewLedger(inst.Symbol, inst.PositionLimit, position),
		logger:     logger.With(slog.String("component", "arbitrage"), slog.String("symbol", inst.Symbol)),
		costImport: quote.TransportFee + quote.ImportTariff,
		costExport: quote.TransportFee + quote.ExportTariff + cfg.ExpStorageTime*inst.StorageCost,
	}
}

// Ledger exposes the tick ledger, mainly for tests.
func (e *Engine) Ledger() *strategy.Ledger { return e.ledger }

// LongEdge is the per-unit profit of buying the best exchange ask and
// selling it to the external bid, net of effective export cost.
func (e *Engine) LongEdge() float64 {
	return e.quote.Bid - float64(e.feat.BestAsk) - e.costExport
}

// ShortEdge is the per-unit profit of selling the best exchange bid and
// buying it back from the external ask, net of import cost.
func (e *Engine) ShortEdge() float64 {
	return float64(e.feat.BestBid) - e.quote.Ask - e.costImport
}

// Take walks exchange levels outward from the best on the side with the
// larger edge, consuming every level whose own edge still clears MinEdge.
// Levels are sorted by price, so edges are monotonically non-increasing away
// from the touch and the walk stops at the first level that fails.
func (e *Engine) Take() {
	long, short := e.LongEdge(), e.ShortEdge()
	switch {
	case long >= short && long >= e.cfg.MinEdge:
		e.takeLong()
	case short > long && short >= e.cfg.MinEdge:
		e.takeShort()
	}
}

func (e *Engine) takeLong() {
	l := e.ledger
	for _, lvl := range e.snap.Asks {
		if e.quote.Bid-float64(lvl.Price)-e.costExport < e.cfg.MinEdge {
			break
		}
		qty := max(min(lvl.Quantity, l.Limit-max(l.Expected, 0)), 0)
		if qty == 0 {
			break
		}
		l.Add(lvl.Price, qty)
		e.logger.Debug("long arbitrage take", slog.Int("price", lvl.Price), slog.Int("quantity", qty))
	}
}

func (e *Engine) takeShort() {
	l := e.ledger
	for _, lvl := range e.snap.Bids {
		if float64(lvl.Price)-e.quote.Ask-e.costImport < e.cfg.MinEdge {
			break
		}
		qty := min(max(-lvl.Quantity, -l.Limit-min(l.Expected, 0)), 0)
		if qty == 0 {
			break
		}
		l.Add(lvl.Price, qty)
		e.logger.Debug("short arbitrage take", slog.Int("price", lvl.Price), slog.Int("quantity", qty))
	}
}

// Quote posts a passive two-sided quote around the arbitrage-free price: the
// bid low enough that selling the fill back externally clears MMEdge, the
// ask high enough that covering externally clears MMEdge. Sizing uses the
// same four-way capacity bound as the market maker.
func (e *Engine) Quote() {
	l := e.ledger
	bidQty := l.BidCapacity()
	askQty := l.AskCapacity()

	bidArbFree := e.quote.Bid - e.costExport
	askArbFree := e.quote.Ask + e.costImport
	bidPrice := int(math.Floor(bidArbFree - e.cfg.MMEdge))
	askPrice := int(math.Ceil(askArbFree + e.cfg.MMEdge))
	l.Add(bidPrice, bidQty)
	l.Add(askPrice, askQty)
	e.logger.Debug("arbitrage quote",
		slog.Int("bid_price", bidPrice), slog.Int("bid_quantity", bidQty),
		slog.Int("ask_price", askPrice), slog.Int("ask_quantity", askQty),
	)
}

// Convert returns the conversion request that closes the entire exchange
// position through the external venue this tick. The engine deliberately
// never carries exchange inventory across ticks.
func (e *Engine) Convert() int {
	return -e.ledger.Position
}

// Run sequences the arbitrage tick: take profitable levels, quote the safety
// margin, convert the residual position. It returns the emitted orders and
// the conversion request.
func (e *Engine) Run() ([]domain.Order, int) {
	e.Take()
	e.Quote()
	return e.ledger.Orders(), e.Convert()
}
