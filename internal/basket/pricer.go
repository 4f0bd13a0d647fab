// Package basket prices a composite instrument off its constituents' net
// asset value and a mean-reverting premium signal, then drives the shared
// market-making machinery with basket-specific parameters.
package basket

import (
	"log/slog"
	"math"

	"github.com/quantrove/tickbot/internal/book"
	"github.com/quantrove/tickbot/internal/domain"
	"github.com/quantrove/tickbot/internal/strategy"
)

// Config holds the basket strategy parameters.
type Config struct {
	// PremiumMean / PremiumStd are the long-run premium statistics used to
	// normalize the current premium into a z-score. PremiumStd must be
	// positive; config validation rejects zero before the engine is built.
	PremiumMean float64
	PremiumStd  float64
	// LinearSensitivity (alpha) and QuadraticSensitivity (beta) scale the
	// mean-reversion correction linearly and quadratically in the z-score.
	LinearSensitivity    float64
	QuadraticSensitivity float64
	// SLTarget is the resting inventory level the aggressive stop loss
	// liquidates toward. It need not be zero.
	SLTarget int

	Maker strategy.MakerConfig
}

// Constituent pairs a basket member with its book features this tick.
type Constituent struct {
	Instrument domain.Instrument
	Features   book.Features
}

// Pricer evaluates one basket instrument for one tick.
type Pricer struct {
	cfg     Config
	maker   *strategy.MarketMaker
	nav     float64
	premium float64
	zScore  float64
	logger  *slog.Logger
}

// New builds a basket pricer. The basket's effective position limit is the
// largest whole number of baskets coverable by every constituent's own limit
// given its units-per-basket ratio, further capped by the basket's configured
// limit. The maker's fair value starts at the basket mid-VWAP and is shifted
// by the premium correction in Run.
func New(inst domain.Instrument, feat book.Features, position int, constituents []Constituent, cfg Config, logger *slog.Logger) *Pricer {
	limit := inst.PositionLimit
	for _, c := range constituents {
		if c.Instrument.PerBasket <= 0 {
			continue
		}
		pairs := int(math.Floor(float64(c.Instrument.PositionLimit) / c.Instrument.PerBasket))
		if pairs < limit {
			limit = pairs
		}
	}
	capped := inst
	capped.PositionLimit = limit

	makerCfg := cfg.Maker
	makerCfg.FairValue = feat.MidVWAP
	p := &Pricer{
		cfg:    cfg,
		maker:  strategy.NewMarketMaker(capped, feat, position, makerCfg, logger),
		logger: logger.With(slog.String("component", "basket"), slog.String("symbol", inst.Symbol)),
	}

	for _, c := range constituents {
		p.nav += c.Instrument.PerBasket * c.Features.MidVWAP
	}
	p.premium = feat.MidVWAP - p.nav
	p.zScore = (p.premium - cfg.PremiumMean) / cfg.PremiumStd
	return p
}

// NAV returns the constituents' net asset value for this tick.
func (p *Pricer) NAV() float64 { return p.nav }

// Premium returns basket mid-VWAP minus NAV.
func (p *Pricer) Premium() float64 { return p.premium }

// ZScore returns the premium normalized by the long-run statistics.
func (p *Pricer) ZScore() float64 { return p.zScore }

// Maker exposes the underlying market maker, mainly for tests.
func (p *Pricer) Maker() *strategy.MarketMaker { return p.maker }

// PriceFairValue shifts the maker's fair value opposite the demeaned premium,
// with magnitude growing linearly and quadratically in the z-score. A premium
// sitting exactly at its long-run mean leaves the fair value untouched.
func (p *Pricer) PriceFairValue() {
	demeaned := p.premium - p.cfg.PremiumMean
	scale := p.cfg.LinearSensitivity*math.Abs(p.zScore) + p.cfg.QuadraticSensitivity*p.zScore*p.zScore
	shift := -demeaned * scale
	p.maker.SetFairValue(p.maker.FairValue() + shift)
	p.logger.Debug("basket fair value",
		slog.Float64("nav", p.nav),
		slog.Float64("premium", p.premium),
		slog.Float64("z_score", p.zScore),
		slog.Float64("fair_value", p.maker.FairValue()),
	)
}

// Run sequences the basket tick: price the fair value, scratch against the
// mid-VWAP (basket quotes are noisy, so the raw fair value is too twitchy a
// crossing reference), run the aggressive stop loss, then quote.
func (p *Pricer) Run() []domain.Order {
	p.PriceFairValue()
	p.maker.Scratch(true)
	p.maker.AggressiveStopLoss(p.cfg.SLTarget)
	p.maker.Quote()
	return p.maker.Ledger().Orders()
}
