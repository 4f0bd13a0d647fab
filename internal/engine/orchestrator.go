// Package engine runs the per-tick strategy orchestration: it fans one host
// snapshot out to the configured instrument strategies, collects their
// orders, and carries the rolling price state to the next tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quantrove/tickbot/internal/arbitrage"
	"github.com/quantrove/tickbot/internal/basket"
	"github.com/quantrove/tickbot/internal/book"
	"github.com/quantrove/tickbot/internal/domain"
	"github.com/quantrove/tickbot/internal/fairvalue"
	"github.com/quantrove/tickbot/internal/state"
	"github.com/quantrove/tickbot/internal/strategy"
)

// InstrumentSpec is the fully-resolved static configuration for one
// instrument: which strategy kind runs it and every parameter that strategy
// needs. Specs are built once at startup from the validated config.
type InstrumentSpec struct {
	Instrument domain.Instrument
	Kind       domain.StrategyKind

	Maker      strategy.MakerConfig
	Regression fairvalue.RegressionConfig
	Arbitrage  arbitrage.Config
	Basket     basket.Config

	// Constituents lists a basket's members in NAV summation order. Members
	// are observed for pricing only, never traded directly, so they are
	// plain instruments rather than specs of their own.
	Constituents []domain.Instrument
}

// Orchestrator evaluates every configured instrument once per tick. It is
// single-threaded by design: each tick is one pure computation over the
// host-supplied snapshot plus the carried rolling state.
type Orchestrator struct {
	specs    []InstrumentSpec
	bySymbol map[string]*InstrumentSpec
	observed map[string]bool
	models   map[string]*fairvalue.Regression
	runID    string
	logger   *slog.Logger
	now      func() time.Time
}

// New validates cross-references between specs and builds the orchestrator.
func New(specs []InstrumentSpec, logger *slog.Logger) (*Orchestrator, error) {
	o := &Orchestrator{
		specs:    specs,
		bySymbol: make(map[string]*InstrumentSpec, len(specs)),
		observed: make(map[string]bool),
		models:   make(map[string]*fairvalue.Regression),
		runID:    uuid.NewString(),
		logger:   logger.With(slog.String("component", "orchestrator")),
		now:      time.Now,
	}
	for i := range specs {
		spec := &specs[i]
		sym := spec.Instrument.Symbol
		if _, dup := o.bySymbol[sym]; dup {
			return nil, fmt.Errorf("engine: duplicate instrument %q: %w", sym, domain.ErrInvalidConfig)
		}
		o.bySymbol[sym] = spec
		if spec.Kind == domain.StrategyRegressionMM {
			o.models[sym] = fairvalue.NewRegression(spec.Regression)
		}
	}
	arbSeen := ""
	for _, spec := range specs {
		// The tick result holds one conversion count, so a second OTC
		// instrument would overwrite the first's conversions.
		if spec.Kind == domain.StrategyOTCArbitrage {
			if arbSeen != "" {
				return nil, fmt.Errorf("engine: otc_arbitrage configured for both %s and %s, only one allowed: %w",
					arbSeen, spec.Instrument.Symbol, domain.ErrInvalidConfig)
			}
			arbSeen = spec.Instrument.Symbol
		}
		if spec.Kind == domain.StrategyBasket && len(spec.Constituents) == 0 {
			return nil, fmt.Errorf("engine: basket %s has no constituents: %w", spec.Instrument.Symbol, domain.ErrInvalidConfig)
		}
		for _, c := range spec.Constituents {
			if c.PerBasket <= 0 {
				return nil, fmt.Errorf("engine: basket %s constituent %q has no per-basket ratio: %w",
					spec.Instrument.Symbol, c.Symbol, domain.ErrInvalidConfig)
			}
			if c.PositionLimit <= 0 {
				return nil, fmt.Errorf("engine: basket %s constituent %q has non-positive limit: %w",
					spec.Instrument.Symbol, c.Symbol, domain.ErrInvalidConfig)
			}
			o.observed[c.Symbol] = true
		}
	}
	return o, nil
}

// RunID identifies this engine session across ticks.
func (o *Orchestrator) RunID() string { return o.runID }

// RunTick computes the full order set for one tick. It never fails: every
// per-instrument condition (missing book, empty side, missing quote, corrupt
// carried state) is recovered locally and surfaces only in the decision
// record, so the host always receives a usable, possibly empty, result.
func (o *Orchestrator) RunTick(ctx context.Context, in domain.TickInput) (domain.TickResult, domain.TickRecord) {
	carried, err := state.Decode(in.CarriedState)
	switch {
	case err != nil:
		// Truncated or garbled state after the first tick: informational,
		// the rolling windows restart empty.
		o.logger.WarnContext(ctx, "carried state unreadable, resetting rolling state",
			slog.Int64("tick", in.Tick),
			slog.String("error", err.Error()),
		)
	case len(in.CarriedState) == 0 && in.Tick > 0:
		// An empty blob is normal on tick 0 only; later it means the host
		// lost the echo.
		o.logger.InfoContext(ctx, "carried state absent after first tick, starting with empty history",
			slog.Int64("tick", in.Tick),
		)
	}

	result := domain.TickResult{Orders: make(map[string][]domain.Order, len(o.specs))}
	record := domain.TickRecord{
		ID:        uuid.NewString(),
		RunID:     o.runID,
		Tick:      in.Tick,
		CreatedAt: o.now(),
	}

	for i := range o.specs {
		spec := &o.specs[i]
		decision := o.evaluate(ctx, spec, in, carried, &result)
		record.Decisions = append(record.Decisions, decision)
		if len(decision.Orders) > 0 {
			result.Orders[spec.Instrument.Symbol] = decision.Orders
		}
		if spec.Kind == domain.StrategyOTCArbitrage {
			if q, ok := in.Quotes[spec.Instrument.Symbol]; ok {
				record.Sunlight = q.Sunlight
				record.Humidity = q.Humidity
			}
		}
	}
	record.Conversions = result.Conversions

	for sym := range in.Books {
		if _, ok := o.bySymbol[sym]; ok || o.observed[sym] {
			continue
		}
		o.logger.DebugContext(ctx, "ignoring book for unconfigured instrument",
			slog.Int64("tick", in.Tick),
			slog.String("symbol", sym),
			slog.String("reason", domain.ErrUnknownInstrument.Error()),
		)
	}

	blob, err := state.Encode(carried)
	if err != nil {
		// Should be unreachable for plain float windows; fall back to the
		// inbound blob so the host keeps echoing something decodable.
		o.logger.ErrorContext(ctx, "carried state encode failed", slog.String("error", err.Error()))
		blob = in.CarriedState
	}
	result.CarriedState = blob
	return result, record
}

// evaluate runs one instrument's strategy and reports the decision. A panic
// inside a strategy is contained here so one bad instrument cannot take down
// the tick.
func (o *Orchestrator) evaluate(ctx context.Context, spec *InstrumentSpec, in domain.TickInput, carried *state.Carried, result *domain.TickResult) (decision domain.InstrumentDecision) {
	sym := spec.Instrument.Symbol
	decision = domain.InstrumentDecision{
		Symbol:   sym,
		Strategy: string(spec.Kind),
		Position: in.Positions[sym],
	}
	defer func() {
		if r := recover(); r != nil {
			o.logger.ErrorContext(ctx, "strategy panic recovered",
				slog.String("symbol", sym),
				slog.Any("panic", r),
			)
			decision.Orders = nil
			decision.Skipped = true
			decision.SkipReason = fmt.Sprintf("panic: %v", r)
		}
	}()

	snap, ok := in.Books[sym]
	if !ok {
		decision.Skipped = true
		decision.SkipReason = "no book snapshot"
		return decision
	}
	feat, err := book.Compute(snap)
	if err != nil {
		if !errors.Is(err, domain.ErrNoLiquidity) {
			o.logger.WarnContext(ctx, "book features failed", slog.String("symbol", sym), slog.String("error", err.Error()))
		}
		decision.Skipped = true
		decision.SkipReason = "no liquidity"
		return decision
	}
	decision.MidVWAP = feat.MidVWAP
	position := in.Positions[sym]

	switch spec.Kind {
	case domain.StrategyFixedMM:
		maker := strategy.NewMarketMaker(spec.Instrument, feat, position, spec.Maker, o.logger)
		decision.Orders = maker.Run()
		decision.FairValue = maker.FairValue()

	case domain.StrategyRegressionMM:
		// Update-then-read ordering on the rolling window is what makes the
		// projection include this tick's observation.
		carried.Push(sym, feat.MidVWAP, spec.Regression.MaxWindow)
		fair := o.models[sym].Predict(carried.Window(sym), in.Tick, feat.MidVWAP)
		maker := strategy.NewMarketMaker(spec.Instrument, feat, position, spec.Maker, o.logger)
		maker.SetFairValue(fair)
		decision.Orders = maker.Run()
		decision.FairValue = fair

	case domain.StrategyOTCArbitrage:
		quote, ok := in.Quotes[sym]
		if !ok {
			decision.Skipped = true
			decision.SkipReason = domain.ErrMissingQuote.Error()
			return decision
		}
		eng := arbitrage.New(spec.Instrument, snap, feat, quote, position, spec.Arbitrage, o.logger)
		orders, conversions := eng.Run()
		decision.Orders = orders
		decision.FairValue = (quote.Bid + quote.Ask) / 2
		result.Conversions = conversions

	case domain.StrategyBasket:
		constituents := make([]basket.Constituent, 0, len(spec.Constituents))
		for _, c := range spec.Constituents {
			csnap, ok := in.Books[c.Symbol]
			if !ok {
				decision.Skipped = true
				decision.SkipReason = fmt.Sprintf("constituent %s: no book snapshot", c.Symbol)
				return decision
			}
			cfeat, err := book.Compute(csnap)
			if err != nil {
				decision.Skipped = true
				decision.SkipReason = fmt.Sprintf("constituent %s: no liquidity", c.Symbol)
				return decision
			}
			constituents = append(constituents, basket.Constituent{
				Instrument: c,
				Features:   cfeat,
			})
		}
		pricer := basket.New(spec.Instrument, feat, position, constituents, spec.Basket, o.logger)
		decision.Orders = pricer.Run()
		decision.FairValue = pricer.Maker().FairValue()

	default:
		decision.Skipped = true
		decision.SkipReason = fmt.Sprintf("unknown strategy kind %q", spec.Kind)
	}
	return decision
}
