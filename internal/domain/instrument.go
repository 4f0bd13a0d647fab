package domain

// Instrument is the static description of one tradable product.
type Instrument struct {
	Symbol string `json:"symbol"`

	// PositionLimit is the exchange-imposed absolute position bound. Every
	// emitted order set must keep the worst-case position within it.
	PositionLimit int `json:"position_limit"`

	// StorageCost is the per-unit, per-tick cost of holding long inventory.
	// Only meaningful for convertible instruments.
	StorageCost float64 `json:"storage_cost,omitempty"`

	// PerBasket is the number of units one basket contains. Set only on
	// basket constituents.
	PerBasket float64 `json:"per_basket,omitempty"`
}

// StrategyKind selects which strategy evaluates an instrument each tick.
type StrategyKind string

const (
	// StrategyFixedMM quotes around a configured constant fair value.
	StrategyFixedMM StrategyKind = "fixed_mm"

	// StrategyRegressionMM quotes around a rolling least-squares forecast
	// of the mid VWAP.
	StrategyRegressionMM StrategyKind = "regression_mm"

	// StrategyOTCArbitrage trades a convertible instrument against its
	// external over-the-counter quote.
	StrategyOTCArbitrage StrategyKind = "otc_arbitrage"

	// StrategyBasket quotes a composite product around its constituent NAV
	// corrected for premium mean reversion.
	StrategyBasket StrategyKind = "basket"
)

// Valid reports whether k names a known strategy kind.
func (k StrategyKind) Valid() bool {
	switch k {
	case StrategyFixedMM, StrategyRegressionMM, StrategyOTCArbitrage, StrategyBasket:
		return true
	}
	return false
}
