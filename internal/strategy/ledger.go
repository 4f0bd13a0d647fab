// Package strategy contains the per-instrument decision logic that turns one
// tick's book features and fair value into orders: opportunistic scratching,
// stop-loss liquidation, and two-sided passive quoting.
package strategy

import "github.com/quantrove/tickbot/internal/domain"

// Ledger is the mutable per-instrument, per-tick running state shared by the
// sub-strategies. Every emitted order immediately updates Expected and the
// same-side running total, so each subsequent sizing decision sees the
// exposure already promised this tick. Orders are only promises until the
// host executes them, which is exactly why Expected, not Position, is the
// binding constraint.
type Ledger struct {
	Symbol   string
	Limit    int
	Position int

	// Expected is Position plus the signed sum of all order quantities
	// emitted so far this tick.
	Expected int

	// SumBuy / SumSell accumulate this tick's signed buy and sell
	// quantities separately. Quoting uses them to avoid double-counting
	// exposure across scratch, stop-loss, and quote orders.
	SumBuy  int
	SumSell int

	orders []domain.Order
}

// NewLedger starts a fresh tick ledger at the host-reported position.
func NewLedger(symbol string, limit, position int) *Ledger {
	return &Ledger{
		Symbol:   symbol,
		Limit:    limit,
		Position: position,
		Expected: position,
	}
}

// Add emits an order and folds it into the running totals. Zero quantities
// are dropped.
func (l *Ledger) Add(price, quantity int) {
	if quantity == 0 {
		return
	}
	l.orders = append(l.orders, domain.Order{Symbol: l.Symbol, Price: price, Quantity: quantity})
	l.Expected += quantity
	if quantity > 0 {
		l.SumBuy += quantity
	} else {
		l.SumSell += quantity
	}
}

// Orders returns the orders emitted so far this tick, in emission order.
func (l *Ledger) Orders() []domain.Order {
	return l.orders
}

// BidCapacity is the non-negative quantity that can still be bought without
// any combination of resting and new orders being able to push the true
// position above +Limit. It is the minimum of the raw limit, limit minus
// position, limit minus expected position, and limit minus the running buy
// total minus position.
func (l *Ledger) BidCapacity() int {
	c := min(l.Limit, l.Limit-l.Position, l.Limit-l.Expected, l.Limit-l.SumBuy-l.Position)
	return max(c, 0)
}

// AskCapacity is the non-positive quantity that can still be sold without
// breaching -Limit, the mirror image of BidCapacity.
func (l *Ledger) AskCapacity() int {
	c := max(-l.Limit, -l.Limit-l.Position, -l.Limit-l.Expected, -l.Limit-l.SumSell-l.Position)
	return min(c, 0)
}
