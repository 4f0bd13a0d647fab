// Package book derives pricing features from raw order-book snapshots.
package book

import (
	"fmt"

	"github.com/quantrove/tickbot/internal/domain"
)

// Features is everything the strategies need from one instrument's book this
// tick: extremes, per-side depth and volume, and volume-weighted averages.
// MidVWAP averages the two side VWAPs and serves as a de-noised reference
// price.
type Features struct {
	BestBid  int
	BestAsk  int
	WorstBid int
	WorstAsk int

	// Quantities resting at the touch, positive magnitudes.
	BestBidQty int
	BestAskQty int

	// BidLevels / AskLevels count distinct price levels per side. Strategies
	// that take liquidity require at least two levels behind the touch so
	// they never consume a sole, possibly stale, resting quote.
	BidLevels int
	AskLevels int

	BidVolume int
	AskVolume int

	BidVWAP float64
	AskVWAP float64
	MidVWAP float64
}

// Compute derives Features from a snapshot. Both sides must be non-empty;
// otherwise it returns domain.ErrNoLiquidity and the caller skips whatever
// depends on the missing side for this tick.
func Compute(snap domain.BookSnapshot) (Features, error) {
	if len(snap.Bids) == 0 {
		return Features{}, fmt.Errorf("book %s: bid side: %w", snap.Symbol, domain.ErrNoLiquidity)
	}
	if len(snap.Asks) == 0 {
		return Features{}, fmt.Errorf("book %s: ask side: %w", snap.Symbol, domain.ErrNoLiquidity)
	}

	f := Features{
		BidLevels: len(snap.Bids),
		AskLevels: len(snap.Asks),
	}

	// Bids arrive sorted descending and asks ascending, but extremes are
	// recomputed here so a mis-sorted host snapshot cannot poison pricing.
	f.BestBid, f.WorstBid = snap.Bids[0].Price, snap.Bids[0].Price
	var bidSweep float64
	for _, lvl := range snap.Bids {
		if lvl.Price > f.BestBid {
			f.BestBid = lvl.Price
		}
		if lvl.Price < f.WorstBid {
			f.WorstBid = lvl.Price
		}
		f.BidVolume += lvl.Quantity
		bidSweep += float64(lvl.Price) * float64(lvl.Quantity)
	}

	f.BestAsk, f.WorstAsk = snap.Asks[0].Price, snap.Asks[0].Price
	var askSweep float64
	for _, lvl := range snap.Asks {
		if lvl.Price < f.BestAsk {
			f.BestAsk = lvl.Price
		}
		if lvl.Price > f.WorstAsk {
			f.WorstAsk = lvl.Price
		}
		f.AskVolume += lvl.Quantity
		askSweep += float64(lvl.Price) * float64(lvl.Quantity)
	}

	for _, lvl := range snap.Bids {
		if lvl.Price == f.BestBid {
			f.BestBidQty = lvl.Quantity
			break
		}
	}
	for _, lvl := range snap.Asks {
		if lvl.Price == f.BestAsk {
			f.BestAskQty = lvl.Quantity
			break
		}
	}

	if f.BidVolume <= 0 {
		return Features{}, fmt.Errorf("book %s: zero bid volume: %w", snap.Symbol, domain.ErrNoLiquidity)
	}
	if f.AskVolume <= 0 {
		return Features{}, fmt.Errorf("book %s: zero ask volume: %w", snap.Symbol, domain.ErrNoLiquidity)
	}

	f.BidVWAP = bidSweep / float64(f.BidVolume)
	f.AskVWAP = askSweep / float64(f.AskVolume)
	f.MidVWAP = (f.BidVWAP + f.AskVWAP) / 2
	return f, nil
}

// QuantityAt returns the resting magnitude at price on the given side, or 0
// when the level does not exist.
func QuantityAt(levels []domain.PriceLevel, price int) int {
	for _, lvl := range levels {
		if lvl.Price == price {
			return lvl.Quantity
		}
	}
	return 0
}
