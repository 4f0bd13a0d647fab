// Package fairvalue estimates an instrument's reference price for the
// current tick. Fixed and regression variants live here; the arbitrage-free
// and basket-premium variants are priced inside their owning engines because
// they need the external quote and constituent books respectively.
package fairvalue

import "math"

// RegressionConfig configures the least-squares price projection.
type RegressionConfig struct {
	// MinWindow is the number of observations required before the model
	// trusts its fit. Below this the model falls back to the current
	// mid-VWAP.
	MinWindow int
	// MaxWindow bounds the rolling window the orchestrator maintains.
	MaxWindow int
	// PredictShift extrapolates the fitted line this many ticks past the
	// current one.
	PredictShift int
	// TickDuration is the timestamp increment between consecutive ticks.
	TickDuration int64
}

// Regression projects price forward by fitting an ordinary least-squares
// line over the rolling window of historical mid-VWAPs.
type Regression struct {
	cfg RegressionConfig
}

// NewRegression creates a regression fair-value model.
func NewRegression(cfg RegressionConfig) *Regression {
	return &Regression{cfg: cfg}
}

// Predict returns the fair value for the tick at the given timestamp. The
// window holds mid-VWAP observations oldest first, the newest being this
// tick's. With fewer than MinWindow observations the current mid-VWAP is the
// defined fallback, not an error. A constant price series fits a zero slope
// and projects flat.
func (r *Regression) Predict(window []float64, timestamp int64, midVWAP float64) float64 {
	n := len(window)
	if n < r.cfg.MinWindow {
		return midVWAP
	}

	// Observations are spaced one tick apart ending at the current
	// timestamp.
	d := r.cfg.TickDuration
	t := timestamp / d
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(d * (t - int64(n) + 1 + int64(i)))
	}

	slope, intercept := leastSquares(xs, window)
	x := float64(timestamp + d*int64(r.cfg.PredictShift))
	return slope*x + intercept
}

// leastSquares fits ys = slope*xs + intercept. Degenerate inputs (all xs
// equal) return a flat line through the mean.
func leastSquares(xs, ys []float64) (slope, intercept float64) {
	n := float64(len(xs))
	var sumX, sumY float64
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
	}
	meanX := sumX / n
	meanY := sumY / n

	var covXY, varX float64
	for i := range xs {
		dx := xs[i] - meanX
		covXY += dx * (ys[i] - meanY)
		varX += dx * dx
	}
	if varX == 0 || math.IsNaN(covXY) {
		return 0, meanY
	}
	return covXY / varX, meanY - (covXY/varX)*meanX
}
