// Package state holds the engine's carried state: the per-instrument rolling
// price windows that survive between ticks, and their wire codec. The blob
// travels to the host and back verbatim, so encode/decode must round-trip
// exactly.
package state

import (
	"encoding/json"
	"fmt"

	"github.com/quantrove/tickbot/internal/domain"
)

// Carried is the cross-tick state object. It is owned by the orchestrator,
// mutated exactly once per tick before the regression model reads it, and is
// never shared between goroutines.
type Carried struct {
	// Windows maps instrument symbol to its bounded FIFO of historical
	// mid-VWAP values, oldest first.
	Windows map[string][]float64 `json:"windows"`
}

// New returns an empty carried state.
func New() *Carried {
	return &Carried{Windows: make(map[string][]float64)}
}

// Push appends value to the instrument's window, evicting the oldest entries
// so the window never exceeds maxSize.
func (c *Carried) Push(symbol string, value float64, maxSize int) {
	if c.Windows == nil {
		c.Windows = make(map[string][]float64)
	}
	w := append(c.Windows[symbol], value)
	if maxSize > 0 && len(w) > maxSize {
		w = w[len(w)-maxSize:]
	}
	c.Windows[symbol] = w
}

// Window returns a copy of the instrument's rolling window, oldest first.
func (c *Carried) Window(symbol string) []float64 {
	src := c.Windows[symbol]
	if len(src) == 0 {
		return nil
	}
	out := make([]float64, len(src))
	copy(out, src)
	return out
}

// Encode serializes the carried state for transport between ticks.
func Encode(c *Carried) ([]byte, error) {
	blob, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("state: encode: %w", err)
	}
	return blob, nil
}

// Decode restores carried state from the host-echoed blob. An empty blob is
// the normal first-tick case and yields a fresh state. A non-empty blob that
// fails to parse yields a fresh state together with domain.ErrStateCorrupt so
// the caller can log the loss; it is never fatal.
func Decode(blob []byte) (*Carried, error) {
	if len(blob) == 0 {
		return New(), nil
	}
	var c Carried
	if err := json.Unmarshal(blob, &c); err != nil {
		return New(), fmt.Errorf("state: decode: %w: %w", domain.ErrStateCorrupt, err)
	}
	if c.Windows == nil {
		c.Windows = make(map[string][]float64)
	}
	return &c, nil
}
