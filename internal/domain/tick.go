package domain

// TickInput is everything the host supplies for one tick. The engine treats
// it as read-only.
type TickInput struct {
	// Tick is the host timestamp of this tick. Timestamps advance in fixed
	// increments of the configured tick duration.
	Tick int64 `json:"tick"`

	// Positions is the current signed filled position per instrument.
	// Instruments absent from the map hold zero.
	Positions map[string]int `json:"positions"`

	// Books holds one snapshot per instrument with visible liquidity.
	Books map[string]BookSnapshot `json:"books"`

	// Quotes holds external reference quotes for convertible instruments,
	// when the host provides them.
	Quotes map[string]ExternalQuote `json:"quotes,omitempty"`

	// CarriedState is the opaque blob the engine returned on the previous
	// tick, echoed back verbatim. Empty on the very first tick.
	CarriedState []byte `json:"carried_state,omitempty"`
}

// TickResult is everything the engine returns for one tick.
type TickResult struct {
	// Orders maps each instrument to the ordered list of orders to submit.
	Orders map[string][]Order `json:"orders"`

	// Conversions is the signed quantity to convert through the external
	// venue for the designated convertible instrument. Zero when no
	// conversion is requested.
	Conversions int `json:"conversions"`

	// CarriedState must be echoed back by the host on the next tick.
	CarriedState []byte `json:"carried_state,omitempty"`
}
