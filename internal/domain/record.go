package domain

import "time"

// InstrumentDecision captures what the engine decided for one instrument on
// one tick: the fair value it priced against and the orders it emitted.
type InstrumentDecision struct {
	Symbol    string  `json:"symbol"`
	Strategy  string  `json:"strategy"`
	Position  int     `json:"position"`
	FairValue float64 `json:"fair_value"`
	MidVWAP   float64 `json:"mid_vwap"`
	Orders    []Order `json:"orders"`
	Skipped   bool    `json:"skipped"`
	// SkipReason is set when Skipped is true, e.g. "no liquidity".
	SkipReason string `json:"skip_reason,omitempty"`
}

// TickRecord is the persisted trail of one engine invocation. Records feed
// the Postgres decision store and the S3 session archive; the engine itself
// never reads them back.
type TickRecord struct {
	ID          string               `json:"id"`
	RunID       string               `json:"run_id"`
	Tick        int64                `json:"tick"`
	Decisions   []InstrumentDecision `json:"decisions"`
	Conversions int                  `json:"conversions"`
	// Sunlight/Humidity mirror the pass-through environment readings from
	// the external quote, when one was present this tick.
	Sunlight  float64   `json:"sunlight,omitempty"`
	Humidity  float64   `json:"humidity,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
