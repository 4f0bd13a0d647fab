package domain

import "errors"

var (
	// ErrNoLiquidity is returned when a required book side is empty. The
	// orchestrator skips the dependent sub-strategy for the tick.
	ErrNoLiquidity = errors.New("no liquidity")

	// ErrStateCorrupt is returned when the carried state blob cannot be
	// decoded after the first tick. Recovery is local: the engine resets to
	// empty rolling state and keeps trading.
	ErrStateCorrupt = errors.New("carried state corrupt")

	// ErrUnknownInstrument is returned when the host references an
	// instrument the engine was not configured for.
	ErrUnknownInstrument = errors.New("unknown instrument")

	// ErrMissingQuote is returned when an arbitrage instrument has no
	// external reference quote this tick.
	ErrMissingQuote = errors.New("missing external quote")

	// ErrInvalidConfig marks malformed static configuration. It is fatal at
	// startup and must never surface per tick.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound is returned by stores when a record does not exist.
	ErrNotFound = errors.New("not found")
)
