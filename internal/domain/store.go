package domain

import (
	"context"
	"time"
)

// TickRecordStore persists per-tick decision records.
type TickRecordStore interface {
	Insert(ctx context.Context, rec TickRecord) error
	// ListBefore returns all records created strictly before the cutoff,
	// oldest first. Used by the session archiver.
	ListBefore(ctx context.Context, before time.Time) ([]TickRecord, error)
	// DeleteBefore removes records created strictly before the cutoff and
	// returns the number deleted. Called only after an archive has been
	// written and verified.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// StateCache mirrors the most recent carried-state blob per run so an
// operator can inspect or recover it out-of-band. The engine never depends
// on the mirror for correctness; writes are best-effort.
type StateCache interface {
	SetState(ctx context.Context, runID string, tick int64, blob []byte) error
	GetState(ctx context.Context, runID string) ([]byte, int64, error)
}

// BlobWriter uploads a finished object to blob storage and returns its key.
type BlobWriter interface {
	Write(ctx context.Context, key string, contentType string, body []byte) (string, error)
}
