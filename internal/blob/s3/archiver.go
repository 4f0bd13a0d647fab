package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/quantrove/tickbot/internal/domain"
)

// Archiver moves aged tick records out of the primary store and into
// S3 as newline-delimited JSON. Records are deleted from the store only
// after the archive object has been written.
type Archiver struct {
	writer domain.BlobWriter
	store  domain.TickRecordStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver that reads from store and writes to writer.
func NewArchiver(writer domain.BlobWriter, store domain.TickRecordStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		store:  store,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// Archive queries all tick records created before the cutoff, uploads them
// to archive/ticks/YYYY-MM-DDTHH-MM-SS.jsonl, and then deletes them from the
// store. It returns the number of records archived. A cutoff with no records
// is a no-op.
func (a *Archiver) Archive(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.store.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	key := archiveKey(before)
	if _, err := a.writer.Write(ctx, key, "application/x-ndjson", buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	deleted, err := a.store.DeleteBefore(ctx, before)
	if err != nil {
		// The archive object exists, so nothing is lost; the next run will
		// re-archive the same records under a new key.
		return int64(len(recs)), fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.Info("archived tick records",
		slog.String("key", key),
		slog.Int("records", len(recs)),
		slog.Int64("deleted", deleted),
	)
	return int64(len(recs)), nil
}

// archiveKey builds the S3 key for an archive file from the cutoff time.
//
//	archive/ticks/2026-08-26T14-00-00.jsonl
func archiveKey(before time.Time) string {
	return fmt.Sprintf("archive/ticks/%s.jsonl", before.UTC().Format("2006-01-02T15-04-05"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
