package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quantrove/tickbot/internal/domain"
)

// TickRecordStore implements domain.TickRecordStore using PostgreSQL.
// Per-instrument decisions are stored as a JSONB document so the schema
// stays stable as strategies gain fields.
type TickRecordStore struct {
	pool *pgxpool.Pool
}

// NewTickRecordStore creates a new TickRecordStore backed by the given pool.
func NewTickRecordStore(pool *pgxpool.Pool) *TickRecordStore {
	return &TickRecordStore{pool: pool}
}

const tickRecordSelectCols = `id, run_id, tick, decisions, conversions,
	sunlight, humidity, created_at`

func scanTickRecordRows(rows pgx.Rows) ([]domain.TickRecord, error) {
	var recs []domain.TickRecord
	for rows.Next() {
		var (
			rec       domain.TickRecord
			decisions []byte
		)
		if err := rows.Scan(
			&rec.ID, &rec.RunID, &rec.Tick, &decisions,
			&rec.Conversions, &rec.Sunlight, &rec.Humidity, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		if len(decisions) > 0 {
			if err := json.Unmarshal(decisions, &rec.Decisions); err != nil {
				return nil, fmt.Errorf("decode decisions for record %s: %w", rec.ID, err)
			}
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Insert persists one tick record. Replays of an already-stored record
// (same id) are silently skipped via ON CONFLICT DO NOTHING.
func (s *TickRecordStore) Insert(ctx context.Context, rec domain.TickRecord) error {
	decisions, err := json.Marshal(rec.Decisions)
	if err != nil {
		return fmt.Errorf("postgres: encode decisions: %w", err)
	}

	const query = `
		INSERT INTO tick_records (
			id, run_id, tick, decisions, conversions,
			sunlight, humidity, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.RunID, rec.Tick, decisions, rec.Conversions,
		rec.Sunlight, rec.Humidity, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert tick record: %w", err)
	}
	return nil
}

// ListBefore returns all records created strictly before the cutoff,
// oldest first.
func (s *TickRecordStore) ListBefore(ctx context.Context, before time.Time) ([]domain.TickRecord, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tick_records
		WHERE created_at < $1
		ORDER BY created_at ASC, tick ASC`, tickRecordSelectCols)

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tick records: %w", err)
	}
	defer rows.Close()

	recs, err := scanTickRecordRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan tick records: %w", err)
	}
	return recs, nil
}

// DeleteBefore removes records created strictly before the cutoff and
// returns the number deleted.
func (s *TickRecordStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM tick_records WHERE created_at < $1`

	tag, err := s.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete tick records: %w", err)
	}
	return tag.RowsAffected(), nil
}
