package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quantrove/tickbot/internal/domain"
)

// stateTTL bounds how long a stale mirror survives after a run stops
// writing. The engine never reads the mirror back; it exists for operators.
const stateTTL = 24 * time.Hour

// StateCache implements domain.StateCache using Redis hashes. Each run's
// latest carried-state blob is stored at key "state:{runID}" with fields
// "blob" and "tick".
type StateCache struct {
	rdb *redis.Client
}

// NewStateCache creates a StateCache backed by the given Client.
func NewStateCache(c *Client) *StateCache {
	return &StateCache{rdb: c.Underlying()}
}

func stateKey(runID string) string {
	return "state:" + runID
}

// SetState stores the carried-state blob and the tick it was produced on.
// The write and TTL refresh are applied atomically via a transaction
// pipeline so a crash between them cannot leave an unbounded key.
func (sc *StateCache) SetState(ctx context.Context, runID string, tick int64, blob []byte) error {
	key := stateKey(runID)
	fields := map[string]interface{}{
		"blob": blob,
		"tick": strconv.FormatInt(tick, 10),
	}

	pipe := sc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, stateTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set state %s: %w", runID, err)
	}
	return nil
}

// GetState retrieves the latest carried-state blob and tick for a run.
// It returns domain.ErrNotFound when no mirror exists.
func (sc *StateCache) GetState(ctx context.Context, runID string) ([]byte, int64, error) {
	vals, err := sc.rdb.HGetAll(ctx, stateKey(runID)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis: get state %s: %w", runID, err)
	}
	if len(vals) == 0 {
		return nil, 0, domain.ErrNotFound
	}

	blob, ok := vals["blob"]
	if !ok {
		return nil, 0, domain.ErrNotFound
	}

	tickStr, ok := vals["tick"]
	if !ok {
		return nil, 0, domain.ErrNotFound
	}
	tick, err := strconv.ParseInt(tickStr, 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("redis: parse tick %s: %w", runID, err)
	}

	return []byte(blob), tick, nil
}
