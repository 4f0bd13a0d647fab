package app

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quantrove/tickbot/internal/domain"
	"github.com/quantrove/tickbot/internal/host"
)

const (
	// archiveEvery is how often the session archiver sweeps the decision
	// store in serve mode.
	archiveEvery = 1 * time.Hour

	// archiveAge is how old a record must be before it is moved to S3.
	archiveAge = 1 * time.Hour

	// sinkTimeout bounds each persistence write so a slow backend cannot
	// stall the tick loop.
	sinkTimeout = 2 * time.Second

	// maxReplayLine bounds one JSONL tick input line.
	maxReplayLine = 1 << 20
)

// ServeMode runs the websocket host adapter and, when configured, the
// periodic session archiver. It blocks until the context is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode",
		slog.String("addr", a.cfg.Server.Addr),
		slog.String("run_id", deps.Engine.RunID()),
	)

	g, ctx := errgroup.WithContext(ctx)

	srv := host.New(host.Config{
		Addr:      a.cfg.Server.Addr,
		Path:      a.cfg.Server.Path,
		SeedState: a.recoverState(ctx, deps),
	}, deps.Engine, a.recordSink(deps), a.logger)
	g.Go(func() error {
		return srv.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.archiveLoop(ctx, deps)
		})
	}

	return g.Wait()
}

// recoverState fetches the carried-state blob mirrored under
// redis.recover_run_id, if one is configured. A missing entry is logged and
// skipped; the engine starts with empty rolling windows in that case.
func (a *App) recoverState(ctx context.Context, deps *Dependencies) []byte {
	runID := a.cfg.Redis.RecoverRunID
	if runID == "" || deps.StateCache == nil {
		return nil
	}

	blob, tick, err := deps.StateCache.GetState(ctx, runID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		a.logger.WarnContext(ctx, "no mirrored state for recovery run",
			slog.String("recover_run_id", runID),
		)
		return nil
	case err != nil:
		a.logger.WarnContext(ctx, "state recovery failed",
			slog.String("recover_run_id", runID),
			slog.String("error", err.Error()),
		)
		return nil
	}

	a.logger.InfoContext(ctx, "recovered carried state from mirror",
		slog.String("recover_run_id", runID),
		slog.Int64("tick", tick),
	)
	return blob
}

// ReplayMode feeds a recorded JSONL file of tick inputs through the engine
// and writes one result line per tick. The carried state flows from each
// tick's output into the next tick's input, so a replay reproduces a live
// session deterministically.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	in, err := os.Open(a.cfg.Replay.InputPath)
	if err != nil {
		return fmt.Errorf("app: open replay input: %w", err)
	}
	defer in.Close()

	var out io.Writer = os.Stdout
	if a.cfg.Replay.OutputPath != "" {
		f, err := os.Create(a.cfg.Replay.OutputPath)
		if err != nil {
			return fmt.Errorf("app: create replay output: %w", err)
		}
		defer f.Close()
		out = f
	}

	a.logger.InfoContext(ctx, "starting replay",
		slog.String("input", a.cfg.Replay.InputPath),
		slog.String("run_id", deps.Engine.RunID()),
	)

	sink := a.recordSink(deps)
	enc := json.NewEncoder(out)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxReplayLine)

	var (
		carried []byte
		line    int
		ticks   int
	)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var input domain.TickInput
		if err := json.Unmarshal(raw, &input); err != nil {
			return fmt.Errorf("app: replay line %d: %w", line, err)
		}
		if carried != nil {
			input.CarriedState = carried
		}

		result, record := deps.Engine.RunTick(ctx, input)
		if sink != nil {
			sink(ctx, record, result)
		}
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("app: replay write line %d: %w", line, err)
		}
		carried = result.CarriedState
		ticks++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("app: replay scan: %w", err)
	}

	a.logger.InfoContext(ctx, "replay finished", slog.Int("ticks", ticks))
	return nil
}

// OnceMode evaluates a single tick input read from stdin and writes the
// result to stdout. Useful for smoke-testing a configuration.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	var input domain.TickInput
	if err := json.NewDecoder(os.Stdin).Decode(&input); err != nil {
		return fmt.Errorf("app: decode tick input: %w", err)
	}

	result, record := deps.Engine.RunTick(ctx, input)
	if sink := a.recordSink(deps); sink != nil {
		sink(ctx, record, result)
	}

	if err := json.NewEncoder(os.Stdout).Encode(result); err != nil {
		return fmt.Errorf("app: encode tick result: %w", err)
	}
	return nil
}

// recordSink builds the per-tick persistence callback from the enabled
// backends. Failures are logged and never propagate into the tick path.
// It returns nil when no backend is enabled.
func (a *App) recordSink(deps *Dependencies) host.RecordFunc {
	if deps.TickStore == nil && deps.StateCache == nil {
		return nil
	}

	return func(ctx context.Context, rec domain.TickRecord, res domain.TickResult) {
		// Detach from the request context so a disconnecting venue does not
		// abort an in-flight write.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		defer cancel()

		if deps.TickStore != nil {
			if err := deps.TickStore.Insert(ctx, rec); err != nil {
				a.logger.Warn("tick record insert failed",
					slog.Int64("tick", rec.Tick),
					slog.String("error", err.Error()),
				)
			}
		}
		if deps.StateCache != nil {
			if err := deps.StateCache.SetState(ctx, rec.RunID, rec.Tick, res.CarriedState); err != nil {
				a.logger.Warn("state mirror write failed",
					slog.Int64("tick", rec.Tick),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// archiveLoop periodically moves aged tick records from the decision store
// into the S3 session archive.
func (a *App) archiveLoop(ctx context.Context, deps *Dependencies) error {
	ticker := time.NewTicker(archiveEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-archiveAge)
			count, err := deps.Archiver.Archive(ctx, cutoff)
			if err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Warn("archive sweep failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				a.logger.Info("archive sweep complete", slog.Int64("records", count))
			}
		}
	}
}
