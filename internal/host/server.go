// Package host exposes the strategy engine to a venue process over
// WebSocket. Each connection carries a stream of tick frames: the venue
// sends one TickInput JSON frame per exchange tick and receives one
// TickResult frame back before the next tick is sent.
package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quantrove/tickbot/internal/domain"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the venue.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds incoming tick frames. Books for a handful of
	// instruments fit comfortably; anything larger is a broken client.
	maxMessageSize = 1 << 20

	// shutdownGrace is how long Run waits for in-flight requests after the
	// context is cancelled.
	shutdownGrace = 5 * time.Second
)

// upgrader configures the WebSocket upgrade parameters.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// The venue connects from the same host in practice.
		return true
	},
}

// Engine evaluates one tick. Implemented by engine.Orchestrator.
type Engine interface {
	RunTick(ctx context.Context, in domain.TickInput) (domain.TickResult, domain.TickRecord)
}

// RecordFunc receives the decision record and result of each evaluated tick.
// Implementations must tolerate being called from the connection goroutine
// and should not block on slow backends.
type RecordFunc func(ctx context.Context, rec domain.TickRecord, res domain.TickResult)

// Config holds the listen parameters for the host adapter.
type Config struct {
	Addr string
	Path string

	// SeedState, when non-empty, replaces the carried state of the first
	// tick frame that arrives without one. Used to resume a prior run's
	// rolling windows from the state mirror.
	SeedState []byte
}

// Server accepts venue connections and drives the engine tick by tick.
type Server struct {
	cfg      Config
	engine   Engine
	onRecord RecordFunc
	logger   *slog.Logger

	// engineMu serialises RunTick across connections. The engine carries
	// per-run regression state and is not safe for concurrent ticks.
	engineMu sync.Mutex

	// seed is consumed by the first evaluated tick, guarded by engineMu.
	seed []byte
}

// errorFrame is sent back to the venue when a tick frame cannot be processed.
type errorFrame struct {
	Error string `json:"error"`
}

// New creates a Server. onRecord may be nil when no persistence is wired.
func New(cfg Config, eng Engine, onRecord RecordFunc, logger *slog.Logger) *Server {
	if cfg.Path == "" {
		cfg.Path = "/tick"
	}
	return &Server{
		cfg:      cfg,
		engine:   eng,
		onRecord: onRecord,
		logger:   logger.With(slog.String("component", "host")),
		seed:     cfg.SeedState,
	}
}

// Run starts the HTTP listener and blocks until the context is cancelled or
// the listener fails.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening",
			slog.String("addr", s.cfg.Addr),
			slog.String("path", s.cfg.Path),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("host: shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("host: listen: %w", err)
	}
}

// handleWS upgrades the request and runs the per-connection tick loop.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	s.logger.Info("venue connected", slog.String("remote", conn.RemoteAddr().String()))

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Writes come from both the tick loop and the keepalive goroutine.
	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(messageType, data)
	}

	pingCtx, cancelPing := context.WithCancel(r.Context())
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := write(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("unexpected close", slog.String("error", err.Error()))
			} else {
				s.logger.Info("venue disconnected")
			}
			return
		}

		reply, err := s.serveTick(r.Context(), message)
		if err != nil {
			s.logger.Error("tick frame rejected", slog.String("error", err.Error()))
			frame, _ := json.Marshal(errorFrame{Error: err.Error()})
			if werr := write(websocket.TextMessage, frame); werr != nil {
				return
			}
			continue
		}

		if err := write(websocket.TextMessage, reply); err != nil {
			return
		}
	}
}

// serveTick decodes one tick frame, evaluates it, hands the record to the
// sink, and returns the encoded result frame.
func (s *Server) serveTick(ctx context.Context, message []byte) ([]byte, error) {
	var in domain.TickInput
	if err := json.Unmarshal(message, &in); err != nil {
		return nil, fmt.Errorf("decode tick input: %w", err)
	}

	s.engineMu.Lock()
	if s.seed != nil {
		// A venue that carries its own state wins over the mirror; either
		// way the seed applies to at most one tick.
		if len(in.CarriedState) == 0 {
			s.logger.Info("seeding tick with recovered carried state",
				slog.Int64("tick", in.Tick),
			)
			in.CarriedState = s.seed
		}
		s.seed = nil
	}
	result, record := s.engine.RunTick(ctx, in)
	s.engineMu.Unlock()

	if s.onRecord != nil {
		s.onRecord(ctx, record, result)
	}

	reply, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encode tick result: %w", err)
	}
	return reply, nil
}
