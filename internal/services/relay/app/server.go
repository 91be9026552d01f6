package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/parlorchat/parlor/internal/chat"
	"github.com/parlorchat/parlor/internal/platform/timeouts"
)

const (
	maxFramePayloadBytes   = 16 * 1024
	maxFramesPerSecond     = 40
	maxDecodeErrorsPerConn = 3

	defaultRoomIdleTTL  = 10 * time.Minute
	defaultReapInterval = time.Minute
)

// Config defines the inputs for the relay transport boundary.
type Config struct {
	HTTPAddr          string
	AllowedOrigins    []string
	HistoryLimit      int
	RoomIdleTTL       time.Duration
	ReapInterval      time.Duration
	SeedRooms         []string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server hosts the relay HTTP/WebSocket process.
//
// Room and session state is process-local; restarting the server drops all
// rooms, history, and connections.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	reaperStop      context.CancelFunc
	reaperDone      chan struct{}
}

// NewServer builds a configured relay server.
func NewServer(config Config) (*Server, error) {
	return NewServerWithContext(context.Background(), config)
}

// NewServerWithContext builds a configured relay server with an explicit context.
func NewServerWithContext(ctx context.Context, config Config) (*Server, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}
	if config.RoomIdleTTL <= 0 {
		config.RoomIdleTTL = defaultRoomIdleTTL
	}
	if config.ReapInterval <= 0 {
		config.ReapInterval = defaultReapInterval
	}

	handler := newRelayHandler(config.HistoryLimit, config.AllowedOrigins)
	for _, name := range config.SeedRooms {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		handler.registry.GetOrCreate(name)
		log.Printf("relay: seeded room %q", name)
	}

	reaperCtx, reaperStop := context.WithCancel(context.Background())
	reaperDone := startRoomReaper(reaperCtx, handler, config)

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           handler.routes(),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		reaperStop:      reaperStop,
		reaperDone:      reaperDone,
	}, nil
}

// startRoomReaper sweeps idle empty rooms on a fixed interval until the
// context ends. Seed rooms are exempt so the default room set survives quiet
// periods.
func startRoomReaper(ctx context.Context, handler *relayHandler, config Config) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(config.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reaped := handler.registry.ReapIdleEmptyRooms(time.Now().UTC(), config.RoomIdleTTL, config.SeedRooms)
				if len(reaped) > 0 {
					handler.metrics.roomsReaped.Add(float64(len(reaped)))
					log.Printf("relay: reaped %d idle rooms: %s", len(reaped), strings.Join(reaped, ", "))
				}
			}
		}
	}()
	return done
}

// Run creates and serves a relay server until the context ends.
//
// Operators can treat this as the lifecycle boundary for the real-time surface.
func Run(ctx context.Context, config Config) error {
	server, err := NewServerWithContext(ctx, config)
	if err != nil {
		return fmt.Errorf("init relay server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve relay: %w", err)
	}
	return nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("relay server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("relay server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.reaperStop != nil {
		s.reaperStop()
	}
	if s.reaperDone != nil {
		<-s.reaperDone
	}
}

// historyLimitOrDefault keeps the exported Config tolerant of zero values.
func historyLimitOrDefault(limit int) int {
	if limit <= 0 {
		return chat.DefaultHistoryLimit
	}
	return limit
}
