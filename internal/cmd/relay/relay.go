// Package relay parses relay command flags and composes transport entrypoints.
package relay

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	entrypoint "github.com/parlorchat/parlor/internal/platform/cmd"
	server "github.com/parlorchat/parlor/internal/services/relay/app"
)

// Config holds relay command configuration. List-valued settings are
// comma-separated so they can be overridden by a single flag or variable.
type Config struct {
	HTTPAddr       string        `env:"PARLOR_RELAY_HTTP_ADDR"       envDefault:":8085"`
	AllowedOrigins string        `env:"PARLOR_RELAY_ALLOWED_ORIGINS" envDefault:"http://localhost:5173,http://localhost:3000"`
	HistoryLimit   int           `env:"PARLOR_RELAY_HISTORY_LIMIT"   envDefault:"200"`
	RoomIdleTTL    time.Duration `env:"PARLOR_RELAY_ROOM_IDLE_TTL"   envDefault:"10m"`
	ReapInterval   time.Duration `env:"PARLOR_RELAY_REAP_INTERVAL"   envDefault:"1m"`
	SeedRooms      string        `env:"PARLOR_RELAY_SEED_ROOMS"      envDefault:"lobby"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "relay HTTP listen address")
	fs.StringVar(&cfg.AllowedOrigins, "allowed-origins", cfg.AllowedOrigins, "comma-separated CORS origins, empty allows none")
	fs.IntVar(&cfg.HistoryLimit, "history-limit", cfg.HistoryLimit, "messages retained per room")
	fs.DurationVar(&cfg.RoomIdleTTL, "room-idle-ttl", cfg.RoomIdleTTL, "idle time before an empty room is removed")
	fs.DurationVar(&cfg.ReapInterval, "reap-interval", cfg.ReapInterval, "how often idle rooms are swept")
	fs.StringVar(&cfg.SeedRooms, "seed-rooms", cfg.SeedRooms, "comma-separated rooms created at startup and never reaped")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run builds the relay app and starts realtime transport behavior.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceRelay, func(context.Context) error {
		if err := server.Run(ctx, server.Config{
			HTTPAddr:       cfg.HTTPAddr,
			AllowedOrigins: splitCSV(cfg.AllowedOrigins),
			HistoryLimit:   cfg.HistoryLimit,
			RoomIdleTTL:    cfg.RoomIdleTTL,
			ReapInterval:   cfg.ReapInterval,
			SeedRooms:      splitCSV(cfg.SeedRooms),
		}); err != nil {
			return fmt.Errorf("serve relay: %w", err)
		}
		return nil
	})
}

// splitCSV splits a comma-separated list, trimming blanks.
func splitCSV(raw string) []string {
	var values []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}
	return values
}
