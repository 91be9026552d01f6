package relay

import (
	"flag"
	"reflect"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != ":8085" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.HistoryLimit != 200 {
		t.Fatalf("expected default history limit, got %d", cfg.HistoryLimit)
	}
	if cfg.RoomIdleTTL != 10*time.Minute {
		t.Fatalf("expected default idle TTL, got %v", cfg.RoomIdleTTL)
	}
	if cfg.ReapInterval != time.Minute {
		t.Fatalf("expected default reap interval, got %v", cfg.ReapInterval)
	}
	if cfg.SeedRooms != "lobby" {
		t.Fatalf("expected default seed rooms, got %q", cfg.SeedRooms)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("PARLOR_RELAY_HTTP_ADDR", "env-addr")
	t.Setenv("PARLOR_RELAY_HISTORY_LIMIT", "50")

	fs := flag.NewFlagSet("relay", flag.ContinueOnError)
	args := []string{
		"-http-addr", "flag-addr",
		"-room-idle-ttl", "30s",
	}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.HTTPAddr != "flag-addr" {
		t.Fatalf("expected flag http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.HistoryLimit != 50 {
		t.Fatalf("expected env history limit, got %d", cfg.HistoryLimit)
	}
	if cfg.RoomIdleTTL != 30*time.Second {
		t.Fatalf("expected flag idle TTL, got %v", cfg.RoomIdleTTL)
	}
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: nil},
		{raw: "lobby", want: []string{"lobby"}},
		{raw: "lobby,general", want: []string{"lobby", "general"}},
		{raw: " lobby , ,general, ", want: []string{"lobby", "general"}},
	}
	for _, tc := range cases {
		if got := splitCSV(tc.raw); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("splitCSV(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
