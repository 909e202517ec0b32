package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "junction.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[sim]
tick_rate = "50ms"
step_workers = 4

[data]
network = "maps/downtown.yaml"

[snapshot]
store = "postgres"
dsn = "postgres://sim@db/sim"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Sim.TickRate != 50*time.Millisecond || cfg.Sim.StepWorkers != 4 {
		t.Errorf("sim = %+v", cfg.Sim)
	}
	if cfg.Sim.SpeedLimit != Defaults().Sim.SpeedLimit {
		t.Errorf("speed limit default lost: %v", cfg.Sim.SpeedLimit)
	}
	if cfg.Data.Network != "maps/downtown.yaml" || cfg.Snapshot.Store != "postgres" {
		t.Errorf("data = %+v snapshot = %+v", cfg.Data, cfg.Snapshot)
	}
	if cfg.Snapshot.IntervalTicks != 600 || cfg.Logging.Level != "info" {
		t.Errorf("defaults not applied: %+v %+v", cfg.Snapshot, cfg.Logging)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad toml", "[sim", "parse config"},
		{"speed", "[sim]\nspeed_limit = 0", "speed_limit"},
		{"workers", "[sim]\nstep_workers = 0", "step_workers"},
		{"store", "[snapshot]\nstore = \"s3\"", "unknown snapshot.store"},
		{"sqlite path", "[snapshot]\nstore = \"sqlite\"\npath = \"\"", "snapshot.path"},
		{"interval", "[snapshot]\ninterval_ticks = 0", "interval_ticks"},
		{"timeout", "[snapshot]\ntimeout = \"0s\"", "snapshot.timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error")
	}
}
