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
	path := filepath.Join(t.TempDir(), "ecsched.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[scheduler]
workers = 4
tick_rate = "100ms"
adaptive_costs = true

[logging]
format = "json"

[report]
nats_url = "nats://localhost:4222"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scheduler.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Scheduler.Workers)
	}
	if cfg.Scheduler.TickRate != 100*time.Millisecond {
		t.Errorf("tick_rate = %s, want 100ms", cfg.Scheduler.TickRate)
	}
	if !cfg.Scheduler.AdaptiveCosts {
		t.Error("adaptive_costs not applied")
	}
	if cfg.Scheduler.CostSmoothing != 0.2 {
		t.Errorf("cost_smoothing = %v, want default 0.2", cfg.Scheduler.CostSmoothing)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Report.Subject != "ecsched.failures" {
		t.Errorf("subject = %q, want default", cfg.Report.Subject)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"negative workers", "[scheduler]\nworkers = -1\n", "workers"},
		{"zero tick rate", "[scheduler]\ntick_rate = \"0s\"\n", "tick_rate"},
		{"smoothing out of range", "[scheduler]\ncost_smoothing = 1.5\n", "cost_smoothing"},
		{"bad format", "[logging]\nformat = \"xml\"\n", "logging.format"},
		{"costs without dsn", "[costs]\nenabled = true\ndsn = \"\"\n", "costs.dsn"},
		{"malformed", "[scheduler\n", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPath(t *testing.T) {
	t.Setenv(EnvPath, "")
	if got := Path("config/ecsched.toml"); got != "config/ecsched.toml" {
		t.Errorf("Path = %q", got)
	}
	t.Setenv(EnvPath, "/etc/ecsched.toml")
	if got := Path("config/ecsched.toml"); got != "/etc/ecsched.toml" {
		t.Errorf("Path = %q", got)
	}
}
