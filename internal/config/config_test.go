package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/krisarmstrong/netbench/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()

	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}

	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}

	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}

	if cfg.NetIO.Backend != "auto" {
		t.Errorf("NetIO.Backend = %q, want %q", cfg.NetIO.Backend, "auto")
	}

	if cfg.NetIO.Queues != 1 {
		t.Errorf("NetIO.Queues = %d, want %d", cfg.NetIO.Queues, 1)
	}

	if cfg.Trial.WarmupDuration != 2*time.Second {
		t.Errorf("Trial.WarmupDuration = %v, want %v", cfg.Trial.WarmupDuration, 2*time.Second)
	}

	// Defaults fail validation until an interface name is set, since
	// there is no safe default interface to assume.
	cfg.NetIO.Interface = "eth0"
	if err := config.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() with interface set failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	yamlContent := `
netio:
  interface: "eth0"
  backend: "rawsocket"
metrics:
  addr: ":9200"
  path: "/custom-metrics"
log:
  level: "debug"
  format: "text"
trial:
  warmup_duration: "500ms"
  latency_reservoir_size: 5000
  convergence_tolerance_pct: 0.5
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.NetIO.Interface != "eth0" {
		t.Errorf("NetIO.Interface = %q, want %q", cfg.NetIO.Interface, "eth0")
	}

	if cfg.NetIO.Backend != "rawsocket" {
		t.Errorf("NetIO.Backend = %q, want %q", cfg.NetIO.Backend, "rawsocket")
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/custom-metrics")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}

	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	if cfg.Trial.WarmupDuration != 500*time.Millisecond {
		t.Errorf("Trial.WarmupDuration = %v, want %v", cfg.Trial.WarmupDuration, 500*time.Millisecond)
	}

	if cfg.Trial.LatencyReservoirSize != 5000 {
		t.Errorf("Trial.LatencyReservoirSize = %d, want %d", cfg.Trial.LatencyReservoirSize, 5000)
	}
}

func TestLoadMergesDefaults(t *testing.T) {
	t.Parallel()

	// Partial YAML: only override netio.interface and log.level.
	// Everything else should inherit from defaults.
	yamlContent := `
netio:
  interface: "eth1"
log:
  level: "warn"
`

	path := writeTemp(t, yamlContent)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.NetIO.Interface != "eth1" {
		t.Errorf("NetIO.Interface = %q, want %q", cfg.NetIO.Interface, "eth1")
	}

	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}

	// Default values should be preserved.
	if cfg.Metrics.Addr != ":9100" {
		t.Errorf("Metrics.Addr = %q, want default %q", cfg.Metrics.Addr, ":9100")
	}

	if cfg.NetIO.Backend != "auto" {
		t.Errorf("NetIO.Backend = %q, want default %q", cfg.NetIO.Backend, "auto")
	}

	if cfg.Trial.WarmupDuration != 2*time.Second {
		t.Errorf("Trial.WarmupDuration = %v, want default %v", cfg.Trial.WarmupDuration, 2*time.Second)
	}
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(*config.Config)
		wantErr error
	}{
		{
			name: "empty interface",
			modify: func(cfg *config.Config) {
				cfg.NetIO.Interface = ""
			},
			wantErr: config.ErrEmptyInterface,
		},
		{
			name: "invalid backend",
			modify: func(cfg *config.Config) {
				cfg.NetIO.Interface = "eth0"
				cfg.NetIO.Backend = "bogus"
			},
			wantErr: config.ErrInvalidBackend,
		},
		{
			name: "zero queues",
			modify: func(cfg *config.Config) {
				cfg.NetIO.Interface = "eth0"
				cfg.NetIO.Queues = 0
			},
			wantErr: config.ErrInvalidQueues,
		},
		{
			name: "zero reservoir size",
			modify: func(cfg *config.Config) {
				cfg.NetIO.Interface = "eth0"
				cfg.Trial.LatencyReservoirSize = 0
			},
			wantErr: config.ErrInvalidReservoirSize,
		},
		{
			name: "tolerance out of range",
			modify: func(cfg *config.Config) {
				cfg.NetIO.Interface = "eth0"
				cfg.Trial.ConvergenceTolerancePct = 0
			},
			wantErr: config.ErrInvalidTolerance,
		},
		{
			name: "tolerance above 100",
			modify: func(cfg *config.Config) {
				cfg.NetIO.Interface = "eth0"
				cfg.Trial.ConvergenceTolerancePct = 150
			},
			wantErr: config.ErrInvalidTolerance,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			tt.modify(cfg)

			err := config.Validate(cfg)
			if err == nil {
				t.Fatal("Validate() returned nil, want error")
			}

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input string
		want  slog.Level
	}{
		{input: "debug", want: slog.LevelDebug},
		{input: "DEBUG", want: slog.LevelDebug},
		{input: "info", want: slog.LevelInfo},
		{input: "INFO", want: slog.LevelInfo},
		{input: "warn", want: slog.LevelWarn},
		{input: "WARN", want: slog.LevelWarn},
		{input: "error", want: slog.LevelError},
		{input: "Error", want: slog.LevelError},
		{input: "unknown", want: slog.LevelInfo},
		{input: "", want: slog.LevelInfo},
		{input: "trace", want: slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got := config.ParseLogLevel(tt.input)
			if got != tt.want {
				t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// -------------------------------------------------------------------------
// Environment Variable Override Tests
// -------------------------------------------------------------------------

func TestLoadEnvOverrides(t *testing.T) {
	// Environment variable tests cannot be parallel because they modify
	// process-wide state (os.Setenv).

	yamlContent := `
netio:
  interface: "eth0"
log:
  level: "info"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("NETBENCH_NETIO_INTERFACE", "eth2")
	t.Setenv("NETBENCH_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.NetIO.Interface != "eth2" {
		t.Errorf("NetIO.Interface = %q, want %q (from env)", cfg.NetIO.Interface, "eth2")
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q (from env)", cfg.Log.Level, "debug")
	}
}

func TestLoadEnvOverridesMetrics(t *testing.T) {
	yamlContent := `
netio:
  interface: "eth0"
metrics:
  addr: ":9100"
  path: "/metrics"
`
	path := writeTemp(t, yamlContent)

	t.Setenv("NETBENCH_METRICS_ADDR", ":9200")
	t.Setenv("NETBENCH_METRICS_PATH", "/custom")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}

	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q (from env)", cfg.Metrics.Addr, ":9200")
	}

	if cfg.Metrics.Path != "/custom" {
		t.Errorf("Metrics.Path = %q, want %q (from env)", cfg.Metrics.Path, "/custom")
	}
}

// writeTemp creates a temporary YAML file and returns its path.
// The file is automatically cleaned up when the test finishes.
func writeTemp(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "netbench.yml")

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	return path
}
