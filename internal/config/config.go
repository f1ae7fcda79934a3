// Package config manages netbench run configuration using koanf/v2.
//
// Supports YAML files and environment variables; CLI flags are merged
// in by cmd/netbench on top of the loaded Config.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete engine configuration for one run.
type Config struct {
	Metrics MetricsConfig `koanf:"metrics"`
	Log     LogConfig     `koanf:"log"`
	NetIO   NetIOConfig   `koanf:"netio"`
	Trial   TrialConfig   `koanf:"trial"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// NetIOConfig holds platform I/O selection and sizing.
type NetIOConfig struct {
	// Interface is the network interface to bind the backend to.
	Interface string `koanf:"interface"`
	// Backend selects "auto", "rawsocket", "xdp", or "linerate".
	Backend string `koanf:"backend"`
	// Queues is the number of RX/TX queues to drive in parallel.
	Queues int `koanf:"queues"`
	// UMEMFrames is the kernel-bypass backend's frame pool size.
	UMEMFrames int `koanf:"umem_frames"`
	// FrameSize is the byte size of each UMEM frame.
	FrameSize int `koanf:"frame_size"`
	// Promiscuous enables promiscuous mode on the raw-socket backend.
	Promiscuous bool `koanf:"promiscuous"`
}

// TrialConfig holds defaults shared by every test-mode dispatcher.
type TrialConfig struct {
	// WarmupDuration is how long a trial runs before measurement starts.
	WarmupDuration time.Duration `koanf:"warmup_duration"`
	// LatencyReservoirSize caps how many latency samples are retained
	// per trial for statistics.
	LatencyReservoirSize int `koanf:"latency_reservoir_size"`
	// ConvergenceTolerancePct is the binary-search stopping criterion
	// for RFC 2544/Y.1564 throughput convergence.
	ConvergenceTolerancePct float64 `koanf:"convergence_tolerance_pct"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		NetIO: NetIOConfig{
			Backend:    "auto",
			Queues:     1,
			UMEMFrames: 4096,
			FrameSize:  2048,
		},
		Trial: TrialConfig{
			WarmupDuration:          2 * time.Second,
			LatencyReservoirSize:    100_000,
			ConvergenceTolerancePct: 0.1,
		},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for netbench configuration.
// Variables are named NETBENCH_<section>_<key>, e.g. NETBENCH_NETIO_INTERFACE.
const envPrefix = "NETBENCH_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (NETBENCH_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults. An empty path skips the file layer
// entirely, leaving defaults plus environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NETBENCH_NETIO_INTERFACE -> netio.interface.
// Strips the NETBENCH_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"metrics.addr":                      defaults.Metrics.Addr,
		"metrics.path":                      defaults.Metrics.Path,
		"log.level":                         defaults.Log.Level,
		"log.format":                        defaults.Log.Format,
		"netio.interface":                   defaults.NetIO.Interface,
		"netio.backend":                     defaults.NetIO.Backend,
		"netio.queues":                      defaults.NetIO.Queues,
		"netio.umem_frames":                 defaults.NetIO.UMEMFrames,
		"netio.frame_size":                  defaults.NetIO.FrameSize,
		"netio.promiscuous":                 defaults.NetIO.Promiscuous,
		"trial.warmup_duration":             defaults.Trial.WarmupDuration.String(),
		"trial.latency_reservoir_size":      defaults.Trial.LatencyReservoirSize,
		"trial.convergence_tolerance_pct":   defaults.Trial.ConvergenceTolerancePct,
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyInterface indicates no network interface was configured.
	ErrEmptyInterface = errors.New("netio.interface must not be empty")

	// ErrInvalidBackend indicates an unrecognized backend name.
	ErrInvalidBackend = errors.New("netio.backend must be auto, rawsocket, xdp, or linerate")

	// ErrInvalidQueues indicates a non-positive queue count.
	ErrInvalidQueues = errors.New("netio.queues must be >= 1")

	// ErrInvalidReservoirSize indicates a non-positive latency reservoir size.
	ErrInvalidReservoirSize = errors.New("trial.latency_reservoir_size must be > 0")

	// ErrInvalidTolerance indicates a convergence tolerance outside (0, 100].
	ErrInvalidTolerance = errors.New("trial.convergence_tolerance_pct must be in (0, 100]")
)

// ValidBackends lists the recognized backend name strings.
var ValidBackends = map[string]bool{
	"auto":      true,
	"rawsocket": true,
	"xdp":       true,
	"linerate":  true,
}

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.NetIO.Interface == "" {
		return ErrEmptyInterface
	}

	if !ValidBackends[cfg.NetIO.Backend] {
		return fmt.Errorf("netio.backend %q: %w", cfg.NetIO.Backend, ErrInvalidBackend)
	}

	if cfg.NetIO.Queues < 1 {
		return ErrInvalidQueues
	}

	if cfg.Trial.LatencyReservoirSize <= 0 {
		return ErrInvalidReservoirSize
	}

	if cfg.Trial.ConvergenceTolerancePct <= 0 || cfg.Trial.ConvergenceTolerancePct > 100 {
		return ErrInvalidTolerance
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
