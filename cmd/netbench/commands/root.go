// Package commands implements the netbench CLI: a thin cobra driver
// that builds an engine.Config, runs one EngineContext, and renders
// the result.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/krisarmstrong/netbench/internal/engine"
	"github.com/krisarmstrong/netbench/internal/metrics"
	"github.com/krisarmstrong/netbench/internal/platforminfo"
	"github.com/krisarmstrong/netbench/internal/sigpacket"

	_ "github.com/krisarmstrong/netbench/internal/testmodes"
)

// Shared persistent flags, set on rootCmd and read by every subcommand.
var (
	ifaceName    string
	outputFormat string
	verbose      bool

	frameSize     int
	ratePct       float64
	durationFlag  string
	warmupFlag    string
	dstMAC        string
	dstIP         string
	dstPort       uint16
	srcPort       uint16
	remoteAddr    string
	reservoirSize int
	acceptLoss    float64
	resolutionPct float64
	maxIterations int
)

var rootCmd = &cobra.Command{
	Use:   "netbench",
	Short: "Standards-based network benchmark generator and analyzer",
	Long: "netbench drives RFC 2544/2889/6349, ITU-T Y.1564/Y.1731, MEF 48/49, " +
		"and IEEE 802.1Qbv TSN measurements against a directly attached interface " +
		"or cooperating reflector.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ifaceName, "interface", "", "network interface to bind to (required)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "output format: table, json")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable debug logging")

	rootCmd.PersistentFlags().IntVar(&frameSize, "frame-size", 64, "frame size in bytes")
	rootCmd.PersistentFlags().Float64Var(&ratePct, "rate-pct", 100, "offered load as a percentage of line rate")
	rootCmd.PersistentFlags().StringVar(&durationFlag, "duration", "10s", "measurement duration")
	rootCmd.PersistentFlags().StringVar(&warmupFlag, "warmup", "2s", "warmup duration before measurement")
	rootCmd.PersistentFlags().StringVar(&dstMAC, "dst-mac", "", "destination MAC address")
	rootCmd.PersistentFlags().StringVar(&dstIP, "dst-ip", "", "destination IP address")
	rootCmd.PersistentFlags().Uint16Var(&dstPort, "dst-port", 7, "destination UDP port")
	rootCmd.PersistentFlags().Uint16Var(&srcPort, "src-port", 50000, "source UDP port")
	rootCmd.PersistentFlags().StringVar(&remoteAddr, "remote", "", "remote host:port for RFC 6349 TCP throughput")
	rootCmd.PersistentFlags().IntVar(&reservoirSize, "latency-samples", 100_000, "latency reservoir capacity")
	rootCmd.PersistentFlags().Float64Var(&acceptLoss, "acceptable-loss-pct", 0, "acceptable frame loss percentage for throughput search")
	rootCmd.PersistentFlags().Float64Var(&resolutionPct, "resolution-pct", 0.1, "binary search stopping resolution")
	rootCmd.PersistentFlags().IntVar(&maxIterations, "max-iterations", 20, "binary search iteration cap")

	rootCmd.AddCommand(rfc2544Cmd())
	rootCmd.AddCommand(rfc2889Cmd())
	rootCmd.AddCommand(rfc6349Cmd())
	rootCmd.AddCommand(y1564Cmd())
	rootCmd.AddCommand(mef48Cmd())
	rootCmd.AddCommand(y1731Cmd())
	rootCmd.AddCommand(tsnCmd())
	rootCmd.AddCommand(bidirectionalCmd())
	rootCmd.AddCommand(multiPortCmd())
	rootCmd.AddCommand(versionCmd())
}

// Execute runs the root command and exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// buildBaseConfig parses the shared persistent flags into a partial
// engine.Config; subcommands fill in TestType and family-specific
// fields before calling runEngine.
func buildBaseConfig() (engine.Config, error) {
	duration, err := time.ParseDuration(durationFlag)
	if err != nil {
		return engine.Config{}, fmt.Errorf("parse --duration: %w", err)
	}
	warmup, err := time.ParseDuration(warmupFlag)
	if err != nil {
		return engine.Config{}, fmt.Errorf("parse --warmup: %w", err)
	}

	cfg := engine.Config{
		FrameSize:         frameSize,
		RatePct:           ratePct,
		Duration:          duration,
		Warmup:            warmup,
		AcceptableLossPct: acceptLoss,
		ResolutionPct:     resolutionPct,
		MaxIterations:     maxIterations,
		ReservoirSize:     reservoirSize,
		Mode:              sigpacket.ModeIPv4,
		LocalPort:         srcPort,
		RemotePort:        dstPort,
		TCPTarget:         remoteAddr,
	}

	if dstMAC != "" {
		mac, err := net.ParseMAC(dstMAC)
		if err != nil {
			return engine.Config{}, fmt.Errorf("parse --dst-mac: %w", err)
		}
		copy(cfg.RemoteMAC[:], mac)
	}
	if dstIP != "" {
		ip := net.ParseIP(dstIP)
		if ip == nil {
			return engine.Config{}, fmt.Errorf("parse --dst-ip: invalid address %q", dstIP)
		}
		if v4 := ip.To4(); v4 != nil {
			copy(cfg.RemoteIP[:4], v4)
		} else {
			cfg.Mode = sigpacket.ModeIPv6
			copy(cfg.RemoteIP[:], ip.To16())
		}
	}

	return cfg, nil
}

// runEngine wires a logger, metrics collector, and platform-info
// service around one EngineContext run, then renders the result.
func runEngine(testType string, cfg engine.Config) error {
	cfg.TestType = testType

	logger := newLogger()
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	e := engine.New(logger, collector, platforminfo.NewLinuxService())

	ctx := context.Background()

	if err := e.Init(ctx, ifaceName); err != nil {
		return fmt.Errorf("init engine: %w", err)
	}
	defer func() {
		if err := e.Cleanup(); err != nil {
			logger.Warn("engine cleanup failed", slog.String("error", err.Error()))
		}
	}()

	if err := e.Configure(cfg); err != nil {
		return fmt.Errorf("configure engine: %w", err)
	}

	if err := e.Run(ctx); err != nil {
		return fmt.Errorf("run %s: %w", testType, err)
	}

	return renderResults(testType, e.Results())
}
