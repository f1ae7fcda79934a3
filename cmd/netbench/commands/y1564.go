package commands

import (
	"github.com/spf13/cobra"

	"github.com/krisarmstrong/netbench/internal/engine"
)

var (
	serviceName     string
	serviceID       int
	cirMbps         float64
	eirMbps         float64
	cbsBytes        int
	ebsBytes        int
	fdThresholdMS   float64
	fdvThresholdMS  float64
	flrThresholdPct float64
	serviceDSCP     uint8
)

func addServiceFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&serviceName, "service-name", "default", "service name")
	cmd.Flags().IntVar(&serviceID, "service-id", 1, "service id")
	cmd.Flags().Float64Var(&cirMbps, "cir-mbps", 10, "committed information rate in Mb/s")
	cmd.Flags().Float64Var(&eirMbps, "eir-mbps", 0, "excess information rate in Mb/s")
	cmd.Flags().IntVar(&cbsBytes, "cbs-bytes", 16_000, "committed burst size in bytes")
	cmd.Flags().IntVar(&ebsBytes, "ebs-bytes", 0, "excess burst size in bytes")
	cmd.Flags().Float64Var(&fdThresholdMS, "fd-threshold-ms", 10, "frame delay threshold in ms")
	cmd.Flags().Float64Var(&fdvThresholdMS, "fdv-threshold-ms", 3, "frame delay variation threshold in ms")
	cmd.Flags().Float64Var(&flrThresholdPct, "flr-threshold-pct", 0.001, "frame loss ratio threshold in percent")
	cmd.Flags().Uint8Var(&serviceDSCP, "dscp", 0, "DSCP value to mark on this service's traffic")
}

func buildService() engine.Y1564Service {
	return engine.Y1564Service{
		ID:              serviceID,
		Name:            serviceName,
		Enabled:         true,
		CIRMbps:         cirMbps,
		EIRMbps:         eirMbps,
		CBSBytes:        cbsBytes,
		EBSBytes:        ebsBytes,
		FDThresholdMS:   fdThresholdMS,
		FDVThresholdMS:  fdvThresholdMS,
		FLRThresholdPct: flrThresholdPct,
		FrameSize:       frameSize,
		DSCP:            serviceDSCP,
	}
}

func y1564Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "y1564",
		Short: "ITU-T Y.1564 Ethernet service activation tests",
	}

	configCmd := &cobra.Command{
		Use:   "service-configuration",
		Short: "run the CIR-step service configuration test",
		Args:  cobra.NoArgs,
		RunE:  y1564RunE("y1564-service-configuration"),
	}
	addServiceFlags(configCmd)

	perfCmd := &cobra.Command{
		Use:   "service-performance",
		Short: "run the long-duration service performance test at 100% CIR",
		Args:  cobra.NoArgs,
		RunE:  y1564RunE("y1564-service-performance"),
	}
	addServiceFlags(perfCmd)

	cmd.AddCommand(configCmd)
	cmd.AddCommand(perfCmd)
	return cmd
}

func y1564RunE(testType string) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		cfg, err := buildBaseConfig()
		if err != nil {
			return err
		}
		cfg.Services = []engine.Y1564Service{buildService()}
		return runEngine(testType, cfg)
	}
}
