package commands

import (
	"github.com/spf13/cobra"

	"github.com/krisarmstrong/netbench/internal/engine"
)

func tsnCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tsn",
		Short: "IEEE 802.1Qbv time-sensitive networking tests",
	}

	cmd.AddCommand(rfc2544SubCmd("gate-timing", "tsn-gate-timing", "gate window latency and jitter for one traffic class"))
	cmd.AddCommand(rfc2544SubCmd("isolation", "tsn-isolation", "traffic class isolation under saturation (not implemented)"))
	cmd.AddCommand(tsnPerClassLatencyCmd())
	cmd.AddCommand(rfc2544SubCmd("ptp-sync", "tsn-ptp-sync", "PTP synchronization stability approximation"))

	return cmd
}

func tsnPerClassLatencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "per-class-latency",
		Short: "latency per configured traffic class",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := buildBaseConfig()
			if err != nil {
				return err
			}
			cfg.Services = []engine.Y1564Service{buildService()}
			return runEngine("tsn-per-class-latency", cfg)
		},
	}
	addServiceFlags(cmd)
	return cmd
}
