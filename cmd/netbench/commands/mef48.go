package commands

import (
	"github.com/spf13/cobra"

	"github.com/krisarmstrong/netbench/internal/engine"
)

// mef48Cmd reuses the Y.1564 CIR-step engine: MEF 48/49 describes the
// same service activation procedure over microsecond/kbit-s framing,
// not a different algorithm.
func mef48Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mef48",
		Short: "MEF 48/49 Ethernet service activation and SLA validation",
	}

	configCmd := &cobra.Command{
		Use:   "service-configuration",
		Short: "run the CIR-step service configuration test",
		Args:  cobra.NoArgs,
		RunE:  mef48RunE("mef48-service-configuration"),
	}
	addServiceFlags(configCmd)

	perfCmd := &cobra.Command{
		Use:   "service-performance",
		Short: "run the long-duration service performance test at 100% CIR",
		Args:  cobra.NoArgs,
		RunE:  mef48RunE("mef48-service-performance"),
	}
	addServiceFlags(perfCmd)

	cmd.AddCommand(configCmd)
	cmd.AddCommand(perfCmd)
	return cmd
}

func mef48RunE(testType string) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, _ []string) error {
		cfg, err := buildBaseConfig()
		if err != nil {
			return err
		}
		cfg.Services = []engine.Y1564Service{buildService()}
		return runEngine(testType, cfg)
	}
}
