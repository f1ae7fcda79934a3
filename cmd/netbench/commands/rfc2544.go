package commands

import (
	"github.com/spf13/cobra"
)

func rfc2544Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rfc2544",
		Short: "RFC 2544 throughput, latency, frame loss, and burst tests",
	}

	cmd.AddCommand(rfc2544SubCmd("throughput", "rfc2544-throughput", "find the highest loss-free offered load"))
	cmd.AddCommand(rfc2544SubCmd("throughput-imix", "rfc2544-throughput-imix", "throughput search across the standard IMIX frame size mix"))
	cmd.AddCommand(rfc2544SubCmd("latency", "rfc2544-latency", "measure latency across a sweep of offered loads"))
	cmd.AddCommand(rfc2544SubCmd("frame-loss", "rfc2544-frameloss", "measure frame loss across a sweep of offered loads"))
	cmd.AddCommand(rfc2544SubCmd("back-to-back", "rfc2544-backtoback", "find the largest loss-free burst size"))
	cmd.AddCommand(rfc2544SubCmd("recovery", "rfc2544-recovery", "measure recovery time after a 110% overload"))
	cmd.AddCommand(rfc2544SubCmd("reset", "rfc2544-reset", "measure recovery time after a simulated device reset"))

	return cmd
}

func rfc2544SubCmd(use, testType, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := buildBaseConfig()
			if err != nil {
				return err
			}
			return runEngine(testType, cfg)
		},
	}
}
