package commands

import (
	"github.com/spf13/cobra"
)

func y1731Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "y1731",
		Short: "ITU-T Y.1731 Ethernet OAM performance measurements",
	}

	cmd.AddCommand(rfc2544SubCmd("delay", "y1731-delay", "frame delay and delay variation (ETH-DM)"))
	cmd.AddCommand(rfc2544SubCmd("loss", "y1731-loss", "frame loss ratio (ETH-LM)"))
	cmd.AddCommand(rfc2544SubCmd("synthetic-loss", "y1731-synthetic-loss", "synthetic frame loss (ETH-SLM)"))
	cmd.AddCommand(rfc2544SubCmd("loopback", "y1731-loopback", "continuity check (ETH-LB)"))

	return cmd
}
