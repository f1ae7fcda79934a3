package commands

import (
	"github.com/spf13/cobra"
)

func rfc2889Cmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rfc2889",
		Short: "RFC 2889 LAN switch benchmarks",
	}

	cmd.AddCommand(rfc2544SubCmd("forwarding-rate", "rfc2889-forwarding-rate", "unicast forwarding rate"))
	cmd.AddCommand(rfc2544SubCmd("broadcast-forwarding", "rfc2889-broadcast-forwarding", "broadcast forwarding rate"))
	cmd.AddCommand(rfc2544SubCmd("congestion", "rfc2889-congestion", "congestion threshold under oversubscription"))
	cmd.AddCommand(rfc2544SubCmd("address-caching", "rfc2889-address-caching", "address table capacity (not implemented)"))
	cmd.AddCommand(rfc2544SubCmd("address-learning", "rfc2889-address-learning", "address learning rate (not implemented)"))

	return cmd
}
