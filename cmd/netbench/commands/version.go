package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/krisarmstrong/netbench/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print netbench build information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.Full("netbench"))
		},
	}
}
