package commands

import (
	"errors"

	"github.com/spf13/cobra"
)

var errRemoteRequired = errors.New("--remote is required for rfc6349")

func rfc6349Cmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rfc6349",
		Short: "RFC 6349 TCP throughput test using a real TCP connection",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if remoteAddr == "" {
				return errRemoteRequired
			}
			cfg, err := buildBaseConfig()
			if err != nil {
				return err
			}
			return runEngine("rfc6349-tcp-throughput", cfg)
		},
	}
}
