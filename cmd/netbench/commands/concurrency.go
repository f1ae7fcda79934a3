package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/krisarmstrong/netbench/internal/engine"
)

var (
	subTestType    string
	reverseRatePct float64
	portInterfaces []string
)

func bidirectionalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bidirectional",
		Short: "run a sub-test's forward direction and a reverse-direction trial concurrently",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := buildBaseConfig()
			if err != nil {
				return err
			}
			if subTestType == "" {
				return fmt.Errorf("--sub-test-type is required")
			}
			cfg.SubTestType = subTestType
			cfg.ReverseRatePct = reverseRatePct
			return runEngine("bidirectional", cfg)
		},
	}
	cmd.Flags().StringVar(&subTestType, "sub-test-type", "rfc2544-throughput", "registered test type to run in each direction")
	cmd.Flags().Float64Var(&reverseRatePct, "reverse-rate-pct", 0, "reverse-direction offered rate; 0 matches --rate-pct")
	return cmd
}

func multiPortCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multi-port",
		Short: "run a sub-test independently across multiple interfaces",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := buildBaseConfig()
			if err != nil {
				return err
			}
			if subTestType == "" {
				return fmt.Errorf("--sub-test-type is required")
			}
			if len(portInterfaces) == 0 {
				return fmt.Errorf("--ports requires at least one interface")
			}
			cfg.SubTestType = subTestType
			for _, iface := range portInterfaces {
				iface = strings.TrimSpace(iface)
				if iface == "" {
					continue
				}
				cfg.Ports = append(cfg.Ports, engine.PortConfig{Interface: iface, Enabled: true})
			}
			return runEngine("multi-port", cfg)
		},
	}
	cmd.Flags().StringVar(&subTestType, "sub-test-type", "rfc2544-throughput", "registered test type to run on each port")
	cmd.Flags().StringSliceVar(&portInterfaces, "ports", nil, "comma-separated list of interfaces to drive independently")
	return cmd
}
