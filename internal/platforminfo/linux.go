//go:build linux

package platforminfo

import (
	"context"
	"fmt"

	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"
)

// LinuxService queries the running kernel via netlink (link attributes)
// and ethtool (speed, driver, offload features) rather than trusting
// caller-supplied configuration.
type LinuxService struct{}

// NewLinuxService returns the default netlink/ethtool-backed
// platform-info service.
func NewLinuxService() *LinuxService { return &LinuxService{} }

// Query reports the live state of ifaceName.
func (s *LinuxService) Query(_ context.Context, ifaceName string) (Info, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return Info{}, fmt.Errorf("platforminfo: link %s: %w", ifaceName, err)
	}
	attrs := link.Attrs()

	info := Info{
		MTU: attrs.MTU,
		Up:  attrs.OperState == netlink.OperUp,
	}
	if len(attrs.HardwareAddr) == 6 {
		copy(info.MAC[:], attrs.HardwareAddr)
	}

	eth, err := ethtool.NewEthtool()
	if err != nil {
		return info, fmt.Errorf("platforminfo: ethtool handle: %w", err)
	}
	defer eth.Close()

	if speedMbps, err := eth.CmdGetMapped(ifaceName); err == nil {
		if v, ok := speedMbps["Speed"]; ok {
			info.SpeedBps = uint64(v) * 1_000_000
		}
	}

	if driver, err := eth.DriverName(ifaceName); err == nil {
		info.Driver = driver
	}

	if features, err := eth.Features(ifaceName); err == nil {
		info.HWTimestamp = features["hw-tc-offload"]
	}

	info.XDPSupport = isKnownXDPDriver(info.Driver)

	return info, nil
}

// knownXDPDrivers lists the NIC drivers for which Query reports
// XDPSupport. Backend selection does not consult it; netio probes for
// AF_XDP by opening a socket.
var knownXDPDrivers = map[string]bool{
	"i40e":     true,
	"ixgbe":    true,
	"mlx5_core": true,
	"ice":      true,
	"virtio_net": true,
	"veth":     true,
}

func isKnownXDPDriver(driver string) bool {
	return knownXDPDrivers[driver]
}
