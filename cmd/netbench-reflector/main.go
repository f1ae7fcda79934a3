// Command netbench-reflector is a minimal cooperating endpoint for
// local end-to-end testing: it listens on a UDP port and reflects
// every frame carrying a known test signature back to its sender,
// simulating the far-end reflection a real DUT/switch performs when
// forwarding netbench traffic back toward the generator.
package main

import (
	"flag"
	"log/slog"
	"net"
	"os"

	"github.com/krisarmstrong/netbench/internal/sigpacket"
)

func main() {
	addr := flag.String("addr", ":7", "UDP address to listen on")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	udpAddr, err := net.ResolveUDPAddr("udp", *addr)
	if err != nil {
		logger.Error("resolve address", slog.String("error", err.Error()))
		os.Exit(1)
	}

	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		logger.Error("listen", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer conn.Close()

	logger.Info("reflector listening", slog.String("addr", *addr))

	buf := make([]byte, 9000)
	for {
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			logger.Warn("read", slog.String("error", err.Error()))
			continue
		}

		if !sigpacket.IsKnownSignature(buf[:n]) {
			continue
		}

		if _, err := conn.WriteToUDP(buf[:n], remote); err != nil {
			logger.Warn("write", slog.String("remote", remote.String()), slog.String("error", err.Error()))
		}
	}
}
