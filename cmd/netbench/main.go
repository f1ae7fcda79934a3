// Command netbench drives standards-based network benchmarks (RFC
// 2544/2889/6349, ITU-T Y.1564/Y.1731, MEF 48/49, IEEE 802.1Qbv TSN)
// against a directly attached interface.
package main

import (
	"github.com/krisarmstrong/netbench/cmd/netbench/commands"
)

func main() {
	commands.Execute()
}
