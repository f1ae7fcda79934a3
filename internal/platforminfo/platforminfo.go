// Package platforminfo is the external "platform-info" service the
// engine queries at Init instead of hard-coding interface speed, MAC,
// MTU, and timestamp/XDP capability: given an interface name, it
// reports what the kernel actually knows about that link.
package platforminfo

import "context"

// Info is everything the engine needs to know about a link before
// picking a backend and sizing its pacer.
type Info struct {
	SpeedBps       uint64
	MAC            [6]byte
	MTU            int
	Up             bool
	HWTimestamp    bool
	XDPSupport     bool
	Driver         string
}

// Service is the platform-info contract. Init queries it once per run;
// a reimplementation for testing may return canned values.
type Service interface {
	Query(ctx context.Context, ifaceName string) (Info, error)
}
