// Package netio abstracts the platform packet I/O a trial drives: a raw
// AF_PACKET fallback, an AF_XDP kernel-bypass path, and a TPACKET_V3
// line-rate ring, all behind one Backend interface so the trial executor
// never branches on which one it was handed.
package netio

import (
	"context"
	"errors"
	"fmt"
)

// -------------------------------------------------------------------------
// Timestamp quality
// -------------------------------------------------------------------------

// TimestampSource ranks where a Frame's ingress timestamp came from, best
// first. A backend reports the best source it actually used so callers
// (and the platforminfo service) can judge measurement quality.
type TimestampSource uint8

const (
	// TimestampHardware is a NIC-supplied timestamp (SO_TIMESTAMPING raw,
	// or TSC/HPET-derived on the line-rate backend).
	TimestampHardware TimestampSource = iota
	// TimestampSoftware is a kernel-applied receive timestamp.
	TimestampSoftware
	// TimestampLocal is a userspace clock read taken as soon as possible
	// after the frame was copied out of the ring, used only when neither
	// hardware nor software timestamps are available.
	TimestampLocal
)

// -------------------------------------------------------------------------
// Frame
// -------------------------------------------------------------------------

// Frame is one packet handed across the Backend boundary, in either
// direction. Data aliases backend-owned memory (a UMEM slot or a ring
// buffer slice); callers must not retain it past the matching Release
// call on recv, or past the send_batch call returning on send.
type Frame struct {
	Data      []byte
	TimestampNS uint64
	Source    TimestampSource
	// handle is backend-private bookkeeping (UMEM frame index, ring slot).
	handle uint64
}

// -------------------------------------------------------------------------
// Worker handle
// -------------------------------------------------------------------------

// Worker identifies one queue/thread of parallelism within a Backend. A
// single-queue backend has exactly one Worker with index 0.
type Worker struct {
	Index int
}

// -------------------------------------------------------------------------
// Backend
// -------------------------------------------------------------------------

// Backend is the platform I/O contract every packet-generation backend
// implements: raw-socket fallback, AF_XDP kernel-bypass, and TPACKET_V3
// line-rate. All operations are batch-oriented and must be safe to call
// concurrently from different Workers of the same Backend; a single
// Worker is driven by exactly one goroutine at a time.
type Backend interface {
	// Init binds worker to its queue of the configured interface,
	// allocates rings/buffers, and reports the interface's hardware
	// address. It is called once per worker before any Send/Recv call.
	Init(ctx context.Context, worker Worker) (localMAC [6]byte, err error)

	// SendBatch attempts to transmit every packet in batch, in order.
	// The return value is the number actually transmitted; a partial
	// count is not an error. Each []byte in batch must already contain
	// a complete frame (Ethernet header onward).
	SendBatch(worker Worker, batch [][]byte) (sent int, err error)

	// RecvBatch is non-blocking. It fills out with up to len(out)
	// received frames and returns how many were filled. Frames
	// returned here must be passed to ReleaseBatch once the caller is
	// done reading them.
	RecvBatch(worker Worker, out []Frame) (received int, err error)

	// ReleaseBatch returns ring slots backing frames to the backend so
	// it may re-offer them to the NIC. Frames not obtained from
	// RecvBatch on this Worker must not be passed here.
	ReleaseBatch(worker Worker, frames []Frame) error

	// Cleanup performs quiescent teardown of a worker's resources. It
	// is idempotent and safe to call after a failed Init.
	Cleanup(worker Worker) error

	// Name identifies the backend for logging and result metadata
	// ("rawsocket", "xdp", "linerate").
	Name() string
}

// -------------------------------------------------------------------------
// Sentinel errors
// -------------------------------------------------------------------------

var (
	// ErrInitFailed wraps a fatal per-worker initialization failure.
	ErrInitFailed = errors.New("backend init failed")

	// ErrBackendClosed indicates an operation on a torn-down backend.
	ErrBackendClosed = errors.New("backend closed")

	// ErrUnsupportedBackend indicates the requested backend is not
	// available on this platform or build.
	ErrUnsupportedBackend = errors.New("backend unsupported on this platform")

	// ErrNoInterface indicates the configured interface name does not
	// resolve to a live link.
	ErrNoInterface = errors.New("interface not found")
)

// Kind names a selectable backend implementation.
type Kind string

const (
	KindRawSocket Kind = "rawsocket"
	KindXDP       Kind = "xdp"
	KindLineRate  Kind = "linerate"
	// KindAuto lets Select probe for the best available backend,
	// falling back to KindRawSocket when nothing more capable works.
	KindAuto Kind = "auto"
)

// SelectConfig parameterizes backend construction and selection.
type SelectConfig struct {
	Interface  string
	Kind       Kind
	Queues     int
	UMEMFrames int
	FrameSize  int
	Promisc    bool
}

func wrapInit(backend string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", backend, ErrInitFailed, err)
}
