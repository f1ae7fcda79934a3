//go:build linux

package netio

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"
	"unsafe"

	"github.com/mdlayher/packet"
	"golang.org/x/sys/unix"
)

// RawSocketBackend is the fallback Backend: one AF_PACKET socket per
// worker, bound to the interface in promiscuous mode. The socket
// itself is opened, bound, and switched into promiscuous mode through
// mdlayher/packet rather than hand-rolled unix.Socket/Bind/Mreq calls;
// send is a blocking sendto on the underlying fd, and receive uses
// recvmsg with SO_TIMESTAMPING control messages so RecvBatch can
// report hardware or software ingress timestamps, falling back to a
// local clock read when neither is present (mdlayher/packet's own
// ReadFrom has no path for ancillary timestamp data, so the raw fd is
// driven directly for both send and receive once the connection is
// established).
type RawSocketBackend struct {
	ifi     *net.Interface
	promisc bool

	mu      sync.Mutex
	workers map[int]*rawWorkerState
	closed  bool
}

type rawWorkerState struct {
	conn *packet.Conn
	fd   int
}

// NewRawSocketBackend resolves ifaceName to a kernel interface. The
// socket itself is opened per worker in Init.
func NewRawSocketBackend(ifaceName string, promisc bool) (*RawSocketBackend, error) {
	ifi, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("rawsocket: resolve %s: %w: %w", ifaceName, ErrNoInterface, err)
	}
	return &RawSocketBackend{
		ifi:     ifi,
		promisc: promisc,
		workers: make(map[int]*rawWorkerState),
	}, nil
}

// Name identifies this backend.
func (b *RawSocketBackend) Name() string { return string(KindRawSocket) }

// Init opens one AF_PACKET SOCK_RAW socket bound to the interface via
// mdlayher/packet, enables promiscuous mode if requested through
// Conn.SetPromiscuous, and enables SO_TIMESTAMPING on the underlying
// fd for RX hardware/software timestamps. It reads the interface's MAC
// address via an ordinary net.Interface lookup, not via the raw socket.
func (b *RawSocketBackend) Init(_ context.Context, worker Worker) ([6]byte, error) {
	var localMAC [6]byte
	copy(localMAC[:], b.ifi.HardwareAddr)

	conn, err := packet.Listen(b.ifi, packet.Raw, unix.ETH_P_ALL, nil)
	if err != nil {
		return localMAC, wrapInit(b.Name(), fmt.Errorf("listen: %w", err))
	}

	if b.promisc {
		if err := conn.SetPromiscuous(true); err != nil {
			conn.Close()
			return localMAC, wrapInit(b.Name(), fmt.Errorf("promisc: %w", err))
		}
	}

	rc, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return localMAC, wrapInit(b.Name(), fmt.Errorf("syscall conn: %w", err))
	}

	// The fd is captured once here and used directly by SendBatch/
	// RecvBatch afterward: both do their own non-blocking recvmsg/send
	// syscalls rather than going through Conn's Read/WriteTo, so there
	// is no concurrent access to guard against through rc.Control.
	var fd int
	if ctlErr := rc.Control(func(s uintptr) {
		fd = int(s)

		const timestampFlags = unix.SOF_TIMESTAMPING_RX_HARDWARE |
			unix.SOF_TIMESTAMPING_RX_SOFTWARE |
			unix.SOF_TIMESTAMPING_SOFTWARE |
			unix.SOF_TIMESTAMPING_RAW_HARDWARE
		// Hardware timestamping is opportunistic; a NIC/driver that
		// doesn't support it still works, degraded to the local clock.
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_TIMESTAMPING, timestampFlags)
	}); ctlErr != nil {
		conn.Close()
		return localMAC, wrapInit(b.Name(), fmt.Errorf("syscall control: %w", ctlErr))
	}

	b.mu.Lock()
	b.workers[worker.Index] = &rawWorkerState{conn: conn, fd: fd}
	b.mu.Unlock()

	return localMAC, nil
}

// SendBatch transmits each frame in order via blocking send on the
// link-layer socket. A send failure on one frame stops the batch and
// returns the count sent so far plus the error.
func (b *RawSocketBackend) SendBatch(worker Worker, batch [][]byte) (int, error) {
	st, err := b.state(worker)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, frame := range batch {
		if err := unix.Send(st.fd, frame, 0); err != nil {
			return sent, fmt.Errorf("send_batch: %w", err)
		}
		sent++
	}
	return sent, nil
}

// RecvBatch drains up to len(out) frames from the socket without
// blocking. Packets whose packet-type is PACKET_OUTGOING (our own
// transmitted frames looped back by the promiscuous socket) are
// discarded rather than returned, per the raw-socket backend's
// documented failure semantics.
func (b *RawSocketBackend) RecvBatch(worker Worker, out []Frame) (int, error) {
	st, err := b.state(worker)
	if err != nil {
		return 0, err
	}

	n := 0
	for n < len(out) {
		buf := make([]byte, 65536)
		oob := make([]byte, 256)

		nr, oobn, _, from, err := unix.Recvmsg(st.fd, buf, oob, unix.MSG_DONTWAIT)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				break
			}
			return n, fmt.Errorf("recv_batch: %w", err)
		}

		if ll, ok := from.(*unix.SockaddrLinklayer); ok && ll.Pkttype == unix.PACKET_OUTGOING {
			continue
		}

		ts, src := parseTimestamp(oob[:oobn])
		out[n] = Frame{
			Data:        buf[:nr],
			TimestampNS: ts,
			Source:      src,
		}
		n++
	}
	return n, nil
}

// ReleaseBatch is a no-op for the raw-socket backend: RecvBatch
// allocates a fresh buffer per frame rather than reusing ring slots,
// so there is nothing to return to the kernel.
func (b *RawSocketBackend) ReleaseBatch(_ Worker, _ []Frame) error { return nil }

// Cleanup closes the worker's socket. Safe to call more than once.
func (b *RawSocketBackend) Cleanup(worker Worker) error {
	b.mu.Lock()
	st, ok := b.workers[worker.Index]
	if ok {
		delete(b.workers, worker.Index)
	}
	b.mu.Unlock()

	if !ok {
		return nil
	}
	if err := st.conn.Close(); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}
	return nil
}

func (b *RawSocketBackend) state(worker Worker) (*rawWorkerState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBackendClosed
	}
	st, ok := b.workers[worker.Index]
	if !ok {
		return nil, fmt.Errorf("worker %d: %w", worker.Index, ErrInitFailed)
	}
	return st, nil
}

// parseTimestamp extracts a SO_TIMESTAMPING control message and ranks
// its source. struct scm_timestamping carries three struct timespec
// (software, deprecated, hardware); hardware is preferred when
// non-zero, then software, and the local clock (TimestampLocal) is
// returned when no usable control message was present at all.
func parseTimestamp(oob []byte) (uint64, TimestampSource) {
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return uint64(time.Now().UnixNano()), TimestampLocal
	}

	for _, m := range msgs {
		if m.Header.Level != unix.SOL_SOCKET || m.Header.Type != unix.SO_TIMESTAMPING {
			continue
		}
		const tsCount = 3
		if len(m.Data) < int(unsafe.Sizeof(unix.Timespec{}))*tsCount {
			continue
		}
		specs := (*[tsCount]unix.Timespec)(unsafe.Pointer(&m.Data[0]))

		if hw := specs[2]; hw.Sec != 0 || hw.Nsec != 0 {
			return uint64(hw.Sec)*1e9 + uint64(hw.Nsec), TimestampHardware
		}
		if sw := specs[0]; sw.Sec != 0 || sw.Nsec != 0 {
			return uint64(sw.Sec)*1e9 + uint64(sw.Nsec), TimestampSoftware
		}
	}

	return uint64(time.Now().UnixNano()), TimestampLocal
}
