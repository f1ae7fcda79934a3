//go:build linux

package netio

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gopacket/gopacket/afpacket"
	"golang.org/x/sys/unix"
)

// LineRateBackend is the highest-throughput Backend: a TPACKET_V3
// mmap'd ring per worker via gopacket/afpacket, with PACKET_FANOUT
// spreading RX across queues. This is the closest Go-native analogue
// to a DPDK-style rte_eth_rx_burst/tx_burst mempool driver available
// without a cgo DPDK binding; environment setup (ring allocation,
// fanout group) happens once per worker in Init and is never repeated,
// matching the contract's "initialized exactly once" requirement. The
// interface's promiscuous mode is left as it is.
type LineRateBackend struct {
	ifaceName string
	fanoutID  uint16

	mu      sync.Mutex
	workers map[int]*afpacket.TPacket
	closed  bool
}

// NewLineRateBackend constructs a backend bound to ifaceName. fanoutID
// groups every worker's socket into one PACKET_FANOUT set so the
// kernel load-balances ingress frames across queues (the RSS-across-
// queues requirement).
func NewLineRateBackend(ifaceName string, fanoutID uint16) (*LineRateBackend, error) {
	if _, err := net.InterfaceByName(ifaceName); err != nil {
		return nil, fmt.Errorf("linerate: resolve %s: %w: %w", ifaceName, ErrNoInterface, err)
	}
	return &LineRateBackend{
		ifaceName: ifaceName,
		fanoutID:  fanoutID,
		workers:   make(map[int]*afpacket.TPacket),
	}, nil
}

// Name identifies this backend.
func (b *LineRateBackend) Name() string { return string(KindLineRate) }

// Init opens a TPACKET_V3 ring for this worker and joins it to the
// shared fanout group (PACKET_FANOUT_HASH, the RSS-like distribution
// policy). It does not put the interface into promiscuous mode.
func (b *LineRateBackend) Init(_ context.Context, worker Worker) ([6]byte, error) {
	var localMAC [6]byte

	ifi, err := net.InterfaceByName(b.ifaceName)
	if err != nil {
		return localMAC, wrapInit(b.Name(), err)
	}
	copy(localMAC[:], ifi.HardwareAddr)

	tp, err := afpacket.NewTPacket(
		afpacket.OptInterface(b.ifaceName),
		afpacket.OptFrameSize(2048),
		afpacket.OptBlockSize(2048*128),
		afpacket.OptNumBlocks(64),
		afpacket.OptAddVLANHeader(false),
		afpacket.OptPollTimeout(50*time.Millisecond),
		afpacket.OptTPacketVersion(afpacket.TPacketVersion3),
	)
	if err != nil {
		return localMAC, wrapInit(b.Name(), fmt.Errorf("tpacket: %w", err))
	}

	if err := tp.SetFanout(afpacket.FanoutHash, b.fanoutID); err != nil {
		tp.Close()
		return localMAC, wrapInit(b.Name(), fmt.Errorf("fanout: %w", err))
	}

	b.mu.Lock()
	b.workers[worker.Index] = tp
	b.mu.Unlock()

	return localMAC, nil
}

// SendBatch writes each frame to the ring's write path. TPacket
// buffers writes internally; WritePacketData returns once the kernel
// has accepted the frame for transmit.
func (b *LineRateBackend) SendBatch(worker Worker, batch [][]byte) (int, error) {
	tp, err := b.state(worker)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, frame := range batch {
		if err := tp.WritePacketData(frame); err != nil {
			return sent, fmt.Errorf("send_batch: %w", err)
		}
		sent++
	}
	return sent, nil
}

// RecvBatch drains up to len(out) frames from the ring without
// blocking past a very short poll window. Timestamps come from
// TPACKET_V3's per-block timestamp, the TSC/HPET-derived clock the
// contract describes for this backend.
func (b *LineRateBackend) RecvBatch(worker Worker, out []Frame) (int, error) {
	tp, err := b.state(worker)
	if err != nil {
		return 0, err
	}

	n := 0
	for n < len(out) {
		data, ci, err := tp.ZeroCopyReadPacketData()
		if err != nil {
			if err == afpacket.ErrTimeout {
				break
			}
			return n, fmt.Errorf("recv_batch: %w", err)
		}

		buf := make([]byte, len(data))
		copy(buf, data)

		ts := uint64(ci.Timestamp.UnixNano())
		out[n] = Frame{Data: buf, TimestampNS: ts, Source: TimestampHardware}
		n++
	}
	return n, nil
}

// ReleaseBatch is a no-op: RecvBatch copies frame payloads out of the
// ring immediately (ZeroCopyReadPacketData's slice is only valid until
// the next read), so there is no ring slot held open across the call.
func (b *LineRateBackend) ReleaseBatch(_ Worker, _ []Frame) error { return nil }

// Cleanup closes the worker's ring.
func (b *LineRateBackend) Cleanup(worker Worker) error {
	b.mu.Lock()
	tp, ok := b.workers[worker.Index]
	if ok {
		delete(b.workers, worker.Index)
	}
	b.mu.Unlock()

	if !ok {
		return nil
	}
	tp.Close()
	return nil
}

func (b *LineRateBackend) state(worker Worker) (*afpacket.TPacket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBackendClosed
	}
	tp, ok := b.workers[worker.Index]
	if !ok {
		return nil, fmt.Errorf("worker %d: %w", worker.Index, ErrInitFailed)
	}
	return tp, nil
}

// probeXDPSupport reports whether AF_XDP sockets can be opened at
// all on this kernel, used by Select's fallback chain. It opens and
// immediately closes a probe socket rather than inspecting /sys/class,
// a try-it-and-see approach that needs no parsing of kernel reporting
// formats that vary by version.
func probeXDPSupport() bool {
	fd, err := unix.Socket(unix.AF_XDP, unix.SOCK_RAW, 0)
	if err != nil {
		return false
	}
	_ = unix.Close(fd)
	return true
}
