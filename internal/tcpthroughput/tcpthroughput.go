// Package tcpthroughput measures RFC 6349 TCP throughput over a real TCP
// connection instead of a UDP signature stream. It opens a connection to
// a cooperating endpoint, transfers data for the requested duration, and
// polls TCP_INFO periodically to report the congestion window, smoothed
// RTT, and retransmit count the kernel actually observed.
package tcpthroughput

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"time"

	"github.com/higebu/netfd"
	probing "github.com/prometheus-community/pro-bing"
	"golang.org/x/sys/unix"

	"github.com/krisarmstrong/netbench/internal/latency"
)

// sampleInterval is how often TCP_INFO is polled during a transfer.
const sampleInterval = 200 * time.Millisecond

// writeChunk is the buffer size used for the bulk write loop.
const writeChunk = 64 * 1024

// ErrDialFailed wraps a connection failure to the cooperating endpoint.
var ErrDialFailed = errors.New("tcpthroughput: dial failed")

// Params configures one RFC 6349 measurement.
type Params struct {
	// Target is the host:port of a cooperating endpoint that reads and
	// discards whatever bytes it receives for the duration of the test.
	Target   string
	Duration time.Duration
	MSS      int // advertised for reporting only; the kernel negotiates the real MSS
}

// Result is the RFC 6349-shaped outcome of a real TCP transfer.
type Result struct {
	BytesSent        uint64
	ElapsedSeconds   float64
	AchievedMbps     float64
	RTTStats         latency.Stats // derived from sampled tcpi_rtt, microseconds converted to nanoseconds
	RetransmitCount  uint64
	FinalCwndPackets uint32
	MinRTTNS         uint64

	// BaselineRTTNS is the path round-trip time measured by ICMP echo
	// before the bulk transfer starts, the RFC 6349 baseline used to
	// derive the bandwidth-delay product independent of the transfer's
	// own self-induced queuing delay. Zero when the probe failed or the
	// target host could not be parsed out of Target.
	BaselineRTTNS uint64
}

// Measure dials Target, writes continuously for Duration, and samples
// TCP_INFO every sampleInterval to build RTT statistics and a final
// retransmit/cwnd snapshot. The connection's fd is obtained via netfd so
// the getsockopt(SOL_TCP, TCP_INFO) call can run against the real socket
// beneath net.TCPConn.
func Measure(ctx context.Context, p Params) (Result, error) {
	baselineRTT := baselineRTT(ctx, p.Target)

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", p.Target)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrDialFailed, p.Target, err)
	}
	defer conn.Close()

	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s: not a TCP connection", ErrDialFailed, p.Target)
	}

	fd, err := netfd.GetFD(tcpConn)
	if err != nil {
		return Result{}, fmt.Errorf("tcpthroughput: extract fd: %w", err)
	}

	reservoir := latency.NewReservoir(0)

	deadline := time.Now().Add(p.Duration)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	_ = tcpConn.SetWriteDeadline(deadline)

	sampleTicker := time.NewTicker(sampleInterval)
	defer sampleTicker.Stop()

	buf := make([]byte, writeChunk)
	var bytesSent uint64
	var lastInfo *unix.TCPInfo
	start := time.Now()

writeLoop:
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			break writeLoop
		case <-sampleTicker.C:
			if info, err := unix.IoctlGetTCPInfo(int(fd)); err == nil {
				lastInfo = info
				reservoir.Add(uint64(info.Rtt) * uint64(time.Microsecond))
			}
		default:
		}

		n, err := tcpConn.Write(buf)
		bytesSent += uint64(n)
		if err != nil {
			break
		}
	}

	elapsed := time.Since(start).Seconds()

	result := Result{
		BytesSent:      bytesSent,
		ElapsedSeconds: elapsed,
		RTTStats:       reservoir.Compute(),
		BaselineRTTNS:  uint64(baselineRTT.Nanoseconds()),
	}
	if elapsed > 0 {
		result.AchievedMbps = (float64(bytesSent) * 8.0) / (elapsed * 1e6)
	}
	if lastInfo != nil {
		result.RetransmitCount = uint64(lastInfo.Total_retrans)
		result.FinalCwndPackets = lastInfo.Snd_cwnd
		result.MinRTTNS = uint64(lastInfo.Rtt) * uint64(time.Microsecond)
	}

	return result, nil
}

// baselineRTT sends a short burst of ICMP echoes to the host portion of
// target and returns the average round trip, the RFC 6349 path-RTT
// baseline measured before the link is loaded with the bulk transfer.
// A probe failure (unparseable target, unreachable host, no ICMP
// permission) returns zero rather than failing the trial: the baseline
// is reported when available, not required.
func baselineRTT(ctx context.Context, target string) time.Duration {
	host, _, err := net.SplitHostPort(target)
	if err != nil {
		host = target
	}

	pinger, err := probing.NewPinger(host)
	if err != nil {
		return 0
	}
	pinger.Count = 3
	pinger.Timeout = 2 * time.Second
	pinger.SetPrivileged(false)

	if err := pinger.RunWithContext(ctx); err != nil {
		return 0
	}
	return pinger.Statistics().AvgRtt
}

// MathisThroughputBps is the RFC 6349 estimator of theoretical
// throughput from MSS, RTT, and loss rate. Measure and the trial
// executor do not call it. Zero RTT, zero MSS, or zero loss all return
// lineRateBps unmodified (the formula is undefined at those boundaries).
func MathisThroughputBps(lineRateBps uint64, rtt time.Duration, mss int, lossFraction float64) float64 {
	if rtt <= 0 || mss <= 0 || lossFraction <= 0 {
		return float64(lineRateBps)
	}
	// Mathis et al. 1997: BW <= (MSS / RTT) * (C / sqrt(p)), C ~= 1.22 (the
	// conventional basic-TCP constant; sqrt(1.5) form is not used here).
	const mathisConstant = 1.22
	bytesPerSec := (float64(mss) / rtt.Seconds()) * (mathisConstant / math.Sqrt(lossFraction))
	return bytesPerSec * 8
}
