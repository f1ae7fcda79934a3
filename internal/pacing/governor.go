// Package pacing provides software rate limiting and trial timing for
// a transmit loop: a Governor spaces packets at a target rate, and a
// Timer tracks warmup/measurement windows. The Governor implements a
// sleep-then-spin timing model; the Timer only compares elapsed
// time.Duration values against its windows.
package pacing

import "time"

// wireOverheadBytes accounts for the 8-byte preamble and 12-byte
// inter-frame gap that occupy wire time but never appear in a
// captured frame.
const wireOverheadBytes = 20

// overrunMultiplier is how many intervals behind schedule triggers a
// next-TX reset instead of continuing to chase the old schedule.
const overrunMultiplier = 10

// sleepMarginNS is left unslept before the final busy-wait.
const sleepMarginNS = 10_000

// busyWaitThresholdNS is the minimum remaining gap that's worth a
// nanosleep call at all; anything shorter busy-waits outright.
const busyWaitThresholdNS = 50_000

// Governor paces packet transmission at a target rate. It is not safe
// for concurrent use; a trial drives exactly one Governor from its
// hot-path goroutine.
type Governor struct {
	lineRateBps uint64
	frameSize   uint32

	targetBps uint64
	targetPPS uint64
	intervalNS uint64

	startNS   int64
	nextTxNS  int64

	batchSize uint32

	packetsSent uint64
	bytesSent   uint64
	delays      uint64
	overruns    uint64

	enabled    bool
	useBusyWait bool

	now func() int64
}

// NewGovernor creates a Governor targeting ratePct percent of
// lineRateBps for frames of frameSize bytes.
func NewGovernor(lineRateBps uint64, frameSize uint32, ratePct float64) *Governor {
	g := &Governor{
		lineRateBps: lineRateBps,
		frameSize:   frameSize,
		enabled:     true,
		batchSize:   1,
		now:         monotonicNS,
	}
	g.SetRate(ratePct)
	g.startNS = g.now()
	g.nextTxNS = g.startNS
	return g
}

func monotonicNS() int64 {
	return time.Now().UnixNano()
}

// SetRate recalculates the target rate and inter-packet interval from
// the stored line rate, without touching the existing schedule, so a
// rate change mid-run takes effect starting at the next Wait call.
// ratePct above 100 is accepted: a system-recovery or reset trial
// deliberately offers more traffic than the link can carry to force
// loss, so the only ceiling here is that the rate be positive.
func (g *Governor) SetRate(ratePct float64) {
	if ratePct <= 0 {
		return
	}

	wireSize := uint64(g.frameSize) + wireOverheadBytes
	g.targetBps = uint64(float64(g.lineRateBps) * ratePct / 100.0)
	g.targetPPS = g.targetBps / (wireSize * 8)

	if g.targetPPS > 0 {
		g.intervalNS = uint64(time.Second) / g.targetPPS
	} else {
		g.intervalNS = uint64(time.Second)
	}
}

// SetBusyWait switches between high-precision busy-waiting and the
// default sleep-then-spin hybrid.
func (g *Governor) SetBusyWait(enable bool) { g.useBusyWait = enable }

// SetBatchSize configures how many packets the governor paces as one
// unit via WaitBatch.
func (g *Governor) SetBatchSize(n uint32) {
	if n == 0 {
		return
	}
	g.batchSize = n
}

// Wait blocks until the next single-packet transmit slot and returns
// the current time in nanoseconds.
func (g *Governor) Wait() int64 {
	return g.waitInterval(g.intervalNS)
}

// WaitBatch blocks until the next batchSize-packet transmit slot.
func (g *Governor) WaitBatch(batchSize uint32) int64 {
	return g.waitInterval(g.intervalNS * uint64(batchSize))
}

func (g *Governor) waitInterval(interval uint64) int64 {
	if !g.enabled {
		return g.now()
	}

	now := g.now()

	switch {
	case now < g.nextTxNS:
		g.delays++
		if g.useBusyWait {
			busyWaitUntil(g.now, g.nextTxNS)
		} else {
			sleepWaitUntil(g.now, g.nextTxNS)
		}
	case uint64(now-g.nextTxNS) > interval*overrunMultiplier:
		g.overruns++
		g.nextTxNS = now
	}

	g.nextTxNS += int64(interval)
	return g.now()
}

// busyWaitUntil spins until targetNS. The Go scheduler preempts
// goroutines cooperatively at function calls, so a plain empty loop
// is enough to hold the calling goroutine on this core.
func busyWaitUntil(now func() int64, targetNS int64) {
	for now() < targetNS {
	}
}

// sleepWaitUntil sleeps for most of the remaining time, leaving a
// small margin, then busy-waits for final precision.
func sleepWaitUntil(now func() int64, targetNS int64) {
	n := now()
	if n >= targetNS {
		return
	}

	delta := targetNS - n
	if delta > busyWaitThresholdNS {
		time.Sleep(time.Duration(delta-sleepMarginNS) * time.Nanosecond)
	}

	busyWaitUntil(now, targetNS)
}

// RecordTX accounts packets/bytes transmitted for rate statistics.
func (g *Governor) RecordTX(packets, bytes uint64) {
	g.packetsSent += packets
	g.bytesSent += bytes
}

// Rate returns the achieved packets-per-second and megabits-per-second
// since the governor was created or last Reset.
func (g *Governor) Rate() (pps, mbps float64) {
	elapsed := float64(g.now()-g.startNS) / float64(time.Second)
	if elapsed <= 0 {
		return 0, 0
	}
	pps = float64(g.packetsSent) / elapsed
	mbps = (float64(g.bytesSent) * 8.0) / (elapsed * 1e6)
	return pps, mbps
}

// Stats reports how many times the governor had to wait for its
// schedule and how many times it fell far enough behind to reset.
func (g *Governor) Stats() (delays, overruns uint64) {
	return g.delays, g.overruns
}

// Reset restarts the governor's clock and counters for a new trial.
func (g *Governor) Reset() {
	g.startNS = g.now()
	g.nextTxNS = g.startNS
	g.packetsSent = 0
	g.bytesSent = 0
	g.delays = 0
	g.overruns = 0
}

// MaxPPS returns the theoretical maximum packet rate for lineRateBps
// at frameSize bytes, wire overhead included.
func MaxPPS(lineRateBps uint64, frameSize uint32) uint64 {
	wireSize := uint64(frameSize) + wireOverheadBytes
	return lineRateBps / (wireSize * 8)
}

// Utilization returns achievedPPS as a percentage of lineRateBps at
// frameSize bytes.
func Utilization(achievedPPS uint64, frameSize uint32, lineRateBps uint64) float64 {
	if lineRateBps == 0 {
		return 0
	}
	wireSize := uint64(frameSize) + wireOverheadBytes
	achievedBps := achievedPPS * wireSize * 8
	return 100.0 * float64(achievedBps) / float64(lineRateBps)
}
