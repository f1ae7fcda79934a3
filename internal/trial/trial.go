// Package trial implements the single-rate measurement loop shared by
// every test-mode dispatcher: build one packet template, pace
// transmission at a target rate, track sequence numbers and latency on
// the receive side, and fold the results into a TrialResult.
package trial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/krisarmstrong/netbench/internal/latency"
	"github.com/krisarmstrong/netbench/internal/metrics"
	"github.com/krisarmstrong/netbench/internal/netio"
	"github.com/krisarmstrong/netbench/internal/pacing"
	"github.com/krisarmstrong/netbench/internal/seqtrack"
	"github.com/krisarmstrong/netbench/internal/sigpacket"
	"github.com/krisarmstrong/netbench/internal/tcpthroughput"
)

// settlingRounds and settlingInterval bound the post-timer drain window
// that collects stragglers after the measured duration expires.
const (
	settlingRounds   = 10
	settlingInterval = 10 * time.Millisecond
	recvBatchSize    = 64
)

// Sentinel errors.
var (
	ErrInvalidParams = errors.New("trial: invalid params")
	ErrCancelled     = errors.New("trial: cancelled")
)

// Params configures one trial executor run.
type Params struct {
	Addressing     sigpacket.Addressing
	FrameSize      int
	RatePct        float64
	Duration       time.Duration
	Warmup         time.Duration
	LineRateBps    uint64
	ReservoirSize  int
	MeasureLatency bool

	// ColorMeter, when set, meters every received frame that matches
	// this trial's signature/stream id through a CIR/EIR token bucket
	// (RFC 4115 / MEF 10.3 color-aware policing) and the per-color
	// frame counts are reported on Result.
	ColorMeter *sigpacket.TokenBucket

	// TestMode labels this trial for metrics and result metadata (e.g.
	// "rfc2544-throughput", "y1564-service-1").
	TestMode string

	// TCP, when true, delegates the whole trial to an RFC 6349
	// real-TCP measurement instead of the UDP-signature hot loop.
	TCP       bool
	TCPTarget string
}

// Result is the outcome of one trial, a value type consumed by
// dispatchers and never retained by the executor.
type Result struct {
	PacketsSent     uint64
	PacketsReceived uint64
	BytesSent       uint64
	ElapsedSeconds  float64
	AchievedPPS     float64
	AchievedMbps    float64
	LossPct         float64
	Latency         latency.Stats

	// GreenFrames/YellowFrames/RedFrames are populated only when
	// Params.ColorMeter was set: the per-color verdict counts the
	// token bucket assigned to received frames.
	GreenFrames  uint64
	YellowFrames uint64
	RedFrames    uint64

	// BaselineRTTNS is set only by a TCP trial: the pre-transfer ICMP
	// path-RTT baseline, zero for UDP-signature trials.
	BaselineRTTNS uint64
}

// Executor runs trials against one backend worker. It is not safe for
// concurrent use; the engine drives exactly one Executor per worker
// from a single orchestrating goroutine.
type Executor struct {
	Backend netio.Backend
	Worker  netio.Worker
	Metrics *metrics.Collector
}

// Run executes one trial per Params and returns its Result. Backend
// send/recv failures are tolerated (folded into the sent/received
// counts); only setup failures and context cancellation return an
// error.
func (e *Executor) Run(ctx context.Context, p Params) (Result, error) {
	if p.TCP {
		return e.runTCP(ctx, p)
	}
	return e.runSignature(ctx, p)
}

func (e *Executor) runTCP(ctx context.Context, p Params) (Result, error) {
	tr, err := tcpthroughput.Measure(ctx, tcpthroughput.Params{
		Target:   p.TCPTarget,
		Duration: p.Duration,
	})
	if err != nil {
		return Result{}, fmt.Errorf("trial: tcp measurement: %w", err)
	}

	result := Result{
		BytesSent:      tr.BytesSent,
		ElapsedSeconds: tr.ElapsedSeconds,
		AchievedMbps:   tr.AchievedMbps,
		Latency:        tr.RTTStats,
		BaselineRTTNS:  tr.BaselineRTTNS,
	}
	if e.Metrics != nil {
		e.Metrics.AddPacketsSent(p.TestMode, float64(tr.BytesSent))
	}
	return result, nil
}

func (e *Executor) runSignature(ctx context.Context, p Params) (Result, error) {
	if err := validate(p); err != nil {
		return Result{}, err
	}

	payloadOffset := sigpacket.PayloadOffset(p.Addressing.Mode)
	tmpl, err := sigpacket.BuildTemplate(p.Addressing, p.FrameSize)
	if err != nil {
		return Result{}, fmt.Errorf("trial: build template: %w", err)
	}

	pacer := pacing.NewGovernor(p.LineRateBps, uint32(p.FrameSize), p.RatePct)
	timer := pacing.NewTimer(p.Duration, p.Warmup)

	expected := estimatedPacketCount(p)
	tracker := seqtrack.NewForExpected(0, expected)

	var reservoir *latency.Reservoir
	if p.MeasureLatency {
		reservoir = latency.NewReservoir(p.ReservoirSize)
	}

	timer.Start()

	var sent, recv, bytesSent uint64
	var seq uint32
	var colors colorCounts
	recvBuf := make([]netio.Frame, recvBatchSize)
	wasWarmup := timer.InWarmup()

	for !timer.Expired() {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}

		inWarmup := timer.InWarmup()
		if wasWarmup && !inWarmup {
			sent, recv, bytesSent = 0, 0, 0
			colors = colorCounts{}
			pacer.Reset()
			tracker = seqtrack.NewForExpected(seq, expected)
			if reservoir != nil {
				reservoir = latency.NewReservoir(p.ReservoirSize)
			}
		}
		wasWarmup = inWarmup

		txNS := pacer.Wait()
		if err := sigpacket.Stamp(tmpl, payloadOffset, seq, uint64(txNS)); err != nil {
			return Result{}, fmt.Errorf("trial: stamp: %w", err)
		}

		n, _ := e.Backend.SendBatch(e.Worker, [][]byte{tmpl})
		if n > 0 {
			pacer.RecordTX(1, uint64(len(tmpl)))
			if !inWarmup {
				sent++
				bytesSent += uint64(len(tmpl))
			}
		}
		seq++

		e.drainOnce(recvBuf, payloadOffset, p.Addressing.Signature, p.Addressing.StreamID, tracker, reservoir, p.ColorMeter, inWarmup, &recv, &colors)
	}

	for range settlingRounds {
		e.drainOnce(recvBuf, payloadOffset, p.Addressing.Signature, p.Addressing.StreamID, tracker, reservoir, p.ColorMeter, false, &recv, &colors)
		time.Sleep(settlingInterval)
	}

	elapsed := timer.Elapsed().Seconds()
	result := buildResult(sent, recv, bytesSent, elapsed, reservoir)
	result.GreenFrames = colors.green
	result.YellowFrames = colors.yellow
	result.RedFrames = colors.red

	if e.Metrics != nil {
		e.Metrics.AddPacketsSent(p.TestMode, float64(sent))
		e.Metrics.AddPacketsReceived(p.TestMode, float64(recv))
		if sent > recv {
			e.Metrics.AddPacketsLost(p.TestMode, float64(sent-recv))
		}
	}

	return result, nil
}

// colorCounts tallies the token-bucket verdicts a trial's ColorMeter
// assigns to received frames.
type colorCounts struct {
	green, yellow, red uint64
}

func (e *Executor) drainOnce(
	recvBuf []netio.Frame,
	payloadOffset int,
	signature [sigpacket.SignatureLen]byte,
	streamID uint32,
	tracker *seqtrack.Tracker,
	reservoir *latency.Reservoir,
	meter *sigpacket.TokenBucket,
	inWarmup bool,
	recv *uint64,
	colors *colorCounts,
) {
	n, _ := e.Backend.RecvBatch(e.Worker, recvBuf)
	if n == 0 {
		return
	}

	for i := range n {
		f := recvBuf[i]
		if !sigpacket.ValidateResponse(f.Data) {
			continue
		}
		if [sigpacket.SignatureLen]byte(f.Data[payloadOffset:payloadOffset+sigpacket.SignatureLen]) != signature {
			continue
		}
		if got := sigpacket.ReadStreamID(f.Data, payloadOffset); streamID != 0 && got != streamID {
			continue
		}

		if inWarmup {
			continue
		}
		*recv++

		rseq := sigpacket.ReadSequence(f.Data, payloadOffset)
		tracker.Record(rseq)

		if reservoir != nil {
			txNS := sigpacket.ReadTxTimestamp(f.Data, payloadOffset)
			var latencyNS uint64
			if f.TimestampNS > txNS {
				latencyNS = f.TimestampNS - txNS
			}
			reservoir.Add(latencyNS)
		}

		if meter != nil {
			switch meter.Meter(len(f.Data), time.Now()) {
			case sigpacket.ColorGreen:
				colors.green++
			case sigpacket.ColorYellow:
				colors.yellow++
			default:
				colors.red++
			}
		}
	}

	_ = e.Backend.ReleaseBatch(e.Worker, recvBuf[:n])
}

func buildResult(sent, recv, bytesSent uint64, elapsedSeconds float64, reservoir *latency.Reservoir) Result {
	result := Result{
		PacketsSent:     sent,
		PacketsReceived: recv,
		BytesSent:       bytesSent,
		ElapsedSeconds:  elapsedSeconds,
	}

	if sent > 0 {
		lost := float64(0)
		if sent > recv {
			lost = float64(sent - recv)
		}
		result.LossPct = 100 * lost / float64(sent)
	}
	if elapsedSeconds > 0 {
		result.AchievedPPS = float64(sent) / elapsedSeconds
		result.AchievedMbps = (float64(bytesSent) * 8.0) / (elapsedSeconds * 1e6)
	}
	if reservoir != nil {
		result.Latency = reservoir.Compute()
	}
	return result
}

func estimatedPacketCount(p Params) uint64 {
	maxPPS := pacing.MaxPPS(p.LineRateBps, uint32(p.FrameSize))
	return uint64(float64(maxPPS) * p.RatePct / 100 * p.Duration.Seconds())
}

// maxRatePct bounds how far an overload trial (RFC 2544 system
// recovery/reset drives at 110% of line rate) may push the offered
// rate; it is not a realistic line-rate ceiling like 100 is.
const maxRatePct = 1000

func validate(p Params) error {
	if p.FrameSize < sigpacket.MinFrameLen {
		return fmt.Errorf("%w: frame size %d below minimum %d", ErrInvalidParams, p.FrameSize, sigpacket.MinFrameLen)
	}
	if p.RatePct <= 0 || p.RatePct > maxRatePct {
		return fmt.Errorf("%w: rate_pct %.3f out of (0,%g]", ErrInvalidParams, p.RatePct, maxRatePct)
	}
	if p.Duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidParams)
	}
	return nil
}
