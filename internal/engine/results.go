package engine

import "github.com/krisarmstrong/netbench/internal/latency"

// ThroughputRecord is one frame-size row of an RFC 2544 throughput
// (or RFC 2889 forwarding-rate) sweep.
type ThroughputRecord struct {
	FrameSize    int
	BestRatePct  float64
	BestMbps     float64
	BestPPS      float64
	Iterations   int
	FramesTested uint64
	Latency      latency.Stats

	// BaselineRTTNS is set only by the RFC 6349 TCP throughput
	// dispatcher: the ICMP-measured path RTT taken before the transfer
	// started, used to sanity-check the transfer's own RTT samples
	// against self-induced queuing delay.
	BaselineRTTNS uint64
}

// LatencyRecord is one (frame size, offered rate) row of an RFC 2544
// latency sweep.
type LatencyRecord struct {
	FrameSize  int
	OfferedPct float64
	Latency    latency.Stats
	LossPct    float64
}

// FrameLossRecord is one offered-rate row of an RFC 2544 frame-loss
// sweep.
type FrameLossRecord struct {
	FrameSize  int
	OfferedPct float64
	Sent       uint64
	Received   uint64
	LossPct    float64
}

// BackToBackRecord is the outcome of an RFC 2544 back-to-back test.
type BackToBackRecord struct {
	FrameSize      int
	MaxBurst       int
	BurstDuration  float64 // seconds
	TrialsPassed   int
	TrialsAttempted int
}

// RecoveryRecord is the outcome of an RFC 2544 system-recovery or
// reset test.
type RecoveryRecord struct {
	Kind           string // "recovery" or "reset"
	RecoveryTimeMS float64
	OverloadPct    float64
}

// CongestionRecord is the outcome of an RFC 2889 congestion test: a
// single trial at 100% offered load, reporting the frames dropped
// under oversubscription rather than a searched threshold.
type CongestionRecord struct {
	FrameSize            int
	Sent                 uint64
	Received             uint64
	Dropped              uint64
	LossPct              float64
	BackpressureObserved bool
}

// ServiceRecord is a Y.1564/MEF 48/49 service-level result: one row
// per configured service, with a per-step breakdown.
type ServiceRecord struct {
	ServiceID int
	Name      string
	Steps     []ServiceStepRecord
	Pass      bool
}

// ServiceStepRecord is one CIR percentage step of a service test.
type ServiceStepRecord struct {
	StepPct    float64
	RatePct    float64
	FLRPct     float64
	FDAvgMS    float64
	FDVMS      float64
	Pass       bool

	// GreenFrames/YellowFrames/RedFrames are the CIR/EIR token-bucket
	// color verdicts observed on this step's received frames.
	GreenFrames  uint64
	YellowFrames uint64
	RedFrames    uint64
}

// PortResult is one port's outcome from a MultiPort run: the full
// result tables its own EngineContext produced, or the error if that
// port's run failed. A failed port does not abort the others.
type PortResult struct {
	Interface string
	Results   Results
	Err       string
}

// MultiPortRecord is the outcome of a MultiPort run: one PortResult
// per enabled port, plus the aggregate throughput across every port
// that reported at least one ThroughputRecord.
type MultiPortRecord struct {
	Ports         []PortResult
	AggregateMbps float64
}

// BidirectionalRecord is the outcome of a Bidirectional run: the
// forward-direction result tables from the calling EngineContext and
// the reverse-direction tables from the auxiliary goroutine's own
// EngineContext, plus their summed throughput.
type BidirectionalRecord struct {
	Forward       Results
	Reverse       Results
	AggregateMbps float64
}

// OAMRecord is a Y.1731 OAM probe result: delay, loss, synthetic loss,
// or loopback, distinguished by Kind.
type OAMRecord struct {
	Kind            string // "delay", "loss", "synthetic-loss", "loopback"
	FramesSent      uint64
	FramesReceived  uint64
	LossPct         float64
	Latency         latency.Stats
	DelayVariationNS float64
}

// TSNRecord is one IEEE 802.1Qbv TSN result row: gate-timing,
// isolation, per-class latency, or PTP sync, distinguished by Kind.
type TSNRecord struct {
	Kind             string
	TrafficClass     uint32
	GateDeviationNS  float64
	MaxJitterNS      float64
	Pass             bool
	Latency          latency.Stats
}
