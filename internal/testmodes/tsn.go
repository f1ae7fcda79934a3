package testmodes

import (
	"context"

	"github.com/krisarmstrong/netbench/internal/engine"
	"github.com/krisarmstrong/netbench/internal/trial"
)

func init() {
	engine.Register("tsn-gate-timing", TSNGateTiming)
	engine.Register("tsn-isolation", TSNIsolation)
	engine.Register("tsn-per-class-latency", TSNPerClassLatency)
	engine.Register("tsn-ptp-sync", TSNPTPSync)
}

// gateDeviationThresholdNS is the maximum per-class latency jitter
// tolerated before a gate-timing test is marked failed; IEEE 802.1Qbv
// gate schedules are expected to bound jitter to the microsecond
// range on a correctly configured TSN bridge.
const gateDeviationThresholdNS = 5000

// TSNGateTiming measures the latency distribution of frames crossing
// a single traffic class's gate window and reports observed jitter
// against the gate's expected deviation, using the same latency
// reservoir every other latency measurement uses rather than
// synthesizing a timing model.
func TSNGateTiming(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	addr := addressingFor(e, "802Qbv", 0, false, 0)
	if len(cfg.Services) > 0 {
		addr = addressingFor(e, "802Qbv", 0, true, cfg.Services[0].DSCP)
	}

	res, err := runTrial(ctx, e, trial.Params{
		Addressing:     addr,
		FrameSize:      cfg.FrameSize,
		RatePct:        cfg.RatePct,
		Duration:       cfg.Duration,
		Warmup:         cfg.Warmup,
		MeasureLatency: true,
		ReservoirSize:  cfg.ReservoirSize,
		LineRateBps:    e.LineRateBps(),
		TestMode:       "tsn-gate-timing",
	})
	if err != nil {
		return err
	}

	record := engine.TSNRecord{
		Kind:            "gate-timing",
		GateDeviationNS: res.Latency.JitterNS,
		MaxJitterNS:     float64(res.Latency.MaxNS - res.Latency.MinNS),
		Latency:         res.Latency,
		Pass:            res.Latency.JitterNS <= gateDeviationThresholdNS,
	}
	e.MergeResults(func(r *engine.Results) { r.TSN = append(r.TSN, record) })
	return nil
}

// TSNIsolation is supposed to measure how well a gated traffic class
// is protected from a best-effort class saturating the same egress
// port. Measuring it correctly needs two simultaneous streams on
// distinct traffic classes sharing one port queue set, which this
// engine's single-stream trial executor cannot drive; see
// ErrNotImplemented in rfc2889.go for the same limitation.
func TSNIsolation(ctx context.Context, e *engine.EngineContext) error {
	return ErrNotImplemented
}

// TSNPerClassLatency repeats the gate-timing measurement per
// configured service, each service standing in for one traffic
// class's DSCP marking.
func TSNPerClassLatency(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	for _, svc := range cfg.Services {
		if !svc.Enabled {
			continue
		}
		if e.Cancelled() {
			return nil
		}
		addr := addressingFor(e, "802Qbv", uint32(svc.ID), true, svc.DSCP)
		res, err := runTrial(ctx, e, trial.Params{
			Addressing:     addr,
			FrameSize:      svc.FrameSize,
			RatePct:        cfg.RatePct,
			Duration:       cfg.Duration,
			Warmup:         cfg.Warmup,
			MeasureLatency: true,
			ReservoirSize:  cfg.ReservoirSize,
			LineRateBps:    e.LineRateBps(),
			TestMode:       "tsn-per-class-latency",
		})
		if err != nil {
			return err
		}
		e.MergeResults(func(r *engine.Results) {
			r.TSN = append(r.TSN, engine.TSNRecord{
				Kind:         "per-class-latency",
				TrafficClass: uint32(svc.ID),
				Latency:      res.Latency,
				Pass:         res.Latency.JitterNS <= gateDeviationThresholdNS,
			})
		})
	}
	return nil
}

// TSNPTPSync approximates PTP offset stability by measuring the
// jitter of a steady low-rate probe stream rather than parsing PTP
// Sync/Follow_Up messages directly; a correct implementation needs a
// gPTP stack this engine does not carry.
func TSNPTPSync(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	addr := addressingFor(e, "802Qbv", 0, false, 0)

	res, err := runTrial(ctx, e, trial.Params{
		Addressing:     addr,
		FrameSize:      64,
		RatePct:        1,
		Duration:       cfg.Duration,
		MeasureLatency: true,
		ReservoirSize:  cfg.ReservoirSize,
		LineRateBps:    e.LineRateBps(),
		TestMode:       "tsn-ptp-sync",
	})
	if err != nil {
		return err
	}

	e.MergeResults(func(r *engine.Results) {
		r.TSN = append(r.TSN, engine.TSNRecord{
			Kind:    "ptp-sync",
			Latency: res.Latency,
			Pass:    res.Latency.JitterNS <= gateDeviationThresholdNS,
		})
	})
	return nil
}
