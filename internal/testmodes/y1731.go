package testmodes

import (
	"context"
	"time"

	"github.com/krisarmstrong/netbench/internal/engine"
	"github.com/krisarmstrong/netbench/internal/trial"
)

// loopbackDuration bounds the ETH-LB continuity check to a short burst
// rather than the full configured trial duration.
const loopbackDuration = 2 * time.Second

func init() {
	engine.Register("y1731-delay", Y1731Delay)
	engine.Register("y1731-loss", Y1731Loss)
	engine.Register("y1731-synthetic-loss", Y1731SyntheticLoss)
	engine.Register("y1731-loopback", Y1731Loopback)
}

// Y1731Delay runs a low-rate OAM probe stream and reports frame delay
// and delay variation, the ETH-DM measurement.
func Y1731Delay(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	addr := addressingFor(e, "Y.1731", 0, false, 0)

	res, err := runTrial(ctx, e, trial.Params{
		Addressing:     addr,
		FrameSize:      cfg.FrameSize,
		RatePct:        cfg.RatePct,
		Duration:       cfg.Duration,
		Warmup:         cfg.Warmup,
		MeasureLatency: true,
		ReservoirSize:  cfg.ReservoirSize,
		LineRateBps:    e.LineRateBps(),
		TestMode:       "y1731-delay",
	})
	if err != nil {
		return err
	}

	e.MergeResults(func(r *engine.Results) {
		r.OAM = append(r.OAM, engine.OAMRecord{
			Kind:             "delay",
			FramesSent:       res.PacketsSent,
			FramesReceived:   res.PacketsReceived,
			LossPct:          res.LossPct,
			Latency:          res.Latency,
			DelayVariationNS: res.Latency.JitterNS,
		})
	})
	return nil
}

// Y1731Loss runs an ETH-LM dual-ended loss measurement: the frame
// counters the trial executor already tracks via its sequence tracker
// directly yield the near-end/far-end loss ratio.
func Y1731Loss(ctx context.Context, e *engine.EngineContext) error {
	return runOAMLossTrial(ctx, e, "loss", "y1731-loss")
}

// Y1731SyntheticLoss runs ETH-SLM: a lower-rate synthetic frame
// stream interleaved with (but measured independently of) production
// traffic. This engine has no separate production stream to
// interleave with, so the synthetic stream is measured the same way
// Y1731Loss measures the full stream.
func Y1731SyntheticLoss(ctx context.Context, e *engine.EngineContext) error {
	return runOAMLossTrial(ctx, e, "synthetic-loss", "y1731-synthetic-loss")
}

func runOAMLossTrial(ctx context.Context, e *engine.EngineContext, kind, testMode string) error {
	cfg := e.Config()
	addr := addressingFor(e, "Y.1731", 0, false, 0)

	res, err := runTrial(ctx, e, trial.Params{
		Addressing:  addr,
		FrameSize:   cfg.FrameSize,
		RatePct:     cfg.RatePct,
		Duration:    cfg.Duration,
		Warmup:      cfg.Warmup,
		LineRateBps: e.LineRateBps(),
		TestMode:    testMode,
	})
	if err != nil {
		return err
	}

	e.MergeResults(func(r *engine.Results) {
		r.OAM = append(r.OAM, engine.OAMRecord{
			Kind:           kind,
			FramesSent:     res.PacketsSent,
			FramesReceived: res.PacketsReceived,
			LossPct:        res.LossPct,
		})
	})
	return nil
}

// Y1731Loopback sends a short burst of frames and confirms every one
// returns, the ETH-LB continuity check.
func Y1731Loopback(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	addr := addressingFor(e, "Y.1731", 0, false, 0)

	res, err := runTrial(ctx, e, trial.Params{
		Addressing:  addr,
		FrameSize:   cfg.FrameSize,
		RatePct:     10,
		Duration:    loopbackDuration,
		LineRateBps: e.LineRateBps(),
		TestMode:    "y1731-loopback",
	})
	if err != nil {
		return err
	}

	e.MergeResults(func(r *engine.Results) {
		r.OAM = append(r.OAM, engine.OAMRecord{
			Kind:           "loopback",
			FramesSent:     res.PacketsSent,
			FramesReceived: res.PacketsReceived,
			LossPct:        res.LossPct,
		})
	})
	return nil
}
