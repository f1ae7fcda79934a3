package testmodes

import (
	"context"
	"fmt"
	"time"

	"github.com/krisarmstrong/netbench/internal/convergence"
	"github.com/krisarmstrong/netbench/internal/engine"
	"github.com/krisarmstrong/netbench/internal/pacing"
	"github.com/krisarmstrong/netbench/internal/sigpacket"
	"github.com/krisarmstrong/netbench/internal/trial"
)

func init() {
	engine.Register("rfc2544-throughput", RFC2544Throughput)
	engine.Register("rfc2544-throughput-imix", RFC2544ThroughputIMIX)
	engine.Register("rfc2544-latency", RFC2544Latency)
	engine.Register("rfc2544-frameloss", RFC2544FrameLoss)
	engine.Register("rfc2544-backtoback", RFC2544BackToBack)
	engine.Register("rfc2544-recovery", RFC2544SystemRecovery)
	engine.Register("rfc2544-reset", RFC2544Reset)
}

// defaultLoadLevelsPct is the RFC 2544 latency test's default offered
// load sweep: 10%, 20%, ..., 100%.
func defaultLoadLevelsPct() []float64 {
	levels := make([]float64, 10)
	for i := range levels {
		levels[i] = float64(i+1) * 10
	}
	return levels
}

func frameSizesOrDefault(cfg engine.Config) []int {
	if len(cfg.FrameSizes) > 0 {
		return cfg.FrameSizes
	}
	return []int{cfg.FrameSize}
}

// RFC2544Throughput runs the §26.1 binary search for each configured
// frame size, recording the largest loss-free rate found.
func RFC2544Throughput(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	sizes := frameSizesOrDefault(cfg)
	addr := addressingFor(e, "RFC2544", 0, false, 0)

	for i, size := range sizes {
		if e.Cancelled() {
			return nil
		}
		e.Progress(fmt.Sprintf("throughput: frame size %d", size), 100*float64(i)/float64(len(sizes)))

		result, err := throughputSearch(ctx, e, addr, size, cfg)
		if err != nil {
			return err
		}
		e.MergeResults(func(r *engine.Results) { r.Throughput = append(r.Throughput, result) })
	}
	return nil
}

func throughputSearch(
	ctx context.Context,
	e *engine.EngineContext,
	addr sigpacket.Addressing,
	size int,
	cfg engine.Config,
) (engine.ThroughputRecord, error) {
	pred := func(ctx context.Context, rate float64) (bool, error) {
		res, err := runTrial(ctx, e, trial.Params{
			Addressing:  addr,
			FrameSize:   size,
			RatePct:     rate,
			Duration:    cfg.Duration,
			Warmup:      cfg.Warmup,
			LineRateBps: e.LineRateBps(),
			TestMode:    "rfc2544-throughput",
		})
		if err != nil {
			return false, err
		}
		return res.LossPct <= cfg.AcceptableLossPct, nil
	}

	search, err := convergence.Search(ctx, 0, 100, pred, convergence.Options{
		ResolutionPct: cfg.ResolutionPct,
		MaxIterations: cfg.MaxIterations,
	})
	if err != nil {
		return engine.ThroughputRecord{}, err
	}

	var final trial.Result
	if search.Best > 0 {
		final, err = runTrial(ctx, e, trial.Params{
			Addressing:     addr,
			FrameSize:      size,
			RatePct:        search.Best,
			Duration:       cfg.Duration,
			Warmup:         cfg.Warmup,
			LineRateBps:    e.LineRateBps(),
			MeasureLatency: true,
			ReservoirSize:  cfg.ReservoirSize,
			TestMode:       "rfc2544-throughput",
		})
		if err != nil {
			return engine.ThroughputRecord{}, err
		}
	}

	maxPPS := pacing.MaxPPS(e.LineRateBps(), uint32(size))
	return engine.ThroughputRecord{
		FrameSize:    size,
		BestRatePct:  search.Best,
		BestMbps:     final.AchievedMbps,
		BestPPS:      float64(maxPPS) * search.Best / 100,
		Iterations:   search.Iterations,
		FramesTested: final.PacketsSent,
		Latency:      final.Latency,
	}, nil
}

// RFC2544ThroughputIMIX runs throughputSearch once per IMIX member
// frame size and reports a blended (weighted) throughput figure across
// the standard Internet mix distribution.
func RFC2544ThroughputIMIX(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	addr := addressingFor(e, "RFC2544", 0, false, 0)

	var weightedMbps, totalWeight float64
	for _, member := range sigpacket.IMIXDistribution {
		if e.Cancelled() {
			return nil
		}
		record, err := throughputSearch(ctx, e, addr, member.FrameSize, cfg)
		if err != nil {
			return err
		}
		e.MergeResults(func(r *engine.Results) { r.Throughput = append(r.Throughput, record) })

		weightedMbps += record.BestMbps * float64(member.Weight)
		totalWeight += float64(member.Weight)
	}

	if totalWeight > 0 {
		e.Progress(fmt.Sprintf("imix blended throughput: %.2f Mb/s", weightedMbps/totalWeight), 100)
	}
	return nil
}

// RFC2544Latency measures latency at each configured offered-load
// percentage (default 10%..100%).
func RFC2544Latency(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	sizes := frameSizesOrDefault(cfg)
	levels := cfg.LoadLevelsPct
	if len(levels) == 0 {
		levels = defaultLoadLevelsPct()
	}
	addr := addressingFor(e, "RFC2544", 0, false, 0)

	for _, size := range sizes {
		for _, pct := range levels {
			if e.Cancelled() {
				return nil
			}
			res, err := runTrial(ctx, e, trial.Params{
				Addressing:     addr,
				FrameSize:      size,
				RatePct:        pct,
				Duration:       cfg.Duration,
				Warmup:         cfg.Warmup,
				LineRateBps:    e.LineRateBps(),
				MeasureLatency: true,
				ReservoirSize:  cfg.ReservoirSize,
				TestMode:       "rfc2544-latency",
			})
			if err != nil {
				return err
			}
			e.MergeResults(func(r *engine.Results) {
				r.Latency = append(r.Latency, engine.LatencyRecord{
					FrameSize:  size,
					OfferedPct: pct,
					Latency:    res.Latency,
					LossPct:    res.LossPct,
				})
			})
		}
	}
	return nil
}

// RFC2544FrameLoss walks offered rate from LossStartPct down to
// LossEndPct in LossStepPct decrements, recording loss at each step.
func RFC2544FrameLoss(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	start, end, step := cfg.LossStartPct, cfg.LossEndPct, cfg.LossStepPct
	if start <= 0 {
		start = 100
	}
	if step <= 0 {
		step = 10
	}
	if end <= 0 {
		end = step
	}

	sizes := frameSizesOrDefault(cfg)
	addr := addressingFor(e, "RFC2544", 0, false, 0)

	for _, size := range sizes {
		for rate := start; rate >= end; rate -= step {
			if e.Cancelled() {
				return nil
			}
			res, err := runTrial(ctx, e, trial.Params{
				Addressing:  addr,
				FrameSize:   size,
				RatePct:     rate,
				Duration:    cfg.Duration,
				Warmup:      cfg.Warmup,
				LineRateBps: e.LineRateBps(),
				TestMode:    "rfc2544-frameloss",
			})
			if err != nil {
				return err
			}
			e.MergeResults(func(r *engine.Results) {
				r.FrameLoss = append(r.FrameLoss, engine.FrameLossRecord{
					FrameSize:  size,
					OfferedPct: rate,
					Sent:       res.PacketsSent,
					Received:   res.PacketsReceived,
					LossPct:    res.LossPct,
				})
			})
		}
	}
	return nil
}

// RFC2544BackToBack doubles the burst size starting at InitialBurst
// until a short 100%-rate trial shows any loss, across BurstTrials
// repetitions. A burst is approximated as a short full-rate trial
// rather than a discretely shaped burst of exactly N back-to-back
// frames.
func RFC2544BackToBack(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	size := cfg.FrameSize
	addr := addressingFor(e, "RFC2544", 0, false, 0)

	burst := cfg.InitialBurst
	if burst <= 0 {
		burst = 1000
	}
	trials := cfg.BurstTrials
	if trials <= 0 {
		trials = 1
	}

	maxPPS := pacing.MaxPPS(e.LineRateBps(), uint32(size))
	maxBurst := 0
	passed := 0

	for t := 0; t < trials; t++ {
		current := burst
		for {
			if e.Cancelled() {
				break
			}
			burstDuration := time.Duration(float64(current)/float64(maxPPS)*float64(time.Second)) + time.Millisecond
			res, err := runTrial(ctx, e, trial.Params{
				Addressing:  addr,
				FrameSize:   size,
				RatePct:     100,
				Duration:    burstDuration,
				LineRateBps: e.LineRateBps(),
				TestMode:    "rfc2544-backtoback",
			})
			if err != nil {
				return err
			}
			if res.LossPct > 0 {
				break
			}
			maxBurst = current
			passed++
			current *= 2
		}
	}

	burstDurationUS := float64(maxBurst) * 1e6 / float64(maxPPS)
	e.MergeResults(func(r *engine.Results) {
		r.BackToBack = &engine.BackToBackRecord{
			FrameSize:       size,
			MaxBurst:        maxBurst,
			BurstDuration:   burstDurationUS / 1e6,
			TrialsPassed:    passed,
			TrialsAttempted: trials,
		}
	})
	return nil
}

// RFC2544SystemRecovery drives the link at 110% of line rate for the
// configured Duration, drops to 50% of line rate, and measures the time
// until loss falls to <=0.001%. The overload rate is not based on a
// measured throughput result.
func RFC2544SystemRecovery(ctx context.Context, e *engine.EngineContext) error {
	return recoveryOrReset(ctx, e, "recovery")
}

// RFC2544Reset monitors for loss to begin (simulated device reset)
// and end (recovery), reusing the same overload-then-recover shape as
// RFC2544SystemRecovery.
func RFC2544Reset(ctx context.Context, e *engine.EngineContext) error {
	return recoveryOrReset(ctx, e, "reset")
}

func recoveryOrReset(ctx context.Context, e *engine.EngineContext, kind string) error {
	cfg := e.Config()
	addr := addressingFor(e, "RFC2544", 0, false, 0)

	overloadDuration := cfg.Duration
	if _, err := runTrial(ctx, e, trial.Params{
		Addressing:  addr,
		FrameSize:   cfg.FrameSize,
		RatePct:     110,
		Duration:    overloadDuration,
		LineRateBps: e.LineRateBps(),
		TestMode:    "rfc2544-" + kind,
	}); err != nil {
		return err
	}

	const pollDuration = 100 * time.Millisecond
	const maxPolls = 600 // 60s ceiling
	start := time.Now()

	for i := 0; i < maxPolls; i++ {
		if e.Cancelled() {
			break
		}
		res, err := runTrial(ctx, e, trial.Params{
			Addressing:  addr,
			FrameSize:   cfg.FrameSize,
			RatePct:     50,
			Duration:    pollDuration,
			LineRateBps: e.LineRateBps(),
			TestMode:    "rfc2544-" + kind,
		})
		if err != nil {
			return err
		}
		if res.LossPct <= 0.001 {
			break
		}
	}

	e.MergeResults(func(r *engine.Results) {
		r.Recovery = &engine.RecoveryRecord{
			Kind:           kind,
			RecoveryTimeMS: float64(time.Since(start).Milliseconds()),
			OverloadPct:    110,
		}
	})
	return nil
}
