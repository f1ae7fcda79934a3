package testmodes

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/krisarmstrong/netbench/internal/engine"
)

func init() {
	engine.Register("bidirectional", Bidirectional)
	engine.Register("multi-port", MultiPort)
}

// Bidirectional runs cfg.SubTestType twice against the same interface:
// once on the calling goroutine as the forward direction, once on an
// auxiliary goroutine (its own EngineContext, own backend worker) as
// the reverse direction at ReverseRatePct (defaulting to the forward
// RatePct, symmetric mode). Both are joined via errgroup before the
// dispatcher returns, matching the single auxiliary-thread concurrency
// model: no work-stealing, no long-lived background goroutines.
func Bidirectional(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	if cfg.SubTestType == "" {
		return fmt.Errorf("bidirectional: %w: empty sub_test_type", engine.ErrInvalidArgument)
	}

	base := cfg
	base.TestType = cfg.SubTestType
	base.SubTestType = ""

	reverseCfg := base
	if cfg.ReverseRatePct > 0 {
		reverseCfg.RatePct = cfg.ReverseRatePct
	}

	reverse := engine.New(e.Logger(), e.Metrics(), e.Platform())
	if err := reverse.Init(ctx, e.Interface()); err != nil {
		return fmt.Errorf("bidirectional: reverse init: %w", err)
	}
	defer func() { _ = reverse.Cleanup() }()
	if err := reverse.Configure(reverseCfg); err != nil {
		return fmt.Errorf("bidirectional: reverse configure: %w", err)
	}

	forward := engine.New(e.Logger(), e.Metrics(), e.Platform())
	if err := forward.Init(ctx, e.Interface()); err != nil {
		return fmt.Errorf("bidirectional: forward init: %w", err)
	}
	defer func() { _ = forward.Cleanup() }()
	if err := forward.Configure(base); err != nil {
		return fmt.Errorf("bidirectional: forward configure: %w", err)
	}

	var g errgroup.Group
	g.Go(func() error { return reverse.Run(ctx) })

	forwardErr := forward.Run(ctx)
	reverseErr := g.Wait()

	if forwardErr != nil {
		return fmt.Errorf("bidirectional: forward direction: %w", forwardErr)
	}
	if reverseErr != nil {
		return fmt.Errorf("bidirectional: reverse direction: %w", reverseErr)
	}

	fr := forward.Results()
	rr := reverse.Results()
	e.MergeResults(func(r *engine.Results) {
		r.Bidirectional = &engine.BidirectionalRecord{
			Forward:       fr,
			Reverse:       rr,
			AggregateMbps: sumThroughputMbps(fr) + sumThroughputMbps(rr),
		}
	})
	return nil
}

// MultiPort runs cfg.SubTestType independently on every enabled port
// in cfg.Ports, each against its own EngineContext and backend worker,
// from a pool of worker goroutines joined via errgroup before the
// dispatcher returns. One port's failure is recorded on its PortResult
// rather than aborting the others, mirroring the original
// implementation's "copy result, keep going" per-port loop.
func MultiPort(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	if cfg.SubTestType == "" {
		return fmt.Errorf("multi-port: %w: empty sub_test_type", engine.ErrInvalidArgument)
	}

	var enabled []engine.PortConfig
	for _, p := range cfg.Ports {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}
	if len(enabled) == 0 {
		return fmt.Errorf("multi-port: %w: no enabled ports", engine.ErrInvalidArgument)
	}

	portCfg := cfg
	portCfg.TestType = cfg.SubTestType
	portCfg.SubTestType = ""
	portCfg.Ports = nil

	results := make([]engine.PortResult, len(enabled))
	var mu sync.Mutex

	var g errgroup.Group
	for i, p := range enabled {
		i, p := i, p
		g.Go(func() error {
			port := engine.New(e.Logger(), e.Metrics(), e.Platform())
			if err := port.Init(ctx, p.Interface); err != nil {
				mu.Lock()
				results[i] = engine.PortResult{Interface: p.Interface, Err: err.Error()}
				mu.Unlock()
				return nil
			}
			defer func() { _ = port.Cleanup() }()

			if err := port.Configure(portCfg); err != nil {
				mu.Lock()
				results[i] = engine.PortResult{Interface: p.Interface, Err: err.Error()}
				mu.Unlock()
				return nil
			}

			runErr := port.Run(ctx)
			res := engine.PortResult{Interface: p.Interface, Results: port.Results()}
			if runErr != nil {
				res.Err = runErr.Error()
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	// Errors are captured per-port on PortResult above; g.Wait only
	// reports a goroutine panicking through context cancellation.
	if err := g.Wait(); err != nil {
		return fmt.Errorf("multi-port: %w", err)
	}

	var aggregate float64
	for _, res := range results {
		aggregate += sumThroughputMbps(res.Results)
	}

	e.MergeResults(func(r *engine.Results) {
		r.MultiPort = &engine.MultiPortRecord{
			Ports:         results,
			AggregateMbps: aggregate,
		}
	})
	return nil
}

// sumThroughputMbps totals BestMbps across every ThroughputRecord a
// sub-run produced, the same aggregate figure the original
// implementation reported across per-port/per-direction threads.
func sumThroughputMbps(r engine.Results) float64 {
	var total float64
	for _, t := range r.Throughput {
		total += t.BestMbps
	}
	return total
}
