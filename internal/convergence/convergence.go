// Package convergence implements the binary-search driver shared by
// every test mode that hunts for a maximum passing rate: RFC 2544
// throughput and back-to-back, RFC 2889 forwarding rate, and Y.1564
// step validation all reduce to "find the largest value in [low, high]
// for which a predicate holds."
package convergence

import "context"

// DefaultResolutionPct is the default termination resolution, 0.1% of
// the search range.
const DefaultResolutionPct = 0.1

// DefaultMaxIterations caps the search when resolution is never reached.
const DefaultMaxIterations = 20

// Options tunes a Search call. A zero Options uses the defaults.
type Options struct {
	ResolutionPct float64
	MaxIterations int
}

func (o Options) withDefaults() Options {
	if o.ResolutionPct <= 0 {
		o.ResolutionPct = DefaultResolutionPct
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	return o
}

// Result is the outcome of a Search.
type Result struct {
	Best       float64
	Iterations int
	// Converged is false when the search exhausted MaxIterations without
	// reaching ResolutionPct, or when it was cancelled mid-search.
	Converged bool
	Cancelled bool
}

// Predicate runs one trial at rate and reports whether it passed. It is
// the caller's responsibility to ensure P is monotone over [low, high]:
// true at some rates below the eventual answer, false above it.
type Predicate func(ctx context.Context, rate float64) (pass bool, err error)

// Search performs the RFC 2544-style binary search over [low, high]
// using pred as the oracle. Ties resolve toward the lower (passing)
// rate. If pred never passes, Best is 0. Search exits early, with
// Cancelled set, if ctx is done between iterations.
func Search(ctx context.Context, low, high float64, pred Predicate, opts Options) (Result, error) {
	opts = opts.withDefaults()

	best := 0.0

	resolution := (high - low) * opts.ResolutionPct / 100
	if resolution <= 0 {
		resolution = opts.ResolutionPct / 100
	}

	iterations := 0
	for ; iterations < opts.MaxIterations; iterations++ {
		if ctx.Err() != nil {
			return Result{Best: best, Iterations: iterations, Cancelled: true}, nil
		}
		if high-low <= resolution {
			break
		}

		mid := (low + high) / 2
		pass, err := pred(ctx, mid)
		if err != nil {
			return Result{Best: best, Iterations: iterations}, err
		}

		if pass {
			best = mid
			low = mid
		} else {
			high = mid
		}
	}

	return Result{Best: best, Iterations: iterations, Converged: high-low <= resolution}, nil
}
