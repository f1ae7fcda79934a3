package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestEngine(t *testing.T) *EngineContext {
	t.Helper()
	e := New(nil, nil, nil)
	if err := e.Init(context.Background(), "test0"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return e
}

func TestInitRejectsEmptyInterface(t *testing.T) {
	t.Parallel()

	e := New(nil, nil, nil)
	err := e.Init(context.Background(), "")
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Init(\"\") error = %v, want ErrInvalidArgument", err)
	}
}

func TestConfigureRejectsEmptyTestType(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	err := e.Configure(Config{})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Configure() error = %v, want ErrInvalidArgument", err)
	}
}

func TestConfigureClampsOutOfRangeValues(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	err := e.Configure(Config{
		TestType:      "unit-test-mode",
		Duration:      time.Millisecond,
		ResolutionPct: 0,
		MaxIterations: 0,
		ReservoirSize: 0,
	})
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	got := e.Config()
	if got.Duration != time.Second {
		t.Errorf("Duration = %v, want clamped to 1s", got.Duration)
	}
	if got.ResolutionPct != 0.01 {
		t.Errorf("ResolutionPct = %v, want clamped to 0.01", got.ResolutionPct)
	}
	if got.MaxIterations != 20 {
		t.Errorf("MaxIterations = %d, want defaulted to 20", got.MaxIterations)
	}
	if got.ReservoirSize != 100_000 {
		t.Errorf("ReservoirSize = %d, want defaulted to 100000", got.ReservoirSize)
	}
}

func TestConfigureRejectedWhileRunning(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.state = StateRunning

	err := e.Configure(Config{TestType: "unit-test-mode"})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Configure() while running error = %v, want ErrInvalidState", err)
	}
}

func TestRunRejectsUnknownTestType(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	if err := e.Configure(Config{TestType: "no-such-test-type-registered"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	err := e.Run(context.Background())
	if !errors.Is(err, ErrUnknownTestType) {
		t.Errorf("Run() error = %v, want ErrUnknownTestType", err)
	}
	if got := e.State(); got != StateFailed {
		t.Errorf("State() = %v, want StateFailed", got)
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.state = StateRunning

	err := e.Run(context.Background())
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("Run() while already running error = %v, want ErrInvalidState", err)
	}
}

func TestCancelMarksCancelled(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	if e.Cancelled() {
		t.Fatal("Cancelled() = true before Cancel() was called")
	}
	e.Cancel()
	if !e.Cancelled() {
		t.Error("Cancelled() = false after Cancel() was called")
	}
}

func TestMergeResultsAppendsRows(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	e.MergeResults(func(r *Results) {
		r.Throughput = append(r.Throughput, ThroughputRecord{FrameSize: 64})
	})
	e.MergeResults(func(r *Results) {
		r.Throughput = append(r.Throughput, ThroughputRecord{FrameSize: 128})
	})

	results := e.Results()
	if len(results.Throughput) != 2 {
		t.Fatalf("len(Throughput) = %d, want 2", len(results.Throughput))
	}
	if results.Throughput[0].FrameSize != 64 || results.Throughput[1].FrameSize != 128 {
		t.Errorf("Throughput records = %+v, want frame sizes 64 and 128 in order", results.Throughput)
	}
}

func TestNextSeqIncrements(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	first := e.NextSeq()
	second := e.NextSeq()
	if second != first+1 {
		t.Errorf("NextSeq() sequence = %d, %d, want consecutive", first, second)
	}
}

func TestCleanupIsIdempotentWithoutBackend(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	if err := e.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if err := e.Cleanup(); err != nil {
		t.Fatalf("second Cleanup() error = %v", err)
	}
}
