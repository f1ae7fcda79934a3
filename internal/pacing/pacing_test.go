package pacing

import (
	"testing"
	"time"
)

func TestMaxPPS(t *testing.T) {
	t.Parallel()

	// 1 Gbps line rate, 1000-byte frames (+20 bytes wire overhead).
	got := MaxPPS(1_000_000_000, 1000)
	want := uint64(1_000_000_000) / ((1000 + wireOverheadBytes) * 8)
	if got != want {
		t.Errorf("MaxPPS() = %d, want %d", got, want)
	}
}

func TestUtilizationZeroLineRate(t *testing.T) {
	t.Parallel()

	if got := Utilization(1000, 64, 0); got != 0 {
		t.Errorf("Utilization() = %v, want 0 for a zero line rate", got)
	}
}

func TestUtilizationFullRate(t *testing.T) {
	t.Parallel()

	lineRateBps := uint64(1_000_000_000)
	maxPPS := MaxPPS(lineRateBps, 64)

	got := Utilization(maxPPS, 64, lineRateBps)
	if got < 99 || got > 101 {
		t.Errorf("Utilization() = %v, want close to 100 at max achievable rate", got)
	}
}

func TestGovernorSetRateIgnoresInvalidPct(t *testing.T) {
	t.Parallel()

	g := NewGovernor(1_000_000_000, 1000, 50)
	before := g.intervalNS

	g.SetRate(0)
	g.SetRate(-5)

	if g.intervalNS != before {
		t.Errorf("SetRate() with an out-of-range percentage changed the schedule")
	}
}

func TestGovernorWaitAdvancesSchedule(t *testing.T) {
	t.Parallel()

	g := NewGovernor(1_000_000_000, 1000, 100)

	var clock int64
	g.now = func() int64 { return clock }
	g.startNS = clock
	g.nextTxNS = clock

	first := g.Wait()
	if first != 0 {
		t.Errorf("Wait() = %d, want 0 when already at schedule", first)
	}
	if g.nextTxNS != int64(g.intervalNS) {
		t.Errorf("nextTxNS = %d, want %d after one Wait", g.nextTxNS, g.intervalNS)
	}
}

func TestGovernorWaitDetectsOverrun(t *testing.T) {
	t.Parallel()

	g := NewGovernor(1_000_000_000, 1000, 100)

	var clock int64
	g.now = func() int64 { return clock }
	g.startNS = 0
	g.nextTxNS = 0

	// Jump the clock far past the schedule to trigger an overrun reset.
	clock = int64(g.intervalNS) * (overrunMultiplier + 1)
	g.Wait()

	if _, overruns := g.Stats(); overruns != 1 {
		t.Errorf("overruns = %d, want 1 after a large schedule gap", overruns)
	}
}

func TestGovernorRateAccounting(t *testing.T) {
	t.Parallel()

	g := NewGovernor(1_000_000_000, 1000, 100)

	var clock int64
	g.now = func() int64 { return clock }
	g.startNS = 0

	clock = int64(time.Second)
	g.RecordTX(1000, 1_000_000)

	pps, mbps := g.Rate()
	if pps != 1000 {
		t.Errorf("pps = %v, want 1000", pps)
	}
	if mbps != 8 {
		t.Errorf("mbps = %v, want 8", mbps)
	}
}

func TestTimerWarmupThenExpiry(t *testing.T) {
	t.Parallel()

	timer := NewTimer(100*time.Millisecond, 50*time.Millisecond)

	var clock int64
	timer.now = func() int64 { return clock }
	timer.Start()

	if !timer.InWarmup() {
		t.Fatal("InWarmup() = false immediately after Start with nonzero warmup")
	}

	clock = int64(40 * time.Millisecond)
	if timer.Expired() {
		t.Fatal("Expired() = true before warmup elapsed")
	}

	clock = int64(60 * time.Millisecond)
	if timer.Expired() {
		t.Fatal("Expired() = true before measured duration elapsed")
	}
	if timer.InWarmup() {
		t.Error("InWarmup() = true after warmup window has passed")
	}

	clock = int64(200 * time.Millisecond)
	if !timer.Expired() {
		t.Fatal("Expired() = false after warmup+duration elapsed")
	}
}

func TestTimerNoWarmupStartsInMeasuredPhase(t *testing.T) {
	t.Parallel()

	timer := NewTimer(100*time.Millisecond, 0)

	var clock int64
	timer.now = func() int64 { return clock }
	timer.Start()

	if timer.InWarmup() {
		t.Fatal("InWarmup() = true with a zero warmup")
	}
	if got := timer.Elapsed(); got != 0 {
		t.Errorf("Elapsed() = %v, want 0 at start", got)
	}
}

func TestTimerElapsedExcludesWarmup(t *testing.T) {
	t.Parallel()

	timer := NewTimer(time.Second, 100*time.Millisecond)

	var clock int64
	timer.now = func() int64 { return clock }
	timer.Start()

	clock = int64(300 * time.Millisecond)
	if got := timer.Elapsed(); got != 200*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 200ms", got)
	}
}
