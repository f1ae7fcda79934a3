package latency_test

import (
	"testing"

	"github.com/krisarmstrong/netbench/internal/latency"
)

func TestReservoirComputeEmpty(t *testing.T) {
	t.Parallel()

	r := latency.NewReservoir(10)
	stats := r.Compute()
	if stats.Count != 0 {
		t.Errorf("Count = %d, want 0 for empty reservoir", stats.Count)
	}
}

func TestReservoirComputeStats(t *testing.T) {
	t.Parallel()

	r := latency.NewReservoir(0) // uses DefaultCapacity
	for _, s := range []uint64{100, 200, 300, 400, 500} {
		r.Add(s)
	}

	stats := r.Compute()
	if stats.Count != 5 {
		t.Fatalf("Count = %d, want 5", stats.Count)
	}
	if stats.MinNS != 100 {
		t.Errorf("MinNS = %d, want 100", stats.MinNS)
	}
	if stats.MaxNS != 500 {
		t.Errorf("MaxNS = %d, want 500", stats.MaxNS)
	}
	if stats.AvgNS != 300 {
		t.Errorf("AvgNS = %v, want 300", stats.AvgNS)
	}
	if stats.P50NS == 0 {
		t.Errorf("P50NS = 0, want a nonzero percentile value")
	}
}

func TestReservoirCapacityDropsExcess(t *testing.T) {
	t.Parallel()

	r := latency.NewReservoir(2)
	r.Add(1)
	r.Add(2)
	r.Add(3) // dropped: reservoir already at capacity

	if got := r.Len(); got != 2 {
		t.Errorf("Len() = %d, want 2", got)
	}
}

func TestReservoirInvariants(t *testing.T) {
	t.Parallel()

	r := latency.NewReservoir(100)
	for _, s := range []uint64{50, 10, 999, 200, 300, 10, 10} {
		r.Add(s)
	}

	stats := r.Compute()
	if float64(stats.MinNS) > stats.AvgNS || stats.AvgNS > float64(stats.MaxNS) {
		t.Errorf("expected MinNS <= AvgNS <= MaxNS, got %d <= %v <= %d", stats.MinNS, stats.AvgNS, stats.MaxNS)
	}
	if stats.P50NS > stats.P95NS || stats.P95NS > stats.P99NS {
		t.Errorf("expected P50 <= P95 <= P99, got %d <= %d <= %d", stats.P50NS, stats.P95NS, stats.P99NS)
	}
}
