package seqtrack_test

import (
	"testing"

	"github.com/krisarmstrong/netbench/internal/seqtrack"
)

func TestTrackerRecordClassification(t *testing.T) {
	t.Parallel()

	tr := seqtrack.New(100, 10)

	tr.Record(100) // first: received
	tr.Record(105) // in range: received
	tr.Record(100) // repeat: duplicate
	tr.Record(500) // out of range

	if got := tr.Received(); got != 2 {
		t.Errorf("Received() = %d, want 2", got)
	}
	if got := tr.Duplicate(); got != 1 {
		t.Errorf("Duplicate() = %d, want 1", got)
	}
	if got := tr.OutOfRange(); got != 1 {
		t.Errorf("OutOfRange() = %d, want 1", got)
	}
	if got := tr.Calls(); got != 4 {
		t.Errorf("Calls() = %d, want 4", got)
	}
}

func TestTrackerStats(t *testing.T) {
	t.Parallel()

	tr := seqtrack.New(0, 100)
	for _, s := range []uint32{0, 1, 2, 3} {
		tr.Record(s)
	}

	received, lost, lossPct := tr.Stats(10)
	if received != 4 {
		t.Errorf("received = %d, want 4", received)
	}
	if lost != 6 {
		t.Errorf("lost = %d, want 6", lost)
	}
	if lossPct != 60 {
		t.Errorf("lossPct = %v, want 60", lossPct)
	}
}

func TestTrackerStatsNoLoss(t *testing.T) {
	t.Parallel()

	tr := seqtrack.New(0, 10)
	tr.Record(0)
	tr.Record(1)

	_, lost, lossPct := tr.Stats(2)
	if lost != 0 {
		t.Errorf("lost = %d, want 0", lost)
	}
	if lossPct != 0 {
		t.Errorf("lossPct = %v, want 0", lossPct)
	}
}

func TestNewForExpected(t *testing.T) {
	t.Parallel()

	tr := seqtrack.NewForExpected(0, 50)
	// capacity should be expected+SafetyMargin; confirm by recording at
	// the edge of that window without it being classified out-of-range.
	tr.Record(50 + seqtrack.SafetyMargin - 1)

	if got := tr.OutOfRange(); got != 0 {
		t.Errorf("OutOfRange() = %d, want 0 for in-window sequence", got)
	}
}
