package pacing

import "time"

// Timer tracks a trial's two-phase lifecycle: an optional warmup
// window followed by the measured duration.
type Timer struct {
	duration time.Duration
	warmup   time.Duration

	startNS  int64
	inWarmup bool
	expired  bool

	now func() int64
}

// NewTimer creates a Timer for the given measured duration and warmup
// period. A zero warmup starts directly in the measured phase.
func NewTimer(duration, warmup time.Duration) *Timer {
	return &Timer{
		duration: duration,
		warmup:   warmup,
		inWarmup: warmup > 0,
		now:      monotonicNS,
	}
}

// Start (re)starts the timer's clock.
func (t *Timer) Start() {
	t.startNS = t.now()
	t.inWarmup = t.warmup > 0
	t.expired = false
}

// Expired reports whether the full warmup+duration window has
// elapsed. Once true it stays true until Start is called again.
func (t *Timer) Expired() bool {
	if t.expired {
		return true
	}

	elapsed := time.Duration(t.now() - t.startNS)

	if t.inWarmup && elapsed >= t.warmup {
		t.inWarmup = false
	}

	if elapsed >= t.warmup+t.duration {
		t.expired = true
		return true
	}
	return false
}

// InWarmup reports whether the timer is still within its warmup
// window. Call Expired first to let a boundary crossing be observed.
func (t *Timer) InWarmup() bool { return t.inWarmup }

// Elapsed returns the time elapsed in the measured phase, excluding
// warmup. It is zero while still in warmup.
func (t *Timer) Elapsed() time.Duration {
	elapsed := time.Duration(t.now() - t.startNS)
	if elapsed <= t.warmup {
		return 0
	}
	return elapsed - t.warmup
}
