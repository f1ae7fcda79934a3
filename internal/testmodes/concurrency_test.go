package testmodes_test

import (
	"context"
	"errors"
	"testing"

	"github.com/krisarmstrong/netbench/internal/engine"
	"github.com/krisarmstrong/netbench/internal/testmodes"
)

func TestBidirectionalRequiresSubTestType(t *testing.T) {
	t.Parallel()

	e := newUnstartedEngine(t)
	if err := e.Configure(engine.Config{TestType: "bidirectional"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	err := testmodes.Bidirectional(context.Background(), e)
	if !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("Bidirectional() error = %v, want ErrInvalidArgument", err)
	}
}

func TestBidirectionalJoinsBothDirections(t *testing.T) {
	t.Parallel()

	e := newUnstartedEngine(t)
	cfg := engine.Config{
		TestType:    "bidirectional",
		SubTestType: "rfc2544-throughput",
		FrameSize:   64,
	}
	if err := e.Configure(cfg); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	// The test interface doesn't exist, so both the forward and
	// reverse EngineContext's backend selection fail; the call must
	// still return (both goroutines joined) rather than hang, and
	// report an error rather than silently succeeding.
	err := testmodes.Bidirectional(context.Background(), e)
	if err == nil {
		t.Fatal("Bidirectional() error = nil, want a backend-selection error")
	}
}

func TestMultiPortRequiresSubTestType(t *testing.T) {
	t.Parallel()

	e := newUnstartedEngine(t)
	if err := e.Configure(engine.Config{TestType: "multi-port"}); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	err := testmodes.MultiPort(context.Background(), e)
	if !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("MultiPort() error = %v, want ErrInvalidArgument", err)
	}
}

func TestMultiPortRequiresEnabledPorts(t *testing.T) {
	t.Parallel()

	e := newUnstartedEngine(t)
	cfg := engine.Config{
		TestType:    "multi-port",
		SubTestType: "rfc2544-throughput",
		Ports:       []engine.PortConfig{{Interface: "test0", Enabled: false}},
	}
	if err := e.Configure(cfg); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	err := testmodes.MultiPort(context.Background(), e)
	if !errors.Is(err, engine.ErrInvalidArgument) {
		t.Errorf("MultiPort() error = %v, want ErrInvalidArgument", err)
	}
}

func TestMultiPortRecordsPerPortFailureWithoutAbortingTheRun(t *testing.T) {
	t.Parallel()

	e := newUnstartedEngine(t)
	cfg := engine.Config{
		TestType:    "multi-port",
		SubTestType: "rfc2544-throughput",
		FrameSize:   64,
		Ports: []engine.PortConfig{
			{Interface: "test-nonexistent-0", Enabled: true},
			{Interface: "test-nonexistent-1", Enabled: true},
		},
	}
	if err := e.Configure(cfg); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	if err := testmodes.MultiPort(context.Background(), e); err != nil {
		t.Fatalf("MultiPort() error = %v, want nil (per-port failures do not abort the run)", err)
	}

	rec := e.Results().MultiPort
	if rec == nil {
		t.Fatal("Results().MultiPort = nil, want a MultiPortRecord")
	}
	if len(rec.Ports) != 2 {
		t.Fatalf("len(Ports) = %d, want 2", len(rec.Ports))
	}
	for _, p := range rec.Ports {
		if p.Err == "" {
			t.Errorf("port %s: Err = %q, want a backend-selection failure recorded", p.Interface, p.Err)
		}
	}
}
