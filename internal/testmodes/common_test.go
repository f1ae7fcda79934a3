package testmodes

import (
	"context"
	"testing"

	"github.com/krisarmstrong/netbench/internal/engine"
	"github.com/krisarmstrong/netbench/internal/sigpacket"
)

func newTestEngineContext(t *testing.T, cfg engine.Config) *engine.EngineContext {
	t.Helper()
	e := engine.New(nil, nil, nil)
	if err := e.Init(context.Background(), "test0"); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if cfg.TestType == "" {
		cfg.TestType = "unit-test-mode"
	}
	if err := e.Configure(cfg); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	return e
}

func TestAddressingForPopulatesFromConfig(t *testing.T) {
	t.Parallel()

	cfg := engine.Config{
		Mode:       sigpacket.ModeIPv4,
		RemoteMAC:  [6]byte{0x02, 0, 0, 0, 0, 9},
		LocalPort:  40000,
		RemotePort: 40001,
	}
	e := newTestEngineContext(t, cfg)

	addr := addressingFor(e, "RFC2544", 5, true, 46)

	if addr.Mode != sigpacket.ModeIPv4 {
		t.Errorf("Mode = %v, want ModeIPv4", addr.Mode)
	}
	if addr.DstMAC != cfg.RemoteMAC {
		t.Errorf("DstMAC = %v, want %v", addr.DstMAC, cfg.RemoteMAC)
	}
	if addr.SrcPort != cfg.LocalPort || addr.DstPort != cfg.RemotePort {
		t.Errorf("ports = %d/%d, want %d/%d", addr.SrcPort, addr.DstPort, cfg.LocalPort, cfg.RemotePort)
	}
	if addr.Signature != sigpacket.KnownSignatures["RFC2544"] {
		t.Error("Signature was not set from the known-signature table")
	}
	if addr.StreamID != 5 {
		t.Errorf("StreamID = %d, want 5", addr.StreamID)
	}
	if !addr.MarkDSCP || addr.DSCP != 46 {
		t.Errorf("MarkDSCP/DSCP = %v/%d, want true/46", addr.MarkDSCP, addr.DSCP)
	}
}

func TestNewExecutorWiresEngineState(t *testing.T) {
	t.Parallel()

	e := newTestEngineContext(t, engine.Config{})
	exec := newExecutor(e)

	if exec.Worker != e.Worker() {
		t.Errorf("Worker = %+v, want %+v", exec.Worker, e.Worker())
	}
}
