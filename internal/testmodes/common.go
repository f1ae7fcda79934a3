// Package testmodes implements the dispatchers for every benchmark
// family: RFC 2544, RFC 2889, RFC 6349, Y.1564, Y.1731, MEF 48/49, and
// IEEE 802.1Qbv TSN. Each dispatcher composes the convergence driver
// and the trial executor over a shared EngineContext, and registers
// itself with the engine package by test-type name at init time.
package testmodes

import (
	"context"

	"github.com/krisarmstrong/netbench/internal/engine"
	"github.com/krisarmstrong/netbench/internal/sigpacket"
	"github.com/krisarmstrong/netbench/internal/trial"
)

// addressingFor builds the sigpacket.Addressing a trial needs from the
// engine's queried identity and configuration, stamped with signature
// and streamID for the requesting test family.
func addressingFor(e *engine.EngineContext, signature string, streamID uint32, markDSCP bool, dscp uint8) sigpacket.Addressing {
	cfg := e.Config()
	return sigpacket.Addressing{
		Mode:      cfg.Mode,
		SrcMAC:    e.LocalMAC(),
		DstMAC:    cfg.RemoteMAC,
		SrcIP:     cfg.LocalIP,
		DstIP:     cfg.RemoteIP,
		SrcPort:   cfg.LocalPort,
		DstPort:   cfg.RemotePort,
		DSCP:      dscp,
		MarkDSCP:  markDSCP,
		Signature: sigpacket.KnownSignatures[signature],
		StreamID:  streamID,
	}
}

// newExecutor builds a trial.Executor bound to e's selected backend
// and worker, with e's optional metrics collector wired in.
func newExecutor(e *engine.EngineContext) *trial.Executor {
	return &trial.Executor{
		Backend: e.Backend(),
		Worker:  e.Worker(),
		Metrics: e.Metrics(),
	}
}

// runTrial is the common single-trial call every dispatcher makes:
// build Params from e's config plus the per-call overrides, and run it.
func runTrial(ctx context.Context, e *engine.EngineContext, p trial.Params) (trial.Result, error) {
	return newExecutor(e).Run(ctx, p)
}
