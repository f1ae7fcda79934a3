package testmodes

import (
	"context"

	"github.com/krisarmstrong/netbench/internal/engine"
	"github.com/krisarmstrong/netbench/internal/trial"
)

func init() {
	engine.Register("rfc6349-tcp-throughput", RFC6349TCPThroughput)
}

// RFC6349TCPThroughput delegates to a real TCP connection rather than
// the UDP-signature hot loop every other test mode uses: RFC 6349
// measures what an actual TCP stack achieves over the path, including
// its congestion control and retransmission behavior, which a
// UDP-rate trial cannot represent.
func RFC6349TCPThroughput(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	res, err := runTrial(ctx, e, trial.Params{
		Duration:  cfg.Duration,
		TCP:       true,
		TCPTarget: cfg.TCPTarget,
		TestMode:  "rfc6349-tcp-throughput",
	})
	if err != nil {
		return err
	}

	e.MergeResults(func(r *engine.Results) {
		r.Throughput = append(r.Throughput, engine.ThroughputRecord{
			BestMbps:      res.AchievedMbps,
			FramesTested:  0,
			Latency:       res.Latency,
			BaselineRTTNS: res.BaselineRTTNS,
		})
	})
	return nil
}
