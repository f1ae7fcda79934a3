package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/krisarmstrong/netbench/internal/engine"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// renderResults prints an engine.Results in the flag-selected format.
func renderResults(testType string, results engine.Results) error {
	switch outputFormat {
	case formatJSON:
		return renderResultsJSON(results)
	case formatTable:
		return renderResultsTable(testType, results)
	default:
		return fmt.Errorf("%w: %q", errUnsupportedFormat, outputFormat)
	}
}

func renderResultsJSON(results engine.Results) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

func renderResultsTable(testType string, results engine.Results) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer w.Flush()

	for _, r := range results.Throughput {
		fmt.Fprintf(w, "frame_size\trate_pct\tmbps\tpps\titerations\tframes\tbaseline_rtt_ns\n")
		fmt.Fprintf(w, "%d\t%.2f\t%.2f\t%.0f\t%d\t%d\t%d\n",
			r.FrameSize, r.BestRatePct, r.BestMbps, r.BestPPS, r.Iterations, r.FramesTested, r.BaselineRTTNS)
	}
	for _, r := range results.Latency {
		fmt.Fprintf(w, "frame_size\toffered_pct\tavg_ns\tjitter_ns\tloss_pct\n")
		fmt.Fprintf(w, "%d\t%.0f\t%.0f\t%.0f\t%.4f\n",
			r.FrameSize, r.OfferedPct, r.Latency.AvgNS, r.Latency.JitterNS, r.LossPct)
	}
	for _, r := range results.FrameLoss {
		fmt.Fprintf(w, "frame_size\toffered_pct\tsent\treceived\tloss_pct\n")
		fmt.Fprintf(w, "%d\t%.0f\t%d\t%d\t%.4f\n",
			r.FrameSize, r.OfferedPct, r.Sent, r.Received, r.LossPct)
	}
	if r := results.BackToBack; r != nil {
		fmt.Fprintf(w, "max_burst\tburst_duration_s\ttrials_passed\ttrials_attempted\n")
		fmt.Fprintf(w, "%d\t%.6f\t%d\t%d\n", r.MaxBurst, r.BurstDuration, r.TrialsPassed, r.TrialsAttempted)
	}
	if r := results.Recovery; r != nil {
		fmt.Fprintf(w, "kind\trecovery_time_ms\toverload_pct\n")
		fmt.Fprintf(w, "%s\t%.1f\t%.0f\n", r.Kind, r.RecoveryTimeMS, r.OverloadPct)
	}
	if r := results.Congestion; r != nil {
		fmt.Fprintf(w, "frame_size\tsent\treceived\tdropped\tloss_pct\tbackpressure_observed\n")
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%.4f\t%t\n", r.FrameSize, r.Sent, r.Received, r.Dropped, r.LossPct, r.BackpressureObserved)
	}
	for _, svc := range results.ServiceTests {
		fmt.Fprintf(w, "service\tstep_pct\trate_pct\tflr_pct\tfd_avg_ms\tfdv_ms\tpass\tgreen\tyellow\tred\n")
		for _, step := range svc.Steps {
			fmt.Fprintf(w, "%s\t%.0f\t%.2f\t%.4f\t%.3f\t%.3f\t%t\t%d\t%d\t%d\n",
				svc.Name, step.StepPct, step.RatePct, step.FLRPct, step.FDAvgMS, step.FDVMS, step.Pass,
				step.GreenFrames, step.YellowFrames, step.RedFrames)
		}
	}
	for _, r := range results.OAM {
		fmt.Fprintf(w, "kind\tsent\treceived\tloss_pct\tdelay_variation_ns\n")
		fmt.Fprintf(w, "%s\t%d\t%d\t%.4f\t%.0f\n", r.Kind, r.FramesSent, r.FramesReceived, r.LossPct, r.DelayVariationNS)
	}
	for _, r := range results.TSN {
		fmt.Fprintf(w, "kind\ttraffic_class\tgate_deviation_ns\tmax_jitter_ns\tpass\n")
		fmt.Fprintf(w, "%s\t%d\t%.0f\t%.0f\t%t\n", r.Kind, r.TrafficClass, r.GateDeviationNS, r.MaxJitterNS, r.Pass)
	}
	if r := results.Bidirectional; r != nil {
		fmt.Fprintf(w, "direction\tmbps\n")
		fmt.Fprintf(w, "forward\t%.2f\n", sumThroughputMbpsTable(r.Forward))
		fmt.Fprintf(w, "reverse\t%.2f\n", sumThroughputMbpsTable(r.Reverse))
		fmt.Fprintf(w, "aggregate\t%.2f\n", r.AggregateMbps)
	}
	if r := results.MultiPort; r != nil {
		fmt.Fprintf(w, "port\tmbps\terror\n")
		for _, p := range r.Ports {
			fmt.Fprintf(w, "%s\t%.2f\t%s\n", p.Interface, sumThroughputMbpsTable(p.Results), p.Err)
		}
		fmt.Fprintf(w, "aggregate\t%.2f\t\n", r.AggregateMbps)
	}

	return nil
}

func sumThroughputMbpsTable(r engine.Results) float64 {
	var total float64
	for _, t := range r.Throughput {
		total += t.BestMbps
	}
	return total
}
