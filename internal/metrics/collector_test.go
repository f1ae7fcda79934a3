package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/krisarmstrong/netbench/internal/metrics"
)

func TestCollectorCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.AddPacketsSent("rfc2544-throughput", 10)
	c.AddPacketsReceived("rfc2544-throughput", 9)
	c.AddPacketsLost("rfc2544-throughput", 1)
	c.SetTrialsRunning("rfc2544-throughput", 1)
	c.ObserveLatency("rfc2544-throughput", 125_000)
	c.IncMeteredFrame("y1564", "green")
	c.SetUMEMFramesFree(2048)

	if got := counterValue(t, c.PacketsSent.WithLabelValues("rfc2544-throughput")); got != 10 {
		t.Errorf("PacketsSent = %v, want 10", got)
	}
	if got := counterValue(t, c.PacketsReceived.WithLabelValues("rfc2544-throughput")); got != 9 {
		t.Errorf("PacketsReceived = %v, want 9", got)
	}
	if got := counterValue(t, c.PacketsLost.WithLabelValues("rfc2544-throughput")); got != 1 {
		t.Errorf("PacketsLost = %v, want 1", got)
	}
	if got := counterValue(t, c.MeteredFrames.WithLabelValues("y1564", "green")); got != 1 {
		t.Errorf("MeteredFrames = %v, want 1", got)
	}
}

func TestCollectorNilSafe(t *testing.T) {
	t.Parallel()

	var c *metrics.Collector

	// None of these may panic on a nil Collector.
	c.AddPacketsSent("mode", 1)
	c.AddPacketsReceived("mode", 1)
	c.AddPacketsLost("mode", 1)
	c.SetTrialsRunning("mode", 1)
	c.ObserveLatency("mode", 1)
	c.IncMeteredFrame("mode", "red")
	c.SetUMEMFramesFree(1)
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}
