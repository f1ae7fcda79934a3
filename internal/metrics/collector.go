// Package metrics exposes Prometheus instrumentation for an engine run.
// A Collector is optional and nil-safe: every method is a no-op on a
// nil receiver so a trial can always call into it without branching on
// whether metrics are enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "netbench"
	subsystem = "engine"
)

// Label names for engine metrics.
const (
	labelTestMode = "test_mode"
	labelColor    = "color"
)

// Collector holds all netbench Prometheus metrics.
//
//   - TrialsRunning tracks currently executing trials.
//   - PacketsSent/PacketsReceived/PacketsLost count frame volumes per
//     test mode.
//   - LatencyNS observes per-frame latency as a histogram.
//   - MeteredFrames counts color-aware metering verdicts (Y.1564/MEF).
//   - UMEMFramesFree gauges the kernel-bypass allocator's free pool.
type Collector struct {
	TrialsRunning *prometheus.GaugeVec

	PacketsSent     *prometheus.CounterVec
	PacketsReceived *prometheus.CounterVec
	PacketsLost     *prometheus.CounterVec

	LatencyNS *prometheus.HistogramVec

	MeteredFrames *prometheus.CounterVec

	UMEMFramesFree prometheus.Gauge
}

// NewCollector creates a Collector with all metrics registered against
// reg. If reg is nil, prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.TrialsRunning,
		c.PacketsSent,
		c.PacketsReceived,
		c.PacketsLost,
		c.LatencyNS,
		c.MeteredFrames,
		c.UMEMFramesFree,
	)

	return c
}

func newMetrics() *Collector {
	modeLabels := []string{labelTestMode}
	colorLabels := []string{labelTestMode, labelColor}

	return &Collector{
		TrialsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "trials_running",
			Help:      "Number of currently executing trials.",
		}, modeLabels),

		PacketsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_sent_total",
			Help:      "Total signature frames transmitted.",
		}, modeLabels),

		PacketsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_received_total",
			Help:      "Total signature frames received and validated.",
		}, modeLabels),

		PacketsLost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "packets_lost_total",
			Help:      "Total frames inferred lost (sent minus received).",
		}, modeLabels),

		LatencyNS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "latency_nanoseconds",
			Help:      "Per-frame one-way or round-trip latency.",
			Buckets:   prometheus.ExponentialBuckets(1_000, 2, 20),
		}, modeLabels),

		MeteredFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "metered_frames_total",
			Help:      "Total frames classified by the color-aware token bucket.",
		}, colorLabels),

		UMEMFramesFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "umem_frames_free",
			Help:      "Free frames remaining in the kernel-bypass UMEM pool.",
		}),
	}
}

// SetTrialsRunning sets the running-trial gauge for testMode.
func (c *Collector) SetTrialsRunning(testMode string, n float64) {
	if c == nil {
		return
	}
	c.TrialsRunning.WithLabelValues(testMode).Set(n)
}

// AddPacketsSent adds n to the sent counter for testMode.
func (c *Collector) AddPacketsSent(testMode string, n float64) {
	if c == nil {
		return
	}
	c.PacketsSent.WithLabelValues(testMode).Add(n)
}

// AddPacketsReceived adds n to the received counter for testMode.
func (c *Collector) AddPacketsReceived(testMode string, n float64) {
	if c == nil {
		return
	}
	c.PacketsReceived.WithLabelValues(testMode).Add(n)
}

// AddPacketsLost adds n to the lost counter for testMode.
func (c *Collector) AddPacketsLost(testMode string, n float64) {
	if c == nil {
		return
	}
	c.PacketsLost.WithLabelValues(testMode).Add(n)
}

// ObserveLatency records one latency sample in nanoseconds for testMode.
func (c *Collector) ObserveLatency(testMode string, ns float64) {
	if c == nil {
		return
	}
	c.LatencyNS.WithLabelValues(testMode).Observe(ns)
}

// IncMeteredFrame increments the metered-frame counter for testMode and
// the given color ("green", "yellow", "red").
func (c *Collector) IncMeteredFrame(testMode, color string) {
	if c == nil {
		return
	}
	c.MeteredFrames.WithLabelValues(testMode, color).Inc()
}

// SetUMEMFramesFree sets the UMEM free-frame gauge.
func (c *Collector) SetUMEMFramesFree(n float64) {
	if c == nil {
		return
	}
	c.UMEMFramesFree.Set(n)
}
