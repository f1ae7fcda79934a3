// Package engine holds EngineContext, the orchestrator that selects a
// packet I/O backend, dispatches one of the test-mode families, and
// collects their results into typed result tables. Exactly one
// EngineContext drives exactly one run; MultiPort composes several of
// them but remains one process, one invocation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/krisarmstrong/netbench/internal/metrics"
	"github.com/krisarmstrong/netbench/internal/netio"
	"github.com/krisarmstrong/netbench/internal/platforminfo"
	"github.com/krisarmstrong/netbench/internal/sigpacket"
)

// State is the EngineContext lifecycle state.
type State uint8

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// cleanupWait bounds how long Cleanup waits for a Running engine to
// observe cancellation and exit its dispatcher.
const cleanupWait = 10 * time.Second

// Sentinel errors, matching the abstract error kinds of the error
// handling design: InvalidArgument, InvalidState, BackendInit.
var (
	ErrInvalidArgument = errors.New("engine: invalid argument")
	ErrInvalidState    = errors.New("engine: invalid state")
	ErrBackendInit     = errors.New("engine: backend init failed")
	ErrUnknownTestType = errors.New("engine: unknown test type")
)

// ProgressFunc is called at coarse milestones: start of test,
// per-frame-size start, and final completion. percent is in [0, 100].
type ProgressFunc func(e *EngineContext, message string, percent float64)

// Config is the full set of knobs a test-mode dispatcher may read from
// EngineContext.Config. Not every field applies to every test type;
// dispatchers read only the fields relevant to them.
type Config struct {
	TestType string

	FrameSize  int
	FrameSizes []int // RFC 2544 throughput/latency sweep over multiple sizes

	RatePct       float64
	LoadLevelsPct []float64 // RFC 2544 latency: default 10,20,...,100

	LossStartPct float64
	LossEndPct   float64
	LossStepPct  float64

	InitialBurst int
	BurstTrials  int

	Duration time.Duration
	Warmup   time.Duration

	AcceptableLossPct float64
	ResolutionPct     float64
	MaxIterations     int
	ReservoirSize     int

	Mode       sigpacket.Mode
	LocalMAC   [6]byte
	RemoteMAC  [6]byte
	LocalIP    [16]byte
	RemoteIP   [16]byte
	LocalPort  uint16
	RemotePort uint16

	Services []Y1564Service

	TCPTarget string

	NetIO netio.SelectConfig

	// SubTestType is the underlying registered test type that
	// Bidirectional/MultiPort each drive on their own EngineContext(s);
	// TestType itself stays "bidirectional"/"multi-port" so the
	// dispatcher lookup in Run routes to this package instead of
	// recursing.
	SubTestType string

	// ReverseRatePct is the offered rate used for Bidirectional's
	// auxiliary reverse-direction trial; zero defaults to matching the
	// forward direction's configured RatePct (symmetric mode).
	ReverseRatePct float64

	// Ports lists the interfaces MultiPort drives one worker goroutine
	// per enabled entry against, each with its own EngineContext.
	Ports []PortConfig
}

// PortConfig names one interface MultiPort drives independently.
type PortConfig struct {
	Interface string
	Enabled   bool
}

// Y1564Service describes one ITU-T Y.1564 service under test.
type Y1564Service struct {
	ID              int
	Name            string
	Enabled         bool
	CIRMbps         float64
	EIRMbps         float64
	CBSBytes        int
	EBSBytes        int
	FDThresholdMS   float64
	FDVThresholdMS  float64
	FLRThresholdPct float64
	FrameSize       int
	DSCP            uint8
}

// Results holds every result table the engine can populate. A
// dispatcher writes only the field(s) that correspond to its family;
// the rest remain zero-valued.
type Results struct {
	Throughput    []ThroughputRecord
	Latency       []LatencyRecord
	FrameLoss     []FrameLossRecord
	BackToBack    *BackToBackRecord
	Recovery      *RecoveryRecord
	Congestion    *CongestionRecord
	ServiceTests  []ServiceRecord
	OAM           []OAMRecord
	TSN           []TSNRecord
	MultiPort     *MultiPortRecord
	Bidirectional *BidirectionalRecord
}

// clamp enforces the configure-time sanity bounds from the lifecycle
// spec: duration below 1s is raised to 1s, resolution below 0.01% is
// raised to 0.01%.
func (c *Config) clamp() {
	if c.Duration < time.Second {
		c.Duration = time.Second
	}
	if c.ResolutionPct < 0.01 {
		c.ResolutionPct = 0.01
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = 20
	}
	if c.ReservoirSize <= 0 {
		c.ReservoirSize = 100_000
	}
}

// EngineContext orchestrates one benchmark run. It is created with an
// interface identity, configured once, run at most once, and then
// torn down; it is not reusable across independent runs.
type EngineContext struct {
	mu sync.Mutex

	iface       string
	localMAC    [6]byte
	lineRateBps uint64

	cfg   Config
	state State

	backend netio.Backend
	worker  netio.Worker

	cancelled atomic.Bool
	seq       atomic.Uint64

	progress ProgressFunc

	logger   *slog.Logger
	metrics  *metrics.Collector
	platform platforminfo.Service

	runID   string
	started time.Time
	elapsed time.Duration

	results Results
}

// New creates an EngineContext in StateIdle, not yet bound to an
// interface. It does not know the interface's name, speed or MAC;
// call Init for that.
func New(logger *slog.Logger, collector *metrics.Collector, platform platforminfo.Service) *EngineContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &EngineContext{
		logger:   logger,
		metrics:  collector,
		platform: platform,
		runID:    xid.New().String(),
	}
}

// Init queries the platform-info service for ifaceName and sets
// defaults. The engine transitions to StateIdle.
func (e *EngineContext) Init(ctx context.Context, ifaceName string) error {
	if ifaceName == "" {
		return fmt.Errorf("%w: empty interface name", ErrInvalidArgument)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.iface = ifaceName
	e.state = StateIdle

	if e.platform != nil {
		info, err := e.platform.Query(ctx, ifaceName)
		if err != nil {
			return fmt.Errorf("%w: query %s: %w", ErrBackendInit, ifaceName, err)
		}
		e.localMAC = info.MAC
		e.lineRateBps = info.SpeedBps
	}

	e.logger.Info("engine initialized",
		slog.String("interface", ifaceName),
		slog.Uint64("line_rate_bps", e.lineRateBps),
	)
	return nil
}

// Configure stores cfg after clamping nonsensical values. It is
// rejected while the engine is Running.
func (e *EngineContext) Configure(cfg Config) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateRunning {
		return fmt.Errorf("%w: configure while running", ErrInvalidState)
	}
	if cfg.TestType == "" {
		return fmt.Errorf("%w: empty test type", ErrInvalidArgument)
	}

	cfg.clamp()
	if cfg.LocalMAC == [6]byte{} {
		cfg.LocalMAC = e.localMAC
	}
	e.cfg = cfg
	return nil
}

// SetProgressCallback installs fn, called at coarse milestones during Run.
func (e *EngineContext) SetProgressCallback(fn ProgressFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress = fn
}

// Cancel requests cooperative cancellation of an in-progress Run.
func (e *EngineContext) Cancel() {
	e.cancelled.Store(true)
}

// Cancelled reports whether Cancel has been called for this run.
func (e *EngineContext) Cancelled() bool { return e.cancelled.Load() }

// State returns the current lifecycle state.
func (e *EngineContext) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Results returns a snapshot of result tables populated so far, valid
// to call even after a failed or cancelled run to see partial output.
func (e *EngineContext) Results() Results {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.results
}

// Config returns the active configuration, for dispatchers.
func (e *EngineContext) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Logger returns the engine's logger.
func (e *EngineContext) Logger() *slog.Logger { return e.logger }

// Metrics returns the engine's optional metrics collector (may be nil).
func (e *EngineContext) Metrics() *metrics.Collector { return e.metrics }

// Platform returns the engine's platform-info service (may be nil),
// so a meta-dispatcher like MultiPort can build sibling EngineContexts
// that share it.
func (e *EngineContext) Platform() platforminfo.Service { return e.platform }

// LineRateBps returns the queried or configured line rate.
func (e *EngineContext) LineRateBps() uint64 { return e.lineRateBps }

// Interface returns the interface name this engine was initialized
// with, so a meta-dispatcher like Bidirectional can bind an auxiliary
// EngineContext to the same port.
func (e *EngineContext) Interface() string { return e.iface }

// LocalMAC returns the interface hardware address, queried at Init or
// reported by the selected backend, whichever ran most recently.
func (e *EngineContext) LocalMAC() [6]byte { return e.localMAC }

// Backend returns the selected I/O backend, valid only during or
// after Run.
func (e *EngineContext) Backend() netio.Backend { return e.backend }

// Worker returns the single worker this engine drives.
func (e *EngineContext) Worker() netio.Worker { return e.worker }

// NextSeq returns the next value of the engine's monotonic sequence
// counter, used to seed trial sequence numbering across dispatchers
// that run multiple trials in one test (e.g. per frame size).
func (e *EngineContext) NextSeq() uint64 { return e.seq.Add(1) }

// Progress invokes the installed progress callback, if any.
func (e *EngineContext) Progress(message string, percent float64) {
	e.mu.Lock()
	fn := e.progress
	e.mu.Unlock()
	if fn != nil {
		fn(e, message, percent)
	}
}

// setResults merges partial into the engine's result tables. Called by
// dispatchers as they produce output, so cancellation or failure mid-run
// still leaves prior rows visible via Results().
func (e *EngineContext) setResults(fn func(*Results)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.results)
}

// MergeResults lets a dispatcher append to the engine's result tables
// as it produces rows, rather than building the whole table and
// assigning it only at the end.
func (e *EngineContext) MergeResults(fn func(*Results)) {
	e.setResults(fn)
}

// Run selects a backend, initializes one worker, and dispatches the
// configured test type. It blocks until the dispatcher returns, the
// context is cancelled, or Cancel is called. On return the state is
// one of Completed, Failed, or Cancelled.
func (e *EngineContext) Run(parentCtx context.Context) error {
	e.mu.Lock()
	if e.state == StateRunning {
		e.mu.Unlock()
		return fmt.Errorf("%w: already running", ErrInvalidState)
	}
	dispatcher, ok := lookup(e.cfg.TestType)
	if !ok {
		e.state = StateFailed
		e.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownTestType, e.cfg.TestType)
	}
	e.state = StateRunning
	e.started = time.Now()
	e.mu.Unlock()

	backend, err := netio.Select(e.cfg.NetIO, e.logger)
	if err != nil {
		e.finish(StateFailed)
		return fmt.Errorf("%w: %w", ErrBackendInit, err)
	}
	e.backend = backend
	e.worker = netio.Worker{Index: 0}

	if mac, err := backend.Init(parentCtx, e.worker); err != nil {
		e.finish(StateFailed)
		return fmt.Errorf("%w: %w", ErrBackendInit, err)
	} else if mac != ([6]byte{}) {
		e.localMAC = mac
	}

	ctx, cancel := context.WithCancel(parentCtx)
	watchDone := make(chan struct{})
	go e.watchCancellation(ctx, cancel, watchDone)
	defer func() {
		cancel()
		<-watchDone
	}()

	e.Progress(fmt.Sprintf("starting %s", e.cfg.TestType), 0)
	err = dispatcher(ctx, e)
	e.elapsed = time.Since(e.started)

	switch {
	case e.cancelled.Load():
		e.finish(StateCancelled)
		return nil
	case err != nil:
		e.finish(StateFailed)
		return err
	default:
		e.Progress("done", 100)
		e.finish(StateCompleted)
		return nil
	}
}

func (e *EngineContext) watchCancellation(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.cancelled.Load() {
				cancel()
				return
			}
		}
	}
}

func (e *EngineContext) finish(s State) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

// Cleanup tears down the backend and worker state. If the engine is
// still Running it first signals cancellation and waits up to
// cleanupWait for Run to observe it. Cleanup is idempotent.
func (e *EngineContext) Cleanup() error {
	e.mu.Lock()
	running := e.state == StateRunning
	e.mu.Unlock()

	if running {
		e.Cancel()
		deadline := time.Now().Add(cleanupWait)
		for time.Now().Before(deadline) {
			if e.State() != StateRunning {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
	}

	if e.backend == nil {
		return nil
	}
	if err := e.backend.Cleanup(e.worker); err != nil {
		return fmt.Errorf("engine: cleanup backend: %w", err)
	}
	e.backend = nil
	return nil
}
