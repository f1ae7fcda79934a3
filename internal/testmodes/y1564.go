package testmodes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/krisarmstrong/netbench/internal/engine"
	"github.com/krisarmstrong/netbench/internal/sigpacket"
	"github.com/krisarmstrong/netbench/internal/trial"
)

func init() {
	engine.Register("y1564-service-configuration", Y1564ServiceConfiguration)
	engine.Register("y1564-service-performance", Y1564ServicePerformance)
	engine.Register("mef48-service-configuration", Y1564ServiceConfiguration)
	engine.Register("mef48-service-performance", Y1564ServicePerformance)
}

// cirStepFractions is the standard Y.1564 service configuration test's
// CIR percentage steps: 25%, 50%, 75%, and 100%.
var cirStepFractions = []float64{0.25, 0.50, 0.75, 1.00}

// Y1564ServiceConfiguration runs the short CIR-step test for every
// configured service, checking FLR/FD/FDV against each service's
// thresholds at each step. The MEF 48/49 dispatchers alias this
// function: both specifications describe the same CIR-step procedure
// over microsecond/kbit-s units rather than a different algorithm.
func Y1564ServiceConfiguration(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	for _, svc := range cfg.Services {
		if !svc.Enabled {
			continue
		}
		if e.Cancelled() {
			return nil
		}
		record, err := runServiceSteps(ctx, e, svc, cfg.Duration, "y1564-service-configuration")
		if err != nil {
			return err
		}
		e.MergeResults(func(r *engine.Results) { r.ServiceTests = append(r.ServiceTests, record) })
	}
	return nil
}

// Y1564ServicePerformance runs every enabled service at 100% of its
// configured CIR for the full trial duration, the long-duration soak
// that follows a passing configuration test.
func Y1564ServicePerformance(ctx context.Context, e *engine.EngineContext) error {
	cfg := e.Config()
	for _, svc := range cfg.Services {
		if !svc.Enabled {
			continue
		}
		if e.Cancelled() {
			return nil
		}
		record, err := runServiceSteps(ctx, e, svc, cfg.Duration, "y1564-service-performance")
		if err != nil {
			return err
		}
		e.MergeResults(func(r *engine.Results) { r.ServiceTests = append(r.ServiceTests, record) })
	}
	return nil
}

func runServiceSteps(
	ctx context.Context,
	e *engine.EngineContext,
	svc engine.Y1564Service,
	duration time.Duration,
	testMode string,
) (engine.ServiceRecord, error) {
	lineRateBps := e.LineRateBps()
	cirRatePct := 100 * svc.CIRMbps * 1e6 / float64(lineRateBps)

	signature := "Y.1564"
	if strings.HasPrefix(e.Config().TestType, "mef48") {
		signature = "MEF48"
	}
	addr := addressingFor(e, signature, uint32(svc.ID), true, svc.DSCP)
	record := engine.ServiceRecord{ServiceID: svc.ID, Name: svc.Name, Pass: true}

	steps := cirStepFractions
	if testMode == "y1564-service-performance" {
		steps = []float64{1.00}
	}

	for _, frac := range steps {
		if e.Cancelled() {
			break
		}
		stepPct := frac * 100
		ratePct := frac * cirRatePct

		meter := sigpacket.NewTokenBucket(
			svc.CIRMbps*1e6, svc.EIRMbps*1e6,
			svc.CBSBytes, svc.EBSBytes,
		)

		res, err := runTrial(ctx, e, trial.Params{
			Addressing:     addr,
			FrameSize:      svc.FrameSize,
			RatePct:        ratePct,
			Duration:       duration,
			MeasureLatency: true,
			LineRateBps:    lineRateBps,
			ColorMeter:     meter,
			TestMode:       fmt.Sprintf("%s-%d", testMode, svc.ID),
		})
		if err != nil {
			return engine.ServiceRecord{}, err
		}

		step := engine.ServiceStepRecord{
			StepPct:      stepPct,
			RatePct:      ratePct,
			FLRPct:       res.LossPct,
			FDAvgMS:      res.Latency.AvgNS / 1e6,
			FDVMS:        res.Latency.JitterNS / 1e6,
			GreenFrames:  res.GreenFrames,
			YellowFrames: res.YellowFrames,
			RedFrames:    res.RedFrames,
		}
		step.Pass = step.FLRPct <= svc.FLRThresholdPct &&
			step.FDAvgMS <= svc.FDThresholdMS &&
			step.FDVMS <= svc.FDVThresholdMS
		if !step.Pass {
			record.Pass = false
		}
		record.Steps = append(record.Steps, step)
	}
	return record, nil
}
