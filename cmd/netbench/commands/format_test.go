package commands

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/krisarmstrong/netbench/internal/engine"
)

func TestRenderResultsRejectsUnsupportedFormat(t *testing.T) {
	outputFormat = "xml"
	defer func() { outputFormat = formatTable }()

	err := renderResults("rfc2544-throughput", engine.Results{})
	if !errors.Is(err, errUnsupportedFormat) {
		t.Errorf("renderResults() error = %v, want errUnsupportedFormat", err)
	}
}

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe() error = %v", err)
	}
	os.Stdout = w
	fn()
	w.Close()
	os.Stdout = old

	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	return string(out)
}

func TestRenderResultsJSONEncodesResults(t *testing.T) {
	results := engine.Results{
		Throughput: []engine.ThroughputRecord{{FrameSize: 64, BestRatePct: 95.5}},
	}

	out := captureStdout(t, func() {
		if err := renderResultsJSON(results); err != nil {
			t.Fatalf("renderResultsJSON() error = %v", err)
		}
	})

	var decoded engine.Results
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, output = %q", err, out)
	}
	if len(decoded.Throughput) != 1 || decoded.Throughput[0].FrameSize != 64 {
		t.Errorf("decoded = %+v, want one throughput record with FrameSize 64", decoded)
	}
}

func TestRenderResultsTableWritesRows(t *testing.T) {
	results := engine.Results{
		FrameLoss: []engine.FrameLossRecord{{FrameSize: 128, OfferedPct: 50, Sent: 1000, Received: 995, LossPct: 0.5}},
	}

	out := captureStdout(t, func() {
		if err := renderResultsTable("rfc2544-frame-loss", results); err != nil {
			t.Fatalf("renderResultsTable() error = %v", err)
		}
	})

	if out == "" {
		t.Fatal("renderResultsTable() produced no output for a populated result set")
	}
}
