package platforminfo_test

import (
	"context"
	"errors"
	"testing"

	"github.com/krisarmstrong/netbench/internal/platforminfo"
)

// fakeService is a canned platforminfo.Service for tests that need an
// engine to Init without touching a real interface.
type fakeService struct {
	info platforminfo.Info
	err  error
}

func (f fakeService) Query(_ context.Context, _ string) (platforminfo.Info, error) {
	return f.info, f.err
}

func TestFakeServiceSatisfiesInterface(t *testing.T) {
	t.Parallel()

	var _ platforminfo.Service = fakeService{}
}

func TestFakeServiceReturnsConfiguredInfo(t *testing.T) {
	t.Parallel()

	want := platforminfo.Info{
		SpeedBps: 10_000_000_000,
		MAC:      [6]byte{0x02, 0, 0, 0, 0, 9},
		MTU:      1500,
		Up:       true,
	}
	svc := fakeService{info: want}

	got, err := svc.Query(context.Background(), "eth0")
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if got != want {
		t.Errorf("Query() = %+v, want %+v", got, want)
	}
}

func TestFakeServicePropagatesError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("no such interface")
	svc := fakeService{err: wantErr}

	_, err := svc.Query(context.Background(), "nonexistent0")
	if !errors.Is(err, wantErr) {
		t.Errorf("Query() error = %v, want %v", err, wantErr)
	}
}
