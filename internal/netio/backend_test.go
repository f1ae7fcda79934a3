package netio

import (
	"errors"
	"testing"
)

func TestWrapInitNilPassthrough(t *testing.T) {
	t.Parallel()

	if err := wrapInit("rawsocket", nil); err != nil {
		t.Errorf("wrapInit(nil) = %v, want nil", err)
	}
}

func TestWrapInitWrapsErrInitFailed(t *testing.T) {
	t.Parallel()

	cause := errors.New("no such device")
	err := wrapInit("xdp", cause)

	if !errors.Is(err, ErrInitFailed) {
		t.Errorf("wrapInit() = %v, want it to wrap ErrInitFailed", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("wrapInit() = %v, want it to wrap the original cause", err)
	}
}

func TestSelectRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	_, err := Select(SelectConfig{Interface: "lo", Kind: "bogus"}, nil)
	if !errors.Is(err, ErrUnsupportedBackend) {
		t.Errorf("Select() error = %v, want ErrUnsupportedBackend", err)
	}
}
