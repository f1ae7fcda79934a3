package sigpacket_test

import (
	"testing"

	"github.com/krisarmstrong/netbench/internal/sigpacket"
)

func testAddressing(mode sigpacket.Mode) sigpacket.Addressing {
	addr := sigpacket.Addressing{
		Mode:      mode,
		SrcMAC:    [6]byte{0x02, 0, 0, 0, 0, 1},
		DstMAC:    [6]byte{0x02, 0, 0, 0, 0, 2},
		SrcPort:   50000,
		DstPort:   7,
		Signature: sigpacket.KnownSignatures["RFC2544"],
		StreamID:  42,
	}
	if mode == sigpacket.ModeIPv4 {
		copy(addr.SrcIP[:4], []byte{10, 0, 0, 1})
		copy(addr.DstIP[:4], []byte{10, 0, 0, 2})
	} else {
		addr.SrcIP[0], addr.SrcIP[15] = 0xfe, 0x01
		addr.DstIP[0], addr.DstIP[15] = 0xfe, 0x02
	}
	return addr
}

func TestBuildTemplateIPv4RoundTrip(t *testing.T) {
	t.Parallel()

	addr := testAddressing(sigpacket.ModeIPv4)
	frame, err := sigpacket.BuildTemplate(addr, 128)
	if err != nil {
		t.Fatalf("BuildTemplate() error = %v", err)
	}
	if len(frame) != 128 {
		t.Fatalf("len(frame) = %d, want 128", len(frame))
	}

	offset := sigpacket.PayloadOffset(sigpacket.ModeIPv4)
	if err := sigpacket.Stamp(frame, offset, 7, 123456789); err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}

	if !sigpacket.ValidateResponse(frame) {
		t.Fatal("ValidateResponse() = false, want true for a freshly stamped frame")
	}
	if got := sigpacket.ReadSequence(frame, offset); got != 7 {
		t.Errorf("ReadSequence() = %d, want 7", got)
	}
	if got := sigpacket.ReadTxTimestamp(frame, offset); got != 123456789 {
		t.Errorf("ReadTxTimestamp() = %d, want 123456789", got)
	}
	if got := sigpacket.ReadStreamID(frame, offset); got != 42 {
		t.Errorf("ReadStreamID() = %d, want 42", got)
	}
}

func TestBuildTemplateIPv6RoundTrip(t *testing.T) {
	t.Parallel()

	addr := testAddressing(sigpacket.ModeIPv6)
	frame, err := sigpacket.BuildTemplate(addr, 150)
	if err != nil {
		t.Fatalf("BuildTemplate() error = %v", err)
	}

	offset := sigpacket.PayloadOffset(sigpacket.ModeIPv6)
	if err := sigpacket.Stamp(frame, offset, 3, 999); err != nil {
		t.Fatalf("Stamp() error = %v", err)
	}
	if !sigpacket.ValidateResponse(frame) {
		t.Fatal("ValidateResponse() = false, want true")
	}
}

func TestBuildTemplateTooSmall(t *testing.T) {
	t.Parallel()

	addr := testAddressing(sigpacket.ModeIPv4)
	if _, err := sigpacket.BuildTemplate(addr, 10); err == nil {
		t.Fatal("BuildTemplate() error = nil, want error for undersized frame")
	}
}

func TestValidateResponseRejectsUnknownSignature(t *testing.T) {
	t.Parallel()

	buf := make([]byte, sigpacket.MinValidRxLen)
	if sigpacket.ValidateResponse(buf) {
		t.Fatal("ValidateResponse() = true for all-zero buffer, want false")
	}
}

func TestValidateResponseRejectsShortBuffer(t *testing.T) {
	t.Parallel()

	if sigpacket.ValidateResponse(make([]byte, 4)) {
		t.Fatal("ValidateResponse() = true for a too-short buffer, want false")
	}
}

func TestStampRejectsBufferTooSmall(t *testing.T) {
	t.Parallel()

	buf := make([]byte, 10)
	if err := sigpacket.Stamp(buf, 0, 1, 1); err == nil {
		t.Fatal("Stamp() error = nil, want ErrBufferTooSmall")
	}
}
