// Package sigpacket builds and parses the wire frames exchanged between
// a netbench engine and a cooperating reflector: Ethernet + IPv4-or-IPv6 +
// UDP + a 24-byte embedded test-signature payload.
//
// All multi-byte fields are network byte order.
package sigpacket

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Minimum and structural sizes (RFC 791 / RFC 768 style fixed headers).
const (
	EthernetHeaderLen = 14
	IPv4HeaderLen     = 20
	IPv6HeaderLen     = 40
	UDPHeaderLen      = 8
	SignatureLen      = 7
	PayloadLen        = 24 // SignatureLen(7) + Seq(4) + TxTimestamp(8) + StreamID(4) + Flags(1)

	// MinFrameLen is the minimum Ethernet frame length before FCS that the
	// codec will build or accept (IPv4 variant: 14+20+8+24 = 66).
	MinFrameLen = EthernetHeaderLen + IPv4HeaderLen + UDPHeaderLen + PayloadLen

	// MinValidRxLen is the minimum length for ValidateResponse to consider
	// a received buffer a candidate signature reply.
	MinValidRxLen = 64

	ttlDefault       uint8  = 64
	etherTypeIPv4    uint16 = 0x0800
	etherTypeIPv6    uint16 = 0x86DD
	ipProtoUDP       uint8  = 17
	ipv4FlagDF       uint16 = 0x4000
	ipv4IHL          uint8  = 5
	ipv6TrafficClass uint8  = 0
)

// Flag bits for the signature payload's flag byte.
const (
	FlagReqTimestamp byte = 0x01
	FlagIsResponse   byte = 0x02
)

// Mode selects the network-layer variant the codec builds.
type Mode uint8

const (
	ModeIPv4 Mode = iota
	ModeIPv6
)

// Sentinel errors.
var (
	ErrBufferTooSmall  = errors.New("sigpacket: buffer too small")
	ErrFrameTooSmall   = errors.New("sigpacket: frame below minimum size")
	ErrUnknownSig      = errors.New("sigpacket: unrecognized signature")
	ErrInvalidMode     = errors.New("sigpacket: invalid mode")
	ErrAddressMismatch = errors.New("sigpacket: address family does not match mode")
)

// KnownSignatures partitions traffic between collaborating engines and
// reflectors. Each is exactly 7 ASCII bytes, space-padded where needed.
var KnownSignatures = map[string][SignatureLen]byte{
	"RFC2544": sig("RFC2544"),
	"Y.1564":  sig("Y.1564 "),
	"Y.1731":  sig("Y.1731 "),
	"RFC2889": sig("RFC2889"),
	"RFC6349": sig("RFC6349"),
	"MEF48":   sig("MEF48  "),
	"802Qbv":  sig("802Qbv "),
}

func sig(s string) [SignatureLen]byte {
	var out [SignatureLen]byte
	copy(out[:], s)
	for i := len(s); i < SignatureLen; i++ {
		out[i] = ' '
	}
	return out
}

// IsKnownSignature reports whether the first SignatureLen bytes of b
// match one of KnownSignatures; a shorter b never matches.
func IsKnownSignature(b []byte) bool {
	if len(b) < SignatureLen {
		return false
	}
	for _, want := range KnownSignatures {
		if [SignatureLen]byte(b[:SignatureLen]) == want {
			return true
		}
	}
	return false
}

// Addressing carries the endpoint identity a Template is built around.
type Addressing struct {
	Mode      Mode
	SrcMAC    [6]byte
	DstMAC    [6]byte
	SrcIP     [16]byte // 4 bytes used for ModeIPv4, 16 for ModeIPv6
	DstIP     [16]byte
	SrcPort   uint16
	DstPort   uint16
	DSCP      uint8 // top 6 bits of the ToS/Traffic-Class byte when CoS marking requested
	MarkDSCP  bool
	Signature [SignatureLen]byte
	StreamID  uint32
}

// BuildTemplate lays out a full frame of frameSize bytes per the wire
// format table, with SeqNum=0, TxTimestamp=0, and Flags=REQ_TIMESTAMP.
// Padding bytes from the end of the payload onward follow the
// deterministic pattern byte(i & 0xFF). frameSize must be >= MinFrameLen
// for IPv4 (or the IPv6-adjusted minimum).
func BuildTemplate(addr Addressing, frameSize int) ([]byte, error) {
	ipLen := IPv4HeaderLen
	if addr.Mode == ModeIPv6 {
		ipLen = IPv6HeaderLen
	}
	payloadStart := EthernetHeaderLen + ipLen + UDPHeaderLen
	minLen := payloadStart + PayloadLen
	if frameSize < minLen {
		return nil, fmt.Errorf("%w: frame size %d below minimum %d", ErrFrameTooSmall, frameSize, minLen)
	}

	buf := make([]byte, frameSize)
	writeEthernet(buf, addr)

	udpLen := frameSize - (EthernetHeaderLen + ipLen)
	if addr.Mode == ModeIPv4 {
		writeIPv4(buf[EthernetHeaderLen:], addr, udpLen)
	} else {
		writeIPv6(buf[EthernetHeaderLen:], addr, udpLen)
	}

	writeUDP(buf[EthernetHeaderLen+ipLen:], addr, udpLen, buf, EthernetHeaderLen+ipLen)

	writePayload(buf[payloadStart:], addr.Signature, 0, 0, addr.StreamID, FlagReqTimestamp)
	fillPadding(buf[payloadStart+PayloadLen:], payloadStart+PayloadLen)

	return buf, nil
}

func writeEthernet(buf []byte, addr Addressing) {
	copy(buf[0:6], addr.DstMAC[:])
	copy(buf[6:12], addr.SrcMAC[:])
	etherType := etherTypeIPv4
	if addr.Mode == ModeIPv6 {
		etherType = etherTypeIPv6
	}
	binary.BigEndian.PutUint16(buf[12:14], etherType)
}

func writeIPv4(buf []byte, addr Addressing, udpLen int) {
	totalLen := IPv4HeaderLen + udpLen
	buf[0] = (4 << 4) | ipv4IHL
	tos := byte(0)
	if addr.MarkDSCP {
		tos = addr.DSCP << 2
	}
	buf[1] = tos
	binary.BigEndian.PutUint16(buf[2:4], uint16(totalLen))
	binary.BigEndian.PutUint16(buf[4:6], 0) // identification
	binary.BigEndian.PutUint16(buf[6:8], ipv4FlagDF)
	buf[8] = ttlDefault
	buf[9] = ipProtoUDP
	binary.BigEndian.PutUint16(buf[10:12], 0) // checksum placeholder
	copy(buf[12:16], addr.SrcIP[:4])
	copy(buf[16:20], addr.DstIP[:4])

	checksum := ipv4HeaderChecksum(buf[:IPv4HeaderLen])
	binary.BigEndian.PutUint16(buf[10:12], checksum)
}

func writeIPv6(buf []byte, addr Addressing, udpLen int) {
	vtf := uint32(6) << 28
	if addr.MarkDSCP {
		vtf |= uint32(addr.DSCP) << 20
	}
	binary.BigEndian.PutUint32(buf[0:4], vtf)
	binary.BigEndian.PutUint16(buf[4:6], uint16(udpLen))
	buf[6] = ipProtoUDP
	buf[7] = ttlDefault // hop limit
	copy(buf[8:24], addr.SrcIP[:])
	copy(buf[24:40], addr.DstIP[:])
}

func writeUDP(buf []byte, addr Addressing, udpLen int, frame []byte, ipOffset int) {
	binary.BigEndian.PutUint16(buf[0:2], addr.SrcPort)
	binary.BigEndian.PutUint16(buf[2:4], addr.DstPort)
	binary.BigEndian.PutUint16(buf[4:6], uint16(udpLen))
	binary.BigEndian.PutUint16(buf[6:8], 0)

	if addr.Mode == ModeIPv6 {
		cs := udpChecksumIPv6(frame[ipOffset:ipOffset+IPv6HeaderLen], buf[:udpLen])
		binary.BigEndian.PutUint16(buf[6:8], cs)
	}
	// IPv4: checksum 0 is permitted (RFC 768) and left unset here.
}

func writePayload(buf []byte, signature [SignatureLen]byte, seq uint32, txNS uint64, streamID uint32, flags byte) {
	copy(buf[0:7], signature[:])
	binary.BigEndian.PutUint32(buf[7:11], seq)
	binary.BigEndian.PutUint64(buf[11:19], txNS)
	binary.BigEndian.PutUint32(buf[19:23], streamID)
	buf[23] = flags
}

func fillPadding(buf []byte, startOffset int) {
	for i := range buf {
		buf[i] = byte((startOffset + i) & 0xFF)
	}
}

// Stamp writes the sequence number and TX timestamp into an already-built
// template in place. payloadOffset is the byte offset of the 24-byte
// signature payload within buf (computed once per template by the caller
// from the mode used to build it).
func Stamp(buf []byte, payloadOffset int, seq uint32, txNS uint64) error {
	if len(buf) < payloadOffset+PayloadLen {
		return ErrBufferTooSmall
	}
	binary.BigEndian.PutUint32(buf[payloadOffset+7:payloadOffset+11], seq)
	binary.BigEndian.PutUint64(buf[payloadOffset+11:payloadOffset+19], txNS)
	return nil
}

// PayloadOffset returns the byte offset of the signature payload for a
// frame built with the given mode.
func PayloadOffset(mode Mode) int {
	ipLen := IPv4HeaderLen
	if mode == ModeIPv6 {
		ipLen = IPv6HeaderLen
	}
	return EthernetHeaderLen + ipLen + UDPHeaderLen
}

// ValidateResponse reports whether buf is a well-formed response: at
// least MinValidRxLen bytes and its UDP-payload signature (searched at
// both the IPv4 and IPv6 payload offsets) is one of KnownSignatures.
func ValidateResponse(buf []byte) bool {
	if len(buf) < MinValidRxLen {
		return false
	}
	for _, off := range []int{PayloadOffset(ModeIPv4), PayloadOffset(ModeIPv6)} {
		if len(buf) >= off+SignatureLen && IsKnownSignature(buf[off:off+SignatureLen]) {
			return true
		}
	}
	return false
}

// ReadSequence returns the embedded sequence number at payloadOffset, or
// 0 if buf is too short or not a valid response.
func ReadSequence(buf []byte, payloadOffset int) uint32 {
	if !ValidateResponse(buf) || len(buf) < payloadOffset+11 {
		return 0
	}
	return binary.BigEndian.Uint32(buf[payloadOffset+7 : payloadOffset+11])
}

// ReadTxTimestamp returns the embedded TX timestamp (nanoseconds) at
// payloadOffset, or 0 if buf is too short or not a valid response.
func ReadTxTimestamp(buf []byte, payloadOffset int) uint64 {
	if !ValidateResponse(buf) || len(buf) < payloadOffset+19 {
		return 0
	}
	return binary.BigEndian.Uint64(buf[payloadOffset+11 : payloadOffset+19])
}

// ReadStreamID returns the embedded stream/service id at payloadOffset,
// or 0 if buf is too short or not a valid response.
func ReadStreamID(buf []byte, payloadOffset int) uint32 {
	if !ValidateResponse(buf) || len(buf) < payloadOffset+23 {
		return 0
	}
	return binary.BigEndian.Uint32(buf[payloadOffset+19 : payloadOffset+23])
}

// ipv4HeaderChecksum computes the standard one's-complement checksum of
// an IPv4 header with the checksum field assumed zero.
func ipv4HeaderChecksum(header []byte) uint16 {
	var sum uint32
	for i := 0; i+1 < len(header); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(header[i : i+2]))
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}

// udpChecksumIPv6 computes the UDP checksum including the IPv6
// pseudo-header (RFC 8200 Section 8.1), required because IPv6 does not
// allow a zero UDP checksum.
func udpChecksumIPv6(ipv6Header, udpSegment []byte) uint16 {
	var sum uint32
	srcDst := ipv6Header[8:40]
	for i := 0; i+1 < len(srcDst); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(srcDst[i : i+2]))
	}
	sum += uint32(len(udpSegment))
	sum += uint32(ipProtoUDP)

	for i := 0; i+1 < len(udpSegment); i += 2 {
		if i == 6 {
			continue // checksum field itself reads as 0 during computation
		}
		sum += uint32(binary.BigEndian.Uint16(udpSegment[i : i+2]))
	}
	if len(udpSegment)%2 == 1 {
		sum += uint32(udpSegment[len(udpSegment)-1]) << 8
	}

	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	cs := ^uint16(sum)
	if cs == 0 {
		cs = 0xFFFF
	}
	return cs
}
