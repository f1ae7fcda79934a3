package sigpacket

import "time"

// Color is the token-bucket metering verdict for one received frame,
// per RFC 4115 / MEF 10.3 color-aware policing (green = conforms to
// CIR, yellow = conforms to EIR, red = neither).
type Color uint8

const (
	ColorGreen Color = iota
	ColorYellow
	ColorRed
)

func (c Color) String() string {
	switch c {
	case ColorGreen:
		return "green"
	case ColorYellow:
		return "yellow"
	default:
		return "red"
	}
}

// TokenBucket implements the dual-rate, dual-bucket color marker used by
// Y.1564 and MEF 48/49 service steps. It is driven from the receive path
// of a real trial rather than a simulated arrival process: call Meter
// once per received frame that matches the trial's signature and stream
// id, with the frame's observed size and arrival time.
type TokenBucket struct {
	cirBps, eirBps     float64
	cbsBytes, ebsBytes float64
	cTokens, eTokens   float64
	lastUpdate         time.Time
}

// NewTokenBucket creates a bucket for the given committed/excess rates
// (bits/s) and burst sizes (bytes), fully primed at creation time.
func NewTokenBucket(cirBps, eirBps float64, cbsBytes, ebsBytes int) *TokenBucket {
	return &TokenBucket{
		cirBps:     cirBps,
		eirBps:     eirBps,
		cbsBytes:   float64(cbsBytes),
		ebsBytes:   float64(ebsBytes),
		cTokens:    float64(cbsBytes),
		eTokens:    float64(ebsBytes),
		lastUpdate: time.Now(),
	}
}

// Meter replenishes the bucket for the elapsed time since the last call
// and spends frameBytes, returning the color the frame earns.
func (b *TokenBucket) Meter(frameBytes int, now time.Time) Color {
	elapsed := now.Sub(b.lastUpdate).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	b.lastUpdate = now

	b.cTokens = min(b.cbsBytes, b.cTokens+elapsed*b.cirBps/8)
	b.eTokens = min(b.ebsBytes, b.eTokens+elapsed*b.eirBps/8)

	size := float64(frameBytes)
	switch {
	case b.cTokens >= size:
		b.cTokens -= size
		return ColorGreen
	case b.eTokens >= size:
		b.eTokens -= size
		return ColorYellow
	default:
		return ColorRed
	}
}
