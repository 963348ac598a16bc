package framing

import (
	"time"

	"golang.org/x/time/rate"
)

// MaxUDPDatagram is the largest UDP payload accepted; larger datagrams are
// discarded per spec, with a metric increment.
const MaxUDPDatagram = 64 * 1024

// DefaultMaxTCPFrame is the default cap on a single TCP frame's length,
// applied to both octet-counted length prefixes and non-transparent frames.
const DefaultMaxTCPFrame = 1 << 20

// DefaultDrainGrace and DefaultAcceptPoll mirror the cancellation sequence's
// default grace period and the listener's deadline-poll interval.
const (
	DefaultDrainGrace = 5 * time.Second
	DefaultAcceptPoll = time.Second
)

// Config tunes a Listener's resource caps and concurrency.
type Config struct {
	// MaxTCPFrame bounds a single TCP message; zero selects DefaultMaxTCPFrame.
	MaxTCPFrame int

	// DrainGrace holds a drain window (default 5s). TCPListener and
	// UDPListener do not read it: each stops reading as soon as the
	// context passed to Run is cancelled, so a drain period comes from the
	// caller delaying that cancellation, as ingest.Pipeline does with its
	// own DrainGrace.
	DrainGrace time.Duration

	// NewByteRateLimiter, if non-nil, is called once per accepted TCP
	// connection to produce a limiter capping that connection's read rate.
	NewByteRateLimiter func() *rate.Limiter
}

func (c Config) maxTCPFrame() int {
	if c.MaxTCPFrame <= 0 {
		return DefaultMaxTCPFrame
	}
	return c.MaxTCPFrame
}

func (c Config) drainGrace() time.Duration {
	if c.DrainGrace <= 0 {
		return DefaultDrainGrace
	}
	return c.DrainGrace
}
