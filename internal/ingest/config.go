package ingest

import (
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"sankshepa/internal/framing"
)

// Default tuning values, per §4.3 (batch size), §4.4 (compression level),
// and §5 (shutdown grace/timeout).
const (
	DefaultBatchSize       = 10
	DefaultCompressionLvl  = zstd.SpeedDefault
	DefaultDrainGrace      = 5 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
)

// Config holds every constructor argument the core pipeline takes. Per
// §6, all tuning beyond the SANKSHEPA_LOG environment knob is by
// constructor argument — there is no config file format.
type Config struct {
	// UDPAddr and TCPAddr are listen addresses (e.g. ":1514"); an empty
	// string disables that protocol entirely.
	UDPAddr string
	TCPAddr string

	// OutputPath is the append-only columnar file the writer task owns.
	OutputPath string

	// BatchSize is the LogShrink builder's target chunk size; <= 0
	// selects DefaultBatchSize. Channel capacities derive from it, per
	// §5 (framer->builder: 4x batch size; builder->writer: 2).
	BatchSize int

	// ForceFlushInterval bounds how long a partially-filled chunk stays
	// open; <= 0 selects logshrink.DefaultForceFlushInterval.
	ForceFlushInterval time.Duration

	// CompressionLevel is the zstd level used for every chunk; zero
	// selects DefaultCompressionLvl.
	CompressionLevel zstd.EncoderLevel

	// DrainGrace and ShutdownTimeout tune the cancellation sequence of
	// §5; <= 0 selects their package defaults.
	DrainGrace      time.Duration
	ShutdownTimeout time.Duration

	// Framing tunes the TCP framer's resource caps (max frame size,
	// optional byte-rate limiter); the UDP framer does not take it.
	Framing framing.Config

	// Location interprets RFC 3164 timestamps, which carry no time zone
	// of their own; nil defaults to time.Local.
	Location *time.Location

	// DashboardBuffer and ClusterBuffer size the non-blocking fan-out
	// taps' per-subscriber queues; <= 0 selects DefaultTapBuffer.
	DashboardBuffer int
	ClusterBuffer   int

	Logger *slog.Logger
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.BatchSize
}

func (c Config) compressionLevel() zstd.EncoderLevel {
	if c.CompressionLevel == 0 {
		return DefaultCompressionLvl
	}
	return c.CompressionLevel
}

func (c Config) drainGrace() time.Duration {
	if c.DrainGrace <= 0 {
		return DefaultDrainGrace
	}
	return c.DrainGrace
}

func (c Config) shutdownTimeout() time.Duration {
	if c.ShutdownTimeout <= 0 {
		return DefaultShutdownTimeout
	}
	return c.ShutdownTimeout
}
