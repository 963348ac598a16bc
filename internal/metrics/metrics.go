// Package metrics holds the process-wide counters the error-handling design
// calls for: the ingest side's drop, discard, and dead-letter events each
// increment one of these instead of vanishing silently. ReadFramesSkipped
// is not incremented by columnar.Reader, which logs skipped frames instead.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// DeadLetterPrefixLen is the number of payload bytes retained per
// dead-lettered parse failure.
const DeadLetterPrefixLen = 256

// DeadLetterBacklog bounds how many recent dead letters are retained in
// memory; older entries are evicted first.
const DeadLetterBacklog = 64

// Counters is a fixed set of atomic event counters, safe for concurrent use
// by every framer, builder, and reader goroutine. The zero value is ready
// to use.
type Counters struct {
	OversizeDatagramsDropped   atomic.Int64
	FramingErrors              atomic.Int64
	ParseErrorsDeadLettered    atomic.Int64
	EncodingErrorsChunkDropped atomic.Int64
	ReadFramesSkipped          atomic.Int64
	DashboardTapDrops          atomic.Int64

	mu          sync.Mutex
	deadLetters []DeadLetter
}

// Snapshot is a point-in-time copy of Counters suitable for logging or
// exposing over an API, without exposing the atomics themselves.
type Snapshot struct {
	OversizeDatagramsDropped  int64
	FramingErrors             int64
	ParseErrorsDeadLettered   int64
	EncodingErrorsChunkDropped int64
	ReadFramesSkipped         int64
	DashboardTapDrops         int64
}

// Snapshot reads all counters consistently enough for observability
// purposes (no cross-field atomicity is implied or needed).
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		OversizeDatagramsDropped:   c.OversizeDatagramsDropped.Load(),
		FramingErrors:              c.FramingErrors.Load(),
		ParseErrorsDeadLettered:    c.ParseErrorsDeadLettered.Load(),
		EncodingErrorsChunkDropped: c.EncodingErrorsChunkDropped.Load(),
		ReadFramesSkipped:          c.ReadFramesSkipped.Load(),
		DashboardTapDrops:          c.DashboardTapDrops.Load(),
	}
}

// DeadLetter is one dropped parse failure, recorded with a bounded prefix
// of the offending payload per the error-handling design (first 256 bytes).
type DeadLetter struct {
	Reason  string
	Prefix  []byte
	Dropped time.Time
}

// RecordDeadLetter increments the parse-error counter and retains a bounded
// prefix of the payload for later inspection, evicting the oldest entry
// once DeadLetterBacklog is exceeded.
func (c *Counters) RecordDeadLetter(reason string, payload []byte, at time.Time) {
	c.ParseErrorsDeadLettered.Add(1)

	n := len(payload)
	if n > DeadLetterPrefixLen {
		n = DeadLetterPrefixLen
	}
	prefix := make([]byte, n)
	copy(prefix, payload[:n])

	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadLetters = append(c.deadLetters, DeadLetter{Reason: reason, Prefix: prefix, Dropped: at})
	if len(c.deadLetters) > DeadLetterBacklog {
		c.deadLetters = c.deadLetters[len(c.deadLetters)-DeadLetterBacklog:]
	}
}

// DeadLetters returns a copy of the currently retained dead letters, oldest
// first.
func (c *Counters) DeadLetters() []DeadLetter {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]DeadLetter, len(c.deadLetters))
	copy(out, c.deadLetters)
	return out
}
