package logshrink

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"sankshepa/internal/logging"
	"sankshepa/internal/notify"
	"sankshepa/internal/syslogmsg"
)

// DefaultBatchSize is the default number of messages held in an open chunk
// before it is sealed, per the batching model (typical tuning 10-1000).
const DefaultBatchSize = 10

// DefaultForceFlushInterval bounds how long a partially-filled chunk can
// sit open before the periodic sweep force-flushes it, so low-traffic
// sources don't starve the downstream writer indefinitely.
const DefaultForceFlushInterval = 30 * time.Second

// pendingRecord holds one ingested message's finalized header fields plus
// the raw tokens needed to resolve variables once its template's
// migrations are complete at flush time.
type pendingRecord struct {
	timestampMs int64
	priority    uint8
	hostname    *string
	appName     *string
	procID      *string
	msgID       *string
	templateID  int
	rawTokens   []string
}

// Builder owns one open chunk: exclusive mutation, no locking on the hot
// path, matching the single chunk-builder task in the concurrency model.
// It is not safe for concurrent use — callers must serialize Add calls,
// typically by running the builder on its own task fed by a channel.
type Builder struct {
	batchSize int
	pool      *StringPool
	table     *Table
	records   []pendingRecord

	flushSignal *notify.Signal
	logger      *slog.Logger
}

// NewBuilder constructs an empty Builder. batchSize <= 0 selects
// DefaultBatchSize. The Builder creates its own flush signal, notified
// whenever a chunk is sealed due to reaching batchSize or an explicit
// ForceFlush call; see FlushSignal.
func NewBuilder(batchSize int, logger *slog.Logger) *Builder {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Builder{
		batchSize:   batchSize,
		pool:        NewStringPool(),
		table:       NewTable(),
		flushSignal: notify.NewSignal(),
		logger:      logging.Default(logger).With("component", "logshrink"),
	}
}

// FlushSignal returns the Signal notified every time a chunk seals,
// whether by reaching batch size, an explicit ForceFlush, or the periodic
// sweep.
func (b *Builder) FlushSignal() *notify.Signal {
	return b.flushSignal
}

// Add ingests one parsed message into the open chunk, clustering its body
// against the chunk's template table. It returns a sealed chunk if adding
// this message brought the chunk to batchSize.
func (b *Builder) Add(msg syslogmsg.Message) *SealedChunk {
	tokens := Tokenize(msg.Body)
	templateID := b.table.Assign(tokens)

	b.records = append(b.records, pendingRecord{
		timestampMs: msg.TimestampMs,
		priority:    msg.Priority,
		hostname:    msg.Hostname,
		appName:     msg.AppName,
		procID:      msg.ProcID,
		msgID:       msg.MsgID,
		templateID:  templateID,
		rawTokens:   tokens,
	})

	if len(b.records) >= b.batchSize {
		return b.seal()
	}
	return nil
}

// ForceFlush seals the open chunk regardless of its size, returning nil if
// the chunk is empty. Used by the shutdown sequence and by the periodic
// sweep for low-traffic sources.
func (b *Builder) ForceFlush() *SealedChunk {
	if len(b.records) == 0 {
		return nil
	}
	return b.seal()
}

// seal finalizes the open chunk: it resolves every record's variables
// against its template's final (post-migration) state, builds the
// delta-encoded timestamp block, and resets the builder for a fresh chunk.
// Per-record raw tokens are discarded once resolved, bounding builder
// memory to the open chunk.
func (b *Builder) seal() *SealedChunk {
	n := len(b.records)
	templates := b.table.Templates()

	sealed := &SealedChunk{
		Templates:   append([]Template(nil), templates...),
		Priorities:  make([]uint8, n),
		HostnameIDs: make([]uint32, n),
		AppNameIDs:  make([]uint32, n),
		ProcIDIDs:   make([]uint32, n),
		MsgIDIDs:    make([]uint32, n),
		TemplateIDs: make([]uint32, n),
		Variables:   make([][]string, n),
	}

	if n > 0 {
		sealed.BaseMs = b.records[0].timestampMs
		sealed.Deltas = make([]int64, n-1)
	}

	prevTS := int64(0)
	for i, rec := range b.records {
		if i > 0 {
			sealed.Deltas[i-1] = rec.timestampMs - prevTS
		}
		prevTS = rec.timestampMs

		sealed.Priorities[i] = rec.priority
		sealed.HostnameIDs[i] = b.pool.ID(rec.hostname)
		sealed.AppNameIDs[i] = b.pool.ID(rec.appName)
		sealed.ProcIDIDs[i] = b.pool.ID(rec.procID)
		sealed.MsgIDIDs[i] = b.pool.ID(rec.msgID)
		sealed.TemplateIDs[i] = uint32(rec.templateID)
		sealed.Variables[i] = Resolve(templates[rec.templateID], rec.rawTokens)
	}

	sealed.StringPool = b.pool.Strings()

	b.records = nil
	b.pool = NewStringPool()
	b.table = NewTable()

	if b.flushSignal != nil {
		b.flushSignal.Notify()
	}

	return sealed
}

// StartPeriodicSweep runs a gocron job that, every interval, delivers a
// tick on the returned channel rather than calling ForceFlush itself: the
// Builder is not safe for concurrent use, and gocron runs each job on its
// own goroutine, so calling ForceFlush directly from the job would race
// with a concurrent Add from the builder's owning task. The owning task
// must select on the returned channel alongside its Add calls and invoke
// ForceFlush itself when a tick arrives — this is what keeps mutation
// serialized onto one goroutine, per the concurrency model.
func (b *Builder) StartPeriodicSweep(ctx context.Context, interval time.Duration) (ticks <-chan struct{}, stop func() error, err error) {
	if interval <= 0 {
		interval = DefaultForceFlushInterval
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, nil, fmt.Errorf("logshrink: create sweep scheduler: %w", err)
	}

	tickCh := make(chan struct{}, 1)
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			select {
			case tickCh <- struct{}{}:
			default:
				// A tick is already pending; the owning task hasn't
				// caught up yet, so this sweep is a no-op.
			}
		}),
		gocron.WithName("logshrink-force-flush-sweep"),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("logshrink: create sweep job: %w", err)
	}

	s.Start()

	go func() {
		<-ctx.Done()
		s.Shutdown()
	}()

	return tickCh, s.Shutdown, nil
}
