package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"sankshepa/internal/columnar"
	"sankshepa/internal/framing"
	"sankshepa/internal/logging"
	"sankshepa/internal/logshrink"
	"sankshepa/internal/metrics"
	"sankshepa/internal/notify"
	"sankshepa/internal/syslogmsg"
)

// ErrShutdownTimeout is returned when the hard cancellation deadline
// (§5, default 30s) elapses before the pipeline finishes draining,
// flushing, and closing — the last, unsealed chunk is acknowledged lost.
var ErrShutdownTimeout = errors.New("ingest: hard shutdown timeout exceeded")

// ErrConfig wraps every error Run returns before it ever touches the
// filesystem or the network, so a caller (cmd/sankshepa's exit-code
// mapping) can tell a bad argument apart from a failure partway through
// starting or running.
var ErrConfig = errors.New("ingest: invalid configuration")

// ErrStartupIO wraps a failure to open the output file, before any
// listener or task has started.
var ErrStartupIO = errors.New("ingest: startup I/O error")

// ErrWriteFailure wraps a fatal write or fsync failure from the writer
// task, per §7's process-fatal "I/O" error kind.
var ErrWriteFailure = errors.New("ingest: unrecoverable write failure")

// Pipeline wires the UDP/TCP framers, the UnifiedParser, the LogShrink
// builder, and the columnar writer into one running system, per the
// concurrency model of §5: one task per listener and per accepted
// connection (inside the framing package), a single builder task, and a
// single writer task, connected by bounded channels.
//
// Grounded on gastrolog's internal/ingester/syslog.Ingester for the
// per-protocol listener lifecycle and internal/index.BuildHelper for the
// errgroup.WithContext idiom, generalized into a full listener -> parser
// -> builder -> writer chain instead of either's single-stage pipeline.
type Pipeline struct {
	cfg Config

	udp *framing.UDPListener
	tcp *framing.TCPListener

	parser  *syslogmsg.Parser
	builder *logshrink.Builder

	counts  *metrics.Counters
	tap     *DashboardTap
	cluster *ClusterStream

	logger *slog.Logger
}

// New builds a Pipeline. Listener construction is deferred to Run so that
// a Pipeline can be constructed (and its taps subscribed to) before the
// network is touched.
func New(cfg Config) *Pipeline {
	logger := logging.Default(cfg.Logger)
	counts := &metrics.Counters{}

	p := &Pipeline{
		cfg:     cfg,
		parser:  syslogmsg.NewParser(cfg.Location),
		builder: logshrink.NewBuilder(cfg.batchSize(), logger),
		counts:  counts,
		tap:     NewDashboardTap(cfg.DashboardBuffer, counts),
		cluster: NewClusterStream(cfg.ClusterBuffer),
		logger:  logger.With("component", "ingest"),
	}

	if cfg.UDPAddr != "" {
		p.udp = framing.NewUDPListener(cfg.UDPAddr, counts, logger)
	}
	if cfg.TCPAddr != "" {
		p.tcp = framing.NewTCPListener(cfg.TCPAddr, cfg.Framing, counts, logger)
	}

	return p
}

// Counters exposes the pipeline's dead-letter and discard counters.
func (p *Pipeline) Counters() *metrics.Counters { return p.counts }

// DashboardTap exposes the non-blocking parsed-message fan-out the (out
// of scope) dashboard subscribes to.
func (p *Pipeline) DashboardTap() *DashboardTap { return p.tap }

// ClusterStream exposes the one-way template-delta event stream the
// (out of scope) cluster layer subscribes to.
func (p *Pipeline) ClusterStream() *ClusterStream { return p.cluster }

// FlushSignal exposes the builder's broadcast wakeup, notified every
// time a chunk seals (batch-full, forced, or periodic sweep) — a
// lighter-weight observability hook than subscribing to the dashboard
// tap or cluster stream for callers that only want to know a chunk just
// sealed, not its contents.
func (p *Pipeline) FlushSignal() *notify.Signal { return p.builder.FlushSignal() }

// Run starts every listener, the builder task, and the writer task, and
// blocks until ctx is cancelled and the cancellation sequence of §5
// completes (or its hard timeout elapses). It returns nil on a clean
// shutdown, ErrShutdownTimeout if the hard deadline was hit, or the first
// fatal pipeline error (a process-wide I/O failure).
func (p *Pipeline) Run(ctx context.Context) error {
	if p.udp == nil && p.tcp == nil {
		return fmt.Errorf("%w: no UDP or TCP address configured", ErrConfig)
	}
	if p.cfg.OutputPath == "" {
		return fmt.Errorf("%w: output path is required", ErrConfig)
	}

	writer, err := columnar.Create(p.cfg.OutputPath, columnar.NewCodec(p.cfg.compressionLevel()))
	if err != nil {
		return fmt.Errorf("%w: open output: %w", ErrStartupIO, err)
	}

	batch := p.cfg.batchSize()
	frameCh := make(chan framing.Frame, 4*batch)
	msgCh := make(chan syslogmsg.Message, 4*batch)
	chunkCh := make(chan *columnar.ChunkPayload, 2)

	// g's context is cancelled the moment any stage returns a fatal
	// error (a process-wide I/O failure, per §7) — every stage that can
	// block sending downstream selects on it so a fatal failure in one
	// stage can never deadlock an upstream one waiting on a channel
	// nobody reads from anymore. listenCtx is a child of it, so a fatal
	// error cancels listeners too, but listenCtx can also be cancelled on
	// its own by the graceful drain sequence below without touching
	// gctx, since that is not itself an error condition.
	g, gctx := errgroup.WithContext(context.Background())
	listenCtx, cancelListen := context.WithCancel(gctx)
	defer cancelListen()

	var listenersWG sync.WaitGroup
	if p.udp != nil {
		listenersWG.Add(1)
		g.Go(func() error {
			defer listenersWG.Done()
			return p.udp.Run(listenCtx, frameCh)
		})
	}
	if p.tcp != nil {
		listenersWG.Add(1)
		g.Go(func() error {
			defer listenersWG.Done()
			return p.tcp.Run(listenCtx, frameCh)
		})
	}
	g.Go(func() error {
		listenersWG.Wait()
		close(frameCh)
		return nil
	})

	g.Go(func() error {
		p.decodeLoop(gctx, frameCh, msgCh)
		close(msgCh)
		return nil
	})

	g.Go(func() error {
		return p.builderLoop(gctx, msgCh, chunkCh)
	})

	g.Go(func() error {
		return p.writerLoop(writer, chunkCh)
	})

	gwait := make(chan error, 1)
	go func() { gwait <- g.Wait() }()

	return p.shutdown(ctx, cancelListen, gwait, writer)
}

// shutdown implements the cancellation sequence of §5: for DrainGrace the
// listeners keep running unchanged (they still accept new connections and
// read from all sockets), then listenCtx is cancelled and they stop; the
// builder force-flushes, the writer flushes and fsyncs, and the file
// closes — all of which happen naturally as frameCh/msgCh/chunkCh close
// in turn once listenCtx is cancelled. A hard ShutdownTimeout aborts the
// wait entirely, with partial-chunk loss acknowledged.
func (p *Pipeline) shutdown(ctx context.Context, cancelListen context.CancelFunc, gwait <-chan error, writer *columnar.Writer) error {
	select {
	case err := <-gwait:
		return p.finish(err, writer)
	case <-ctx.Done():
	}

	p.logger.Info("shutdown requested, draining listeners", "drain_grace", p.cfg.drainGrace())
	graceTimer := time.NewTimer(p.cfg.drainGrace())
	defer graceTimer.Stop()

	select {
	case err := <-gwait:
		return p.finish(err, writer)
	case <-graceTimer.C:
	}

	p.logger.Warn("drain grace elapsed, stopping listeners")
	cancelListen()

	hardTimer := time.NewTimer(p.cfg.shutdownTimeout())
	defer hardTimer.Stop()

	select {
	case err := <-gwait:
		return p.finish(err, writer)
	case <-hardTimer.C:
		p.logger.Error("hard shutdown timeout exceeded, aborting with partial-chunk loss acknowledged")
		_ = writer.Close()
		return ErrShutdownTimeout
	}
}

func (p *Pipeline) finish(err error, writer *columnar.Writer) error {
	if closeErr := writer.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("%w: close: %w", ErrWriteFailure, closeErr)
	}
	return err
}

// decodeLoop parses every frame, dead-lettering on failure, fans each
// successfully parsed message out to the dashboard tap, and forwards it
// to the builder task. Its send to msgCh blocks when the builder is
// behind, propagating backpressure to the framers via frameCh filling
// up — unless ctx is cancelled first (a fatal error elsewhere), in which
// case the message is dropped rather than deadlocking on a channel
// nobody reads from anymore.
func (p *Pipeline) decodeLoop(ctx context.Context, frameCh <-chan framing.Frame, msgCh chan<- syslogmsg.Message) {
	for frame := range frameCh {
		msg, err := p.parser.Parse(frame.Payload)
		if err != nil {
			p.counts.RecordDeadLetter(err.Error(), frame.Payload, time.Now())
			p.logger.Debug("dropping unparseable message",
				"error", err, "protocol", frame.Protocol.String(), "conn_name", frame.ConnName)
			continue
		}
		p.tap.publish(msg)
		select {
		case msgCh <- msg:
		case <-ctx.Done():
			return
		}
	}
}

// builderLoop is the single task that owns the open chunk: it is the
// only goroutine that ever calls Builder.Add or Builder.ForceFlush,
// keeping mutation serialized per the concurrency model's "no locking on
// the hot path" requirement.
func (p *Pipeline) builderLoop(ctx context.Context, msgCh <-chan syslogmsg.Message, chunkCh chan<- *columnar.ChunkPayload) error {
	// chunkCh is always closed on the way out, on every return path,
	// so the writer task's range over it can never block forever on a
	// builder that has already stopped feeding it.
	defer close(chunkCh)

	ticks, stopSweep, err := p.builder.StartPeriodicSweep(context.Background(), p.cfg.ForceFlushInterval)
	if err != nil {
		return fmt.Errorf("ingest: start flush sweep: %w", err)
	}
	defer stopSweep()

	send := func(sealed *logshrink.SealedChunk) bool {
		select {
		case chunkCh <- columnar.FromSealed(sealed):
			return true
		case <-ctx.Done():
			return false
		}
	}

	for {
		select {
		case msg, ok := <-msgCh:
			if !ok {
				if sealed := p.builder.ForceFlush(); sealed != nil {
					send(sealed)
				}
				return nil
			}
			if sealed := p.builder.Add(msg); sealed != nil {
				send(sealed)
			}
		case <-ticks:
			if sealed := p.builder.ForceFlush(); sealed != nil {
				send(sealed)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// writerLoop is the single task that owns the output file: it appends
// every sealed chunk, treating an encode/compress failure as chunk-scoped
// (drop the chunk, keep running) and a write/fsync failure as fatal,
// matching §7's error taxonomy. Every successfully written chunk's
// template table is published to the cluster stream.
func (p *Pipeline) writerLoop(writer *columnar.Writer, chunkCh <-chan *columnar.ChunkPayload) error {
	// Reuse the same Codec the Writer was opened with rather than
	// building a second one at the same level: Compress is called here
	// instead of through writer.AppendChunk so an encode/compress
	// failure (chunk-scoped, §7) can be told apart from a write/fsync
	// failure (fatal, §7) on the way out.
	codec := writer.Codec()

	var seq uint64
	for payload := range chunkCh {
		seq++
		chunkID := uuid.New()
		logger := p.logger.With("chunk_id", chunkID.String(), "chunk_seq", seq, "records", payload.RecordCount())

		serialized := columnar.Encode(payload)
		compressed, err := codec.Compress(serialized)
		if err != nil {
			p.counts.EncodingErrorsChunkDropped.Add(1)
			logger.Error("chunk encoding failed, dropping chunk", "error", err)
			continue
		}

		if err := writer.AppendFrame(compressed); err != nil {
			return fmt.Errorf("%w: append: %w", ErrWriteFailure, err)
		}
		if err := writer.Flush(); err != nil {
			return fmt.Errorf("%w: flush: %w", ErrWriteFailure, err)
		}

		logger.Info("chunk written")
		p.cluster.publish(TemplateDeltasFor(seq, payload.Templates))
	}
	return nil
}
