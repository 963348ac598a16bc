package framing

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"sankshepa/internal/logging"
	"sankshepa/internal/metrics"
)

// ErrBadLengthPrefix and ErrFrameTooLarge, together with io.ErrUnexpectedEOF
// for a frame cut short, are the framing failure kinds named in the
// error-handling design; any of them terminates the offending connection
// after a metric increment.
var (
	ErrBadLengthPrefix = errors.New("framing: invalid octet-count prefix")
	ErrFrameTooLarge   = errors.New("framing: frame exceeds max size")
)

// TCPListener accepts RFC 6587 TCP syslog connections, auto-detecting
// octet-counting versus non-transparent framing per connection on the
// first byte.
//
// Grounded on gastrolog's internal/ingester/syslog.Ingester.runTCP /
// handleTCPConn / readOctetCounted, reworked to decide framing mode once
// per connection (not per frame) and to emit framing.Frame values rather
// than parsed messages.
type TCPListener struct {
	addr   string
	cfg    Config
	counts *metrics.Counters
	logger *slog.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewTCPListener builds a TCP framer for addr (e.g. ":1514").
func NewTCPListener(addr string, cfg Config, counts *metrics.Counters, logger *slog.Logger) *TCPListener {
	return &TCPListener{
		addr:   addr,
		cfg:    cfg,
		counts: counts,
		logger: logging.Default(logger).With("component", "framing", "protocol", "tcp"),
	}
}

// Addr returns the bound local address. Only valid once Run has started.
func (l *TCPListener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listener == nil {
		return nil
	}
	return l.listener.Addr()
}

// Run accepts connections until ctx is cancelled, spawning one goroutine
// per connection. It returns once every spawned connection handler has
// exited.
func (l *TCPListener) Run(ctx context.Context, out chan<- Frame) error {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.listener = ln
	l.mu.Unlock()
	defer ln.Close()

	l.logger.Info("tcp listener starting", "addr", ln.Addr().String())

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		default:
		}

		if tl, ok := ln.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(DefaultAcceptPoll))
		}

		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				wg.Wait()
				return nil
			}
			l.logger.Warn("tcp accept error", "error", err)
			continue
		}

		wg.Add(1)
		go func(conn net.Conn) {
			defer wg.Done()
			defer conn.Close()
			l.handleConn(ctx, conn, out)
		}(conn)
	}
}

func (l *TCPListener) handleConn(ctx context.Context, conn net.Conn, out chan<- Frame) {
	connID := uuid.New()
	connName := petname.Generate(2, "-")
	remoteAddr := conn.RemoteAddr().String()
	logger := l.logger.With("conn_id", connID.String(), "conn_name", connName, "remote_addr", remoteAddr)

	maxFrame := l.cfg.maxTCPFrame()
	reader := bufio.NewReaderSize(conn, 2*maxFrame)

	var limiter *rate.Limiter
	if l.cfg.NewByteRateLimiter != nil {
		limiter = l.cfg.NewByteRateLimiter()
	}

	logger.Debug("tcp connection accepted")

	// The framing mode is decided by the connection's first byte and then
	// held for every later frame on it.
	modeKnown, octetCounted := false, false

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		first, err := reader.Peek(1)
		if err != nil {
			if !isExpectedCloseErr(err) {
				logger.Debug("tcp read error", "error", err)
			}
			return
		}

		if !modeKnown {
			octetCounted = first[0] >= '0' && first[0] <= '9'
			modeKnown = true
		}

		var payload []byte
		if octetCounted {
			payload, err = readOctetCounted(reader, maxFrame)
		} else {
			payload, err = readNonTransparent(reader, maxFrame)
		}

		if err != nil {
			if !isExpectedCloseErr(err) {
				l.counts.FramingErrors.Add(1)
				logger.Warn("framing error, closing connection", "error", err)
			}
			return
		}

		if limiter != nil {
			limiter.WaitN(ctx, len(payload))
		}

		if len(payload) == 0 {
			continue
		}

		frame := Frame{
			Payload:    payload,
			Protocol:   ProtocolTCP,
			RemoteAddr: remoteAddr,
			ConnID:     connID,
			ConnName:   connName,
			ReceivedAt: time.Now(),
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return
		}
	}
}

func isExpectedCloseErr(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return true
	}
	return false
}

// readOctetCounted reads one RFC 6587 octet-counted frame: a decimal length
// prefix, a single space separator, then exactly that many payload bytes.
func readOctetCounted(r *bufio.Reader, maxFrame int) ([]byte, error) {
	length := 0
	digits := 0
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == ' ' {
			break
		}
		if b < '0' || b > '9' {
			return nil, ErrBadLengthPrefix
		}
		length = length*10 + int(b-'0')
		digits++
		if digits > 9 || length > maxFrame {
			return nil, ErrFrameTooLarge
		}
	}

	msg := make([]byte, length)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// readNonTransparent reads one RFC 6587 non-transparent frame: bytes up to
// (not including) the next '\n' or '\0' delimiter. A trailing '\r' before
// '\n' is stripped as a CRLF convenience; empty frames are returned as a
// zero-length slice and skipped by the caller.
func readNonTransparent(r *bufio.Reader, maxFrame int) ([]byte, error) {
	var line []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == '\n' || b == 0 {
			break
		}
		line = append(line, b)
		if len(line) > maxFrame {
			return nil, ErrFrameTooLarge
		}
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line, nil
}
