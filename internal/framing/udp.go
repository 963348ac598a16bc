package framing

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"

	"sankshepa/internal/logging"
	"sankshepa/internal/metrics"
)

// UDPListener accepts one datagram per syslog message on a UDP socket.
//
// Grounded on gastrolog's internal/ingester/syslog.Ingester.runUDP,
// generalized to emit framing.Frame onto a caller-owned channel instead of
// parsing inline.
type UDPListener struct {
	addr   string
	counts *metrics.Counters
	logger *slog.Logger
	connID uuid.UUID

	conn *net.UDPConn
}

// NewUDPListener builds a UDP framer for addr (e.g. ":1514").
func NewUDPListener(addr string, counts *metrics.Counters, logger *slog.Logger) *UDPListener {
	return &UDPListener{
		addr:   addr,
		counts: counts,
		logger: logging.Default(logger).With("component", "framing", "protocol", "udp"),
		connID: uuid.New(),
	}
}

// Addr returns the bound local address. Only valid once Run has started.
func (l *UDPListener) Addr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run listens until ctx is cancelled, emitting one Frame per datagram onto
// out. Datagrams larger than MaxUDPDatagram are discarded with a metric
// increment rather than truncated.
func (l *UDPListener) Run(ctx context.Context, out chan<- Frame) error {
	udpAddr, err := net.ResolveUDPAddr("udp", l.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	l.conn = conn
	defer conn.Close()

	l.logger.Info("udp listener starting", "addr", conn.LocalAddr().String())

	buf := make([]byte, MaxUDPDatagram)
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(DefaultAcceptPoll))
		n, remote, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("udp read error", "error", err)
			continue
		}
		if n == 0 {
			continue
		}
		if datagramIsOversize(n) {
			// buf is exactly MaxUDPDatagram bytes; a full read means the
			// datagram may have been truncated by the socket layer itself,
			// so treat it as oversize and discard rather than risk feeding
			// a cut payload to the parser.
			l.counts.OversizeDatagramsDropped.Add(1)
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])

		frame := Frame{
			Payload:    payload,
			Protocol:   ProtocolUDP,
			RemoteAddr: remote.String(),
			ConnID:     l.connID,
			ConnName:   "udp-listener",
			ReceivedAt: time.Now(),
		}

		select {
		case out <- frame:
		case <-ctx.Done():
			return nil
		}
	}
}

// datagramIsOversize reports whether a ReadFromUDP result of n bytes into a
// MaxUDPDatagram-sized buffer indicates the datagram met or exceeded the
// buffer's capacity (and so may have been truncated by the kernel).
func datagramIsOversize(n int) bool {
	return n >= MaxUDPDatagram
}
