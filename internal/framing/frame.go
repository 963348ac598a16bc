// Package framing implements the UDP and RFC 6587 TCP framers that sit in
// front of the syslog parser: they turn raw socket bytes into individual
// message payloads, leaving interpretation of those bytes to syslogmsg.
package framing

import (
	"time"

	"github.com/google/uuid"
)

// Protocol identifies which listener produced a Frame.
type Protocol int

const (
	ProtocolUDP Protocol = iota
	ProtocolTCP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	default:
		return "unknown"
	}
}

// Frame is one raw message payload recovered from the wire, with enough
// provenance to support dead-lettering and correlation across logs.
type Frame struct {
	Payload    []byte
	Protocol   Protocol
	RemoteAddr string
	ConnID     uuid.UUID
	ConnName   string
	ReceivedAt time.Time
}
