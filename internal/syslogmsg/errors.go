package syslogmsg

import "errors"

// Parse failure kinds, per the error taxonomy of the ingestion contract.
// Every malformed input maps to exactly one of these — the parser never
// panics and never returns an untyped error.
var (
	ErrInvalidPriority       = errors.New("syslogmsg: invalid priority")
	ErrInvalidTimestamp      = errors.New("syslogmsg: invalid timestamp")
	ErrInvalidStructuredData = errors.New("syslogmsg: invalid structured data")
	ErrTruncated             = errors.New("syslogmsg: truncated message")
)
