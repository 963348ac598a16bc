package syslogmsg

import "time"

// rfc3164TimestampLen is the fixed width of "Mmm dd HH:MM:SS": 3 (month) +
// 1 (space) + 2 (day, space- or zero-padded) + 1 (space) + 8 (HH:MM:SS).
const rfc3164TimestampLen = 15

// parseRfc3164 parses the legacy BSD header after "<PRI>":
// TIMESTAMP HOSTNAME TAG[PID]: body. Hostname and/or TAG[PID] may be
// absent, in which case the remainder is the body verbatim.
func (p *Parser) parseRfc3164(data []byte, msg *Message) error {
	if len(data) < rfc3164TimestampLen {
		return ErrTruncated
	}

	ts, ok := parseRfc3164Timestamp(string(data[:rfc3164TimestampLen]), p.loc)
	if !ok {
		return ErrInvalidTimestamp
	}
	msg.TimestampMs = ts.UnixMilli()

	pos := rfc3164TimestampLen
	if pos < len(data) && data[pos] == ' ' {
		pos++
	}

	// word1 is either the hostname (followed by a space) or, if the
	// message omits the hostname, the TAG itself (followed by ':' or '[').
	start := pos
	for pos < len(data) && data[pos] != ' ' && data[pos] != ':' && data[pos] != '[' {
		pos++
	}
	word1 := data[start:pos]

	if len(word1) == 0 {
		// Neither hostname nor tag recognizable; whatever remains is the body.
		msg.Body = sanitizeUTF8(data[pos:])
		return nil
	}

	if pos < len(data) && data[pos] == ' ' {
		// word1 was the hostname; advance past the separating space and
		// parse TAG[PID] from what follows.
		hostname := string(word1)
		msg.Hostname = &hostname
		pos++
		parseRfc3164Tag(data, pos, msg)
		return nil
	}

	if pos >= len(data) {
		// word1 ran to the end of input with no ':' or '[' terminator and
		// no hostname-separating space: there is no tag, it's all body.
		msg.Body = sanitizeUTF8(data[start:])
		return nil
	}

	// word1 is directly followed by ':' or '[' — it is the TAG, hostname absent.
	parseRfc3164TagFrom(data, start, pos, msg)
	return nil
}

// parseRfc3164Tag parses "TAG[PID]: body" starting at pos, where word1 has
// already been identified as the hostname.
func parseRfc3164Tag(data []byte, pos int, msg *Message) {
	start := pos
	for pos < len(data) && data[pos] != ':' && data[pos] != '[' && data[pos] != ' ' {
		pos++
	}
	if pos >= len(data) || data[pos] == ' ' {
		// No ':' or '[' terminator was found — this is not a well-formed
		// TAG, so everything after the hostname is the body.
		msg.Body = sanitizeUTF8(data[start:])
		return
	}
	parseRfc3164TagFrom(data, start, pos, msg)
}

// parseRfc3164TagFrom assigns msg.AppName/ProcID/Body given that the TAG
// token spans data[start:tagEnd] and is known to be terminated by ':' or '['.
func parseRfc3164TagFrom(data []byte, start, tagEnd int, msg *Message) {
	if tagEnd == start {
		msg.Body = sanitizeUTF8(data[start:])
		return
	}

	tag := string(data[start:tagEnd])
	msg.AppName = &tag
	pos := tagEnd

	if pos < len(data) && data[pos] == '[' {
		pos++
		pidStart := pos
		for pos < len(data) && data[pos] != ']' {
			pos++
		}
		if pos < len(data) {
			pid := string(data[pidStart:pos])
			msg.ProcID = &pid
			pos++ // consume ']'
		}
	}

	if pos < len(data) && data[pos] == ':' {
		pos++
		if pos < len(data) && data[pos] == ' ' {
			pos++
		}
	}

	msg.Body = sanitizeUTF8(data[pos:])
}

// parseRfc3164Timestamp parses "Jan  2 15:04:05" (single-digit day, space
// padded) or "Jan 02 15:04:05" (zero-padded day), always assuming the
// current year, per spec §4.1.
func parseRfc3164Timestamp(s string, loc *time.Location) (time.Time, bool) {
	now := time.Now().In(loc)

	layouts := []string{"Jan  2 15:04:05", "Jan 02 15:04:05"}
	for _, layout := range layouts {
		parsed, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		ts := time.Date(now.Year(), parsed.Month(), parsed.Day(),
			parsed.Hour(), parsed.Minute(), parsed.Second(), 0, loc)
		return ts, true
	}
	return time.Time{}, false
}
