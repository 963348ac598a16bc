package syslogmsg

import "time"

// parseRfc5424 parses the header fields after "<PRI>" for an RFC 5424
// message: VERSION TIMESTAMP HOSTNAME APP-NAME PROCID MSGID
// STRUCTURED-DATA [BOM]MSG.
func (p *Parser) parseRfc5424(data []byte, msg *Message) error {
	// VERSION already confirmed to be "1 " by the dispatcher; consume it.
	if len(data) < 2 {
		return ErrTruncated
	}
	data = data[2:]

	timestamp, rest, err := nextToken(data)
	if err != nil {
		return err
	}
	if timestamp != "-" {
		ts, ok := parseRfc3339(timestamp)
		if !ok {
			return ErrInvalidTimestamp
		}
		msg.TimestampMs = ts.UnixMilli()
	}
	data = rest

	hostname, rest, err := nextToken(data)
	if err != nil {
		return err
	}
	if hostname != "-" {
		msg.Hostname = &hostname
	}
	data = rest

	appName, rest, err := nextToken(data)
	if err != nil {
		return err
	}
	if appName != "-" {
		msg.AppName = &appName
	}
	data = rest

	procID, rest, err := nextToken(data)
	if err != nil {
		return err
	}
	if procID != "-" {
		msg.ProcID = &procID
	}
	data = rest

	msgID, rest, err := nextToken(data)
	if err != nil {
		return err
	}
	if msgID != "-" {
		msg.MsgID = &msgID
	}
	data = rest

	sd, rest, err := parseStructuredData(data)
	if err != nil {
		return err
	}
	msg.StructuredData = sd
	data = rest

	// A single space separates STRUCTURED-DATA from MSG, when MSG is present.
	if len(data) > 0 && data[0] == ' ' {
		data = data[1:]
	}

	// Strip a UTF-8 byte order mark, if present, per RFC 5424's [BOM]MSG.
	const bom = "\xEF\xBB\xBF"
	if len(data) >= 3 && string(data[:3]) == bom {
		data = data[3:]
	}

	msg.Body = sanitizeUTF8(data)
	return nil
}

// nextToken reads one space-delimited token and returns it along with the
// remaining bytes (the leading space, if any, consumed). A zero-length
// token before a space or end of input is a truncation error: every
// RFC 5424 header slot requires either "-" or a real value.
func nextToken(data []byte) (string, []byte, error) {
	if len(data) == 0 {
		return "", nil, ErrTruncated
	}
	i := 0
	for i < len(data) && data[i] != ' ' {
		i++
	}
	if i == 0 {
		return "", nil, ErrTruncated
	}
	tok := string(data[:i])
	rest := data[i:]
	if len(rest) > 0 {
		rest = rest[1:]
	}
	return tok, rest, nil
}

func parseRfc3339(s string) (time.Time, bool) {
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts, true
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, true
	}
	return time.Time{}, false
}

// parseStructuredData parses STRUCTURED-DATA: either "-" or one or more
// bracketed SD-ELEMENTs, "[SD-ID key=\"val\" ...]" in sequence, with
// backslash-escaping of '"', '\\', and ']' inside values.
func parseStructuredData(data []byte) ([]SDElement, []byte, error) {
	if len(data) == 0 {
		return nil, nil, ErrTruncated
	}
	if data[0] == '-' {
		return nil, data[1:], nil
	}
	if data[0] != '[' {
		return nil, nil, ErrInvalidStructuredData
	}

	var elems []SDElement
	for len(data) > 0 && data[0] == '[' {
		elem, rest, err := parseSDElement(data)
		if err != nil {
			return nil, nil, err
		}
		elems = append(elems, elem)
		data = rest
	}
	return elems, data, nil
}

func parseSDElement(data []byte) (SDElement, []byte, error) {
	// data[0] == '['
	i := 1
	idStart := i
	for i < len(data) && data[i] != ' ' && data[i] != ']' {
		i++
	}
	if i == idStart {
		return SDElement{}, nil, ErrInvalidStructuredData
	}
	elem := SDElement{ID: string(data[idStart:i])}

	for i < len(data) && data[i] == ' ' {
		i++
		nameStart := i
		for i < len(data) && data[i] != '=' {
			i++
		}
		if i >= len(data) || i == nameStart {
			return SDElement{}, nil, ErrInvalidStructuredData
		}
		name := string(data[nameStart:i])
		i++ // consume '='
		if i >= len(data) || data[i] != '"' {
			return SDElement{}, nil, ErrInvalidStructuredData
		}
		i++ // consume opening quote

		var value []byte
		closed := false
		for i < len(data) {
			c := data[i]
			if c == '\\' && i+1 < len(data) {
				n := data[i+1]
				if n == '"' || n == '\\' || n == ']' {
					value = append(value, n)
					i += 2
					continue
				}
			}
			if c == '"' {
				i++
				closed = true
				break
			}
			value = append(value, c)
			i++
		}
		if !closed {
			return SDElement{}, nil, ErrInvalidStructuredData
		}
		elem.Params = append(elem.Params, SDParam{Name: name, Value: string(value)})
	}

	if i >= len(data) || data[i] != ']' {
		return SDElement{}, nil, ErrInvalidStructuredData
	}
	i++

	return elem, data[i:], nil
}
