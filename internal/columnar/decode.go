package columnar

import (
	"encoding/binary"
	"errors"

	"sankshepa/internal/logshrink"
)

// ErrTruncatedPayload is returned when a serialized ChunkPayload ends
// before a length-prefixed field can be fully read.
var ErrTruncatedPayload = errors.New("columnar: truncated chunk payload")

// ErrBadTokenTag is returned when a templates block contains a token tag
// other than literal or var.
var ErrBadTokenTag = errors.New("columnar: invalid token tag")

// cursor reads sequentially through buf, bounds-checking every access.
type cursor struct {
	buf []byte
	pos int
}

func (c *cursor) u32() (uint32, error) {
	if c.pos+4 > len(c.buf) {
		return 0, ErrTruncatedPayload
	}
	v := binary.LittleEndian.Uint32(c.buf[c.pos : c.pos+4])
	c.pos += 4
	return v, nil
}

func (c *cursor) i64() (int64, error) {
	if c.pos+8 > len(c.buf) {
		return 0, ErrTruncatedPayload
	}
	v := binary.LittleEndian.Uint64(c.buf[c.pos : c.pos+8])
	c.pos += 8
	return int64(v), nil
}

func (c *cursor) u8() (uint8, error) {
	if c.pos+1 > len(c.buf) {
		return 0, ErrTruncatedPayload
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) bytes(n int) ([]byte, error) {
	if n < 0 || c.pos+n > len(c.buf) {
		return nil, ErrTruncatedPayload
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func (c *cursor) str() (string, error) {
	n, err := c.u32()
	if err != nil {
		return "", err
	}
	b, err := c.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode deserializes a ChunkPayload encoded by Encode.
func Decode(data []byte) (*ChunkPayload, error) {
	c := &cursor{buf: data}
	payload := &ChunkPayload{}

	pool, err := decodeStringPool(c)
	if err != nil {
		return nil, err
	}
	payload.StringPool = pool

	templates, err := decodeTemplates(c)
	if err != nil {
		return nil, err
	}
	payload.Templates = templates

	baseMs, deltas, err := decodeTimestampBlock(c)
	if err != nil {
		return nil, err
	}
	payload.BaseMs = baseMs
	payload.Deltas = deltas

	if payload.Priorities, err = decodeU8Block(c); err != nil {
		return nil, err
	}
	if payload.HostnameIDs, err = decodeU32Block(c); err != nil {
		return nil, err
	}
	if payload.AppNameIDs, err = decodeU32Block(c); err != nil {
		return nil, err
	}
	if payload.ProcIDIDs, err = decodeU32Block(c); err != nil {
		return nil, err
	}
	if payload.MsgIDIDs, err = decodeU32Block(c); err != nil {
		return nil, err
	}
	if payload.TemplateIDs, err = decodeU32Block(c); err != nil {
		return nil, err
	}
	if payload.Variables, err = decodeVariableBlock(c); err != nil {
		return nil, err
	}

	return payload, nil
}

func decodeStringPool(c *cursor) ([]string, error) {
	n, err := c.u32()
	if err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := c.str()
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

func decodeTemplates(c *cursor) ([]logshrink.Template, error) {
	n, err := c.u32()
	if err != nil {
		return nil, err
	}
	out := make([]logshrink.Template, n)
	for i := range out {
		tokCount, err := c.u32()
		if err != nil {
			return nil, err
		}
		tmpl := make(logshrink.Template, tokCount)
		for j := range tmpl {
			tag, err := c.u8()
			if err != nil {
				return nil, err
			}
			switch tag {
			case tokenVar:
				tmpl[j] = logshrink.Var
			case tokenLiteral:
				s, err := c.str()
				if err != nil {
					return nil, err
				}
				tmpl[j] = logshrink.Lit(s)
			default:
				return nil, ErrBadTokenTag
			}
		}
		out[i] = tmpl
	}
	return out, nil
}

func decodeTimestampBlock(c *cursor) (int64, []int64, error) {
	base, err := c.i64()
	if err != nil {
		return 0, nil, err
	}
	n, err := c.u32()
	if err != nil {
		return 0, nil, err
	}
	deltas := make([]int64, n)
	for i := range deltas {
		d, err := c.i64()
		if err != nil {
			return 0, nil, err
		}
		deltas[i] = d
	}
	return base, deltas, nil
}

func decodeU8Block(c *cursor) ([]uint8, error) {
	n, err := c.u32()
	if err != nil {
		return nil, err
	}
	b, err := c.bytes(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]uint8, n)
	copy(out, b)
	return out, nil
}

func decodeU32Block(c *cursor) ([]uint32, error) {
	n, err := c.u32()
	if err != nil {
		return nil, err
	}
	out := make([]uint32, n)
	for i := range out {
		v, err := c.u32()
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeVariableBlock(c *cursor) ([][]string, error) {
	n, err := c.u32()
	if err != nil {
		return nil, err
	}
	out := make([][]string, n)
	for i := range out {
		rowLen, err := c.u32()
		if err != nil {
			return nil, err
		}
		row := make([]string, rowLen)
		for j := range row {
			s, err := c.str()
			if err != nil {
				return nil, err
			}
			row[j] = s
		}
		out[i] = row
	}
	return out, nil
}
