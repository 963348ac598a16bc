package columnar

import (
	"encoding/binary"

	"sankshepa/internal/logshrink"
)

// Token tags for the templates block.
const (
	tokenLiteral = 0
	tokenVar     = 1
)

// Encode serializes a ChunkPayload using the schema-driven binary encoding:
// fixed-width little-endian integers, u32 byte-length prefixes for
// variable-length fields (strings and outer lists). No floats appear in
// this schema.
func Encode(c *ChunkPayload) []byte {
	buf := make([]byte, 0, estimateSize(c))

	buf = appendStringPool(buf, c.StringPool)
	buf = appendTemplates(buf, c.Templates)
	buf = appendTimestampBlock(buf, c.BaseMs, c.Deltas)
	buf = appendU8Block(buf, c.Priorities)
	buf = appendU32Block(buf, c.HostnameIDs)
	buf = appendU32Block(buf, c.AppNameIDs)
	buf = appendU32Block(buf, c.ProcIDIDs)
	buf = appendU32Block(buf, c.MsgIDIDs)
	buf = appendU32Block(buf, c.TemplateIDs)
	buf = appendVariableBlock(buf, c.Variables)

	return buf
}

func estimateSize(c *ChunkPayload) int {
	n := c.RecordCount()
	return 64 + len(c.StringPool)*16 + len(c.Templates)*32 + n*24
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendI64(buf []byte, v int64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(v))
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendU32(buf, uint32(len(s)))
	return append(buf, s...)
}

func appendStringPool(buf []byte, pool []string) []byte {
	buf = appendU32(buf, uint32(len(pool)))
	for _, s := range pool {
		buf = appendString(buf, s)
	}
	return buf
}

func appendTemplates(buf []byte, templates []logshrink.Template) []byte {
	buf = appendU32(buf, uint32(len(templates)))
	for _, tmpl := range templates {
		buf = appendU32(buf, uint32(len(tmpl)))
		for _, tok := range tmpl {
			if tok.Var {
				buf = append(buf, tokenVar)
				continue
			}
			buf = append(buf, tokenLiteral)
			buf = appendString(buf, tok.Text)
		}
	}
	return buf
}

func appendTimestampBlock(buf []byte, baseMs int64, deltas []int64) []byte {
	buf = appendI64(buf, baseMs)
	buf = appendU32(buf, uint32(len(deltas)))
	for _, d := range deltas {
		buf = appendI64(buf, d)
	}
	return buf
}

func appendU8Block(buf []byte, vals []uint8) []byte {
	buf = appendU32(buf, uint32(len(vals)))
	return append(buf, vals...)
}

func appendU32Block(buf []byte, vals []uint32) []byte {
	buf = appendU32(buf, uint32(len(vals)))
	for _, v := range vals {
		buf = appendU32(buf, v)
	}
	return buf
}

func appendVariableBlock(buf []byte, vars [][]string) []byte {
	buf = appendU32(buf, uint32(len(vars)))
	for _, row := range vars {
		buf = appendU32(buf, uint32(len(row)))
		for _, v := range row {
			buf = appendString(buf, v)
		}
	}
	return buf
}
