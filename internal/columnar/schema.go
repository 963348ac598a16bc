// Package columnar implements the string-interned, template-deduplicated
// chunk format: a ChunkPayload's columns are serialized with a compact
// schema-driven binary encoding, block-compressed with Zstandard, and
// framed into an append-only file.
package columnar

import "sankshepa/internal/logshrink"

// ChunkPayload is the in-memory, pre-serialization form of one sealed
// chunk. Its shape follows the wire schema directly: one slice per column,
// all indexed by the same record position.
type ChunkPayload struct {
	StringPool []string
	Templates  []logshrink.Template

	BaseMs int64
	Deltas []int64

	Priorities  []uint8
	HostnameIDs []uint32
	AppNameIDs  []uint32
	ProcIDIDs   []uint32
	MsgIDIDs    []uint32
	TemplateIDs []uint32

	// Variables holds, for each record, the wildcard values consumed by
	// its template, in left-to-right order.
	Variables [][]string
}

// RecordCount returns the number of records in the chunk.
func (c *ChunkPayload) RecordCount() int {
	return len(c.Priorities)
}

// FromSealed adapts a logshrink.SealedChunk, the clustering engine's
// flush-time output, into the wire-shaped ChunkPayload ready for Encode.
func FromSealed(s *logshrink.SealedChunk) *ChunkPayload {
	return &ChunkPayload{
		StringPool:  s.StringPool,
		Templates:   s.Templates,
		BaseMs:      s.BaseMs,
		Deltas:      s.Deltas,
		Priorities:  s.Priorities,
		HostnameIDs: s.HostnameIDs,
		AppNameIDs:  s.AppNameIDs,
		ProcIDIDs:   s.ProcIDIDs,
		MsgIDIDs:    s.MsgIDIDs,
		TemplateIDs: s.TemplateIDs,
		Variables:   s.Variables,
	}
}
