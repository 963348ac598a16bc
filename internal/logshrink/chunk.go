package logshrink

// SealedChunk is the builder's flush-time output: every record's fields,
// now finalized against each template's post-migration state. It mirrors
// the wire ChunkPayload schema field-for-field without depending on the
// columnar package, keeping the clustering engine decoupled from the file
// format.
type SealedChunk struct {
	StringPool []string
	Templates  []Template

	BaseMs int64
	Deltas []int64

	Priorities  []uint8
	HostnameIDs []uint32
	AppNameIDs  []uint32
	ProcIDIDs   []uint32
	MsgIDIDs    []uint32
	TemplateIDs []uint32
	Variables   [][]string
}

// RecordCount returns the number of records sealed into the chunk.
func (s *SealedChunk) RecordCount() int {
	return len(s.Priorities)
}
