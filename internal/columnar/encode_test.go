package columnar

import (
	"reflect"
	"testing"

	"sankshepa/internal/logshrink"
)

func sampleChunk() *ChunkPayload {
	return &ChunkPayload{
		StringPool: []string{"host", "app", "1"},
		Templates: []logshrink.Template{
			{logshrink.Lit("User"), logshrink.Var, logshrink.Lit("failed"), logshrink.Lit("login")},
		},
		BaseMs:      1000,
		Deltas:      []int64{50, -10},
		Priorities:  []uint8{34, 13, 6},
		HostnameIDs: []uint32{1, 0, 1},
		AppNameIDs:  []uint32{2, 0, 0},
		ProcIDIDs:   []uint32{3, 0, 0},
		MsgIDIDs:    []uint32{0, 0, 0},
		TemplateIDs: []uint32{0, 0, 0},
		Variables:   [][]string{{"alice"}, {"bob"}, {"carol"}},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	chunk := sampleChunk()
	encoded := Encode(chunk)

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !reflect.DeepEqual(decoded, chunk) {
		t.Errorf("decoded = %+v\nwant    = %+v", decoded, chunk)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	chunk := sampleChunk()
	a := Encode(chunk)
	b := Encode(chunk)
	if !reflect.DeepEqual(a, b) {
		t.Error("Encode must be deterministic for identical input")
	}
}

func TestDecodeTruncatedPayload(t *testing.T) {
	encoded := Encode(sampleChunk())
	_, err := Decode(encoded[:len(encoded)/2])
	if err != ErrTruncatedPayload {
		t.Errorf("error = %v, want ErrTruncatedPayload", err)
	}
}

func TestDecodeBadTokenTag(t *testing.T) {
	chunk := &ChunkPayload{
		Templates:   []logshrink.Template{{logshrink.Lit("x")}},
		Priorities:  []uint8{1},
		HostnameIDs: []uint32{0},
		AppNameIDs:  []uint32{0},
		ProcIDIDs:   []uint32{0},
		MsgIDIDs:    []uint32{0},
		TemplateIDs: []uint32{0},
		Variables:   [][]string{{}},
	}
	encoded := Encode(chunk)

	// Locate and corrupt the token tag byte for the single literal token:
	// string_pool count(4) + templates count(4) + token count(4), then the
	// tag (1 byte, at this offset).
	tagOffset := 4 /* string_pool count */ + 4 /* templates count */ + 4 /* token count */
	encoded[tagOffset] = 0xFF

	if _, err := Decode(encoded); err != ErrBadTokenTag {
		t.Errorf("error = %v, want ErrBadTokenTag", err)
	}
}

func TestEncodeEmptyChunk(t *testing.T) {
	chunk := &ChunkPayload{}
	encoded := Encode(chunk)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.RecordCount() != 0 {
		t.Errorf("record count = %d, want 0", decoded.RecordCount())
	}
}
