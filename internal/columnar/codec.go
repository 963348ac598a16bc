package columnar

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// DefaultCompressionLevel matches the spec's default Zstandard level.
const DefaultCompressionLevel = zstd.SpeedDefault

// Codec compresses and decompresses ChunkPayload bytes with a
// dictionary-less Zstandard stream. Encoding is single-threaded: the
// compressor must be deterministic for a fixed level so that encoding the
// same input twice yields byte-identical output, and zstd's multi-threaded
// mode does not guarantee that.
//
// Grounded on gastrolog's internal/chunk/file/compress.go's package-level
// decoder pattern, with the seekable-frame wrapper dropped since random
// access into a chunk is out of scope here — chunks are read sequentially,
// whole, per the reconstruction model.
type Codec struct {
	level zstd.EncoderLevel
}

// NewCodec builds a Codec at the given level; a zero level selects
// DefaultCompressionLevel.
func NewCodec(level zstd.EncoderLevel) *Codec {
	if level == 0 {
		level = DefaultCompressionLevel
	}
	return &Codec{level: level}
}

// Compress compresses data into a single zstd frame.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(c.level),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("columnar: new zstd encoder: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, make([]byte, 0, len(data))), nil
}

// Decompress reverses Compress.
func (c *Codec) Decompress(compressed []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("columnar: new zstd decoder: %w", err)
	}
	defer dec.Close()
	return dec.DecodeAll(compressed, nil)
}
