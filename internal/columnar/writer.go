package columnar

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"os"
)

// Magic is the file's fixed 8-byte prefix, identifying the format.
var Magic = [8]byte{'S', 'A', 'N', 'K', 'S', 'H', 'P', '1'}

// Writer appends framed, compressed chunks to an output file: an
// append-only sequence of length-prefixed, CRC-guarded frames behind a
// fixed magic header.
type Writer struct {
	f     *os.File
	bw    *bufio.Writer
	codec *Codec
}

// Create opens path for writing, truncating any existing file and writing
// the magic header immediately.
func Create(path string, codec *Codec) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	bw := bufio.NewWriter(f)
	if _, err := bw.Write(Magic[:]); err != nil {
		f.Close()
		return nil, err
	}
	return &Writer{f: f, bw: bw, codec: codec}, nil
}

// Codec returns the codec the Writer was created with, so a caller
// that needs to compress chunks itself (to distinguish an encoding
// failure from a write failure, see AppendFrame) can reuse the same
// instance rather than constructing a second one at the same level.
func (w *Writer) Codec() *Codec {
	return w.codec
}

// AppendChunk serializes, compresses, and frames payload, writing it to the
// underlying buffered writer. The frame is not guaranteed durable until
// Flush is called.
//
// Callers that need to distinguish an encoding/compression failure (§7's
// chunk-scoped "Encoding" kind: drop the chunk, keep the pipeline running)
// from a write failure (§7's process-fatal "I/O" kind) should call Encode
// and Compress themselves and use AppendFrame instead.
func (w *Writer) AppendChunk(payload *ChunkPayload) error {
	serialized := Encode(payload)
	compressed, err := w.codec.Compress(serialized)
	if err != nil {
		return err
	}
	return w.AppendFrame(compressed)
}

// AppendFrame writes an already-compressed chunk payload as one length
// prefixed, CRC-guarded frame, performing no encoding or compression of
// its own.
func (w *Writer) AppendFrame(compressed []byte) error {
	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(compressed)))
	binary.LittleEndian.PutUint32(header[4:8], crc32.ChecksumIEEE(compressed))

	if _, err := w.bw.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.bw.Write(compressed); err != nil {
		return err
	}
	return nil
}

// Flush flushes buffered writes and fsyncs the underlying file, per the
// shutdown sequence's durability requirement.
func (w *Writer) Flush() error {
	if err := w.bw.Flush(); err != nil {
		return err
	}
	return w.f.Sync()
}

// Close flushes and closes the underlying file.
func (w *Writer) Close() error {
	if err := w.Flush(); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}
