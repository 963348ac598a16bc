package columnar

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"log/slog"
	"os"

	"sankshepa/internal/logging"
	"sankshepa/internal/logshrink"
)

// ErrUnsupportedFormat is returned when a file does not begin with Magic.
var ErrUnsupportedFormat = errors.New("columnar: unsupported file format")

// Record is one reconstructed message, materialized from a chunk's
// columns plus its owning template.
type Record struct {
	TimestampMs int64
	Priority    uint8
	Hostname    string
	AppName     string
	ProcID      string
	MsgID       string
	TemplateID  uint32
	Body        string
}

// Filter decides, given a record's template id, whether it should be
// yielded by Reader.Next. It is evaluated before the record's fields are
// materialized, per the reconstruction model's pre-emit predicate.
type Filter func(templateID uint32) bool

// Reader streams chunk frames from an append-only columnar file,
// verifying the magic header and, per frame, its CRC, skipping any frame
// that fails integrity checks or is truncated.
type Reader struct {
	f      *os.File
	codec  *Codec
	logger *slog.Logger
	filter Filter

	pending []Record
	pos     int
}

// Open opens path for reading and verifies its magic header.
func Open(path string, codec *Codec, filter Filter, logger *slog.Logger) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var magic [8]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		f.Close()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrUnsupportedFormat
		}
		return nil, err
	}
	if magic != Magic {
		f.Close()
		return nil, ErrUnsupportedFormat
	}

	if filter == nil {
		filter = func(uint32) bool { return true }
	}

	return &Reader{
		f:      f,
		codec:  codec,
		filter: filter,
		logger: logging.Default(logger).With("component", "columnar", "op", "read"),
	}, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Next returns the next matching record, or false once the file is
// exhausted. Frames that fail CRC, are truncated, or fail to deserialize
// are skipped with a warning; reading stops at a clean EOF.
func (r *Reader) Next() (Record, bool) {
	for {
		if r.pos < len(r.pending) {
			rec := r.pending[r.pos]
			r.pos++
			return rec, true
		}

		payload, ok := r.nextChunk()
		if !ok {
			return Record{}, false
		}
		r.pending = materialize(payload, r.filter)
		r.pos = 0
	}
}

// nextChunk reads and decodes the next valid ChunkPayload frame, skipping
// malformed ones, until one succeeds or EOF is reached.
func (r *Reader) nextChunk() (*ChunkPayload, bool) {
	for {
		var header [8]byte
		n, err := io.ReadFull(r.f, header[:])
		if err != nil {
			if n == 0 {
				return nil, false
			}
			r.logger.Warn("truncated frame header, stopping", "error", err)
			return nil, false
		}

		length := binary.LittleEndian.Uint32(header[0:4])
		wantCRC := binary.LittleEndian.Uint32(header[4:8])

		compressed := make([]byte, length)
		if _, err := io.ReadFull(r.f, compressed); err != nil {
			r.logger.Warn("truncated frame payload, stopping", "error", err)
			return nil, false
		}

		if crc32.ChecksumIEEE(compressed) != wantCRC {
			r.logger.Warn("crc mismatch, skipping frame")
			continue
		}

		serialized, err := r.codec.Decompress(compressed)
		if err != nil {
			r.logger.Warn("decompress failed, skipping frame", "error", err)
			continue
		}

		payload, err := Decode(serialized)
		if err != nil {
			r.logger.Warn("deserialize failed, skipping frame", "error", err)
			continue
		}

		return payload, true
	}
}

// materialize expands every record in payload into a reconstructed
// Record, applying filter as a pre-emit predicate on template id.
func materialize(payload *ChunkPayload, filter Filter) []Record {
	n := payload.RecordCount()
	timestamps := make([]int64, n)
	if n > 0 {
		timestamps[0] = payload.BaseMs
		for i := 1; i < n; i++ {
			timestamps[i] = timestamps[i-1] + payload.Deltas[i-1]
		}
	}

	out := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		templateID := payload.TemplateIDs[i]
		if !filter(templateID) {
			continue
		}

		tmpl := payload.Templates[templateID]
		tokens := logshrink.Expand(tmpl, payload.Variables[i])

		out = append(out, Record{
			TimestampMs: timestamps[i],
			Priority:    payload.Priorities[i],
			Hostname:    resolveString(payload.StringPool, payload.HostnameIDs[i]),
			AppName:     resolveString(payload.StringPool, payload.AppNameIDs[i]),
			ProcID:      resolveString(payload.StringPool, payload.ProcIDIDs[i]),
			MsgID:       resolveString(payload.StringPool, payload.MsgIDIDs[i]),
			TemplateID:  templateID,
			Body:        joinTokens(tokens),
		})
	}
	return out
}

// resolveString resolves a 1-based string_pool id; 0 means absent.
func resolveString(pool []string, id uint32) string {
	if id == 0 {
		return ""
	}
	return pool[id-1]
}

func joinTokens(tokens []string) string {
	if len(tokens) == 0 {
		return ""
	}
	n := len(tokens) - 1
	for _, t := range tokens {
		n += len(t)
	}
	out := make([]byte, 0, n)
	for i, t := range tokens {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, t...)
	}
	return string(out)
}
