package ingest

import (
	"io"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"sankshepa/internal/logshrink"
)

// wildcardToken is the wire representation of a Template's <*> slot in a
// TemplateDelta's Tokens, for collaborators that don't share logshrink's
// in-memory Token type.
const wildcardToken = "<*>"

// TemplateDelta is one template the (out-of-scope) cluster layer has not
// seen before: a chunk-local id plus its token sequence. The template
// table is chunk-scoped (§9 "global-state avoidance"), so every template
// in a sealed chunk is new relative to the chunk before it — the whole
// sealed set is the delta for that chunk.
type TemplateDelta struct {
	ChunkSeq   uint64   `msgpack:"chunk_seq"`
	TemplateID uint32   `msgpack:"template_id"`
	Tokens     []string `msgpack:"tokens"`
}

// TemplateDeltasFor converts one sealed chunk's template table into the
// wire shape the cluster layer consumes.
func TemplateDeltasFor(chunkSeq uint64, templates []logshrink.Template) []TemplateDelta {
	out := make([]TemplateDelta, len(templates))
	for i, tmpl := range templates {
		tokens := make([]string, len(tmpl))
		for j, tok := range tmpl {
			if tok.Var {
				tokens[j] = wildcardToken
				continue
			}
			tokens[j] = tok.Text
		}
		out[i] = TemplateDelta{ChunkSeq: chunkSeq, TemplateID: uint32(i), Tokens: tokens}
	}
	return out
}

// ClusterStream fans each sealed chunk's template deltas out to
// subscribers as a one-way event stream: per §6, the cluster layer only
// ever consumes this stream, it never mutates the chunk builder.
type ClusterStream struct {
	bufferSize int

	mu   sync.Mutex
	subs map[int]chan []TemplateDelta
	next int
}

// NewClusterStream builds a stream with the given per-subscriber buffer
// depth; bufferSize <= 0 selects DefaultTapBuffer.
func NewClusterStream(bufferSize int) *ClusterStream {
	if bufferSize <= 0 {
		bufferSize = DefaultTapBuffer
	}
	return &ClusterStream{bufferSize: bufferSize, subs: make(map[int]chan []TemplateDelta)}
}

// Subscribe registers a new subscriber, returning its channel and an id
// for Unsubscribe.
func (s *ClusterStream) Subscribe() (id int, ch <-chan []TemplateDelta) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id = s.next
	s.next++
	c := make(chan []TemplateDelta, s.bufferSize)
	s.subs[id] = c
	return id, c
}

// Unsubscribe removes and closes a subscriber's channel.
func (s *ClusterStream) Unsubscribe(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(c)
	}
}

// publish fans deltas out to every subscriber, non-blocking: sharing is
// advisory and best-effort (§1), so a full subscriber queue simply drops
// this round's deltas for that subscriber.
func (s *ClusterStream) publish(deltas []TemplateDelta) {
	if len(deltas) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.subs {
		select {
		case c <- deltas:
		default:
		}
	}
}

// EncodeDeltas msgpack-encodes deltas for transmission to a remote
// cluster-layer subscriber over the wire — the boundary contract's wire
// encoding, distinct from the hand-rolled on-disk columnar format.
func EncodeDeltas(w io.Writer, deltas []TemplateDelta) error {
	return msgpack.NewEncoder(w).Encode(deltas)
}

// DecodeDeltas reverses EncodeDeltas, for a cluster-layer subscriber
// reading the stream.
func DecodeDeltas(r io.Reader) ([]TemplateDelta, error) {
	var deltas []TemplateDelta
	if err := msgpack.NewDecoder(r).Decode(&deltas); err != nil {
		return nil, err
	}
	return deltas, nil
}
