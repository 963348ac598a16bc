// Package ingest wires the framers, parser, LogShrink builder, and
// columnar writer into one running pipeline: one task per listener and
// per accepted connection, a single chunk-builder task, and a single
// writer task, coordinated by an errgroup and a graceful-then-hard
// shutdown sequence, per the concurrency model of spec §5.
package ingest

import (
	"sync"

	"sankshepa/internal/metrics"
	"sankshepa/internal/syslogmsg"
)

// DefaultTapBuffer is the default per-subscriber queue depth for both
// DashboardTap and ClusterStream.
const DefaultTapBuffer = 64

// DashboardTap fans every parsed message out to subscribers — the
// out-of-scope web dashboard's live event stream (§6) — without ever
// blocking the main pipeline: a slow subscriber drops messages from its
// own bounded queue, never from the upstream producer.
type DashboardTap struct {
	bufferSize int
	counts     *metrics.Counters

	mu   sync.Mutex
	subs map[int]chan syslogmsg.Message
	next int
}

// NewDashboardTap builds a tap with the given per-subscriber buffer
// depth; bufferSize <= 0 selects DefaultTapBuffer.
func NewDashboardTap(bufferSize int, counts *metrics.Counters) *DashboardTap {
	if bufferSize <= 0 {
		bufferSize = DefaultTapBuffer
	}
	return &DashboardTap{
		bufferSize: bufferSize,
		counts:     counts,
		subs:       make(map[int]chan syslogmsg.Message),
	}
}

// Subscribe registers a new subscriber, returning its channel and an id
// for Unsubscribe.
func (t *DashboardTap) Subscribe() (id int, ch <-chan syslogmsg.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id = t.next
	t.next++
	c := make(chan syslogmsg.Message, t.bufferSize)
	t.subs[id] = c
	return id, c
}

// Unsubscribe removes and closes a subscriber's channel.
func (t *DashboardTap) Unsubscribe(id int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.subs[id]; ok {
		delete(t.subs, id)
		close(c)
	}
}

// publish fans msg out to every subscriber. A full subscriber queue drops
// msg for that subscriber only, counted via DashboardTapDrops — it never
// blocks the caller and never affects other subscribers or the pipeline.
func (t *DashboardTap) publish(msg syslogmsg.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.subs {
		select {
		case c <- msg:
		default:
			if t.counts != nil {
				t.counts.DashboardTapDrops.Add(1)
			}
		}
	}
}
