// Package notify holds the broadcast-wakeup primitive used to tell
// waiters that a chunk was just sealed, without making them poll.
package notify

import "sync"

// Signal is a close-and-recreate broadcast channel: every call to
// Notify wakes every goroutine currently blocked on C, then starts a
// fresh generation for the next round. The builder's seal path is the
// one caller that matters here — it notifies once per sealed chunk so
// a waiter (a test, an admin hook) can block on C instead of sleeping
// and re-polling for output.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewSignal returns a Signal ready for its first generation of waiters.
func NewSignal() *Signal { return &Signal{ch: make(chan struct{})} }

// Notify closes the current generation's channel, waking every
// goroutine blocked on C, and opens the next generation.
func (s *Signal) Notify() {
	s.mu.Lock()
	close(s.ch)
	s.ch = make(chan struct{})
	s.mu.Unlock()
}

// C returns the channel for the current generation; it closes on the
// next Notify. Call C again after each wakeup to wait on the next one.
func (s *Signal) C() <-chan struct{} {
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	return ch
}
