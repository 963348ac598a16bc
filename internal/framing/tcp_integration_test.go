package framing

import (
	"context"
	"net"
	"testing"
	"time"

	"sankshepa/internal/metrics"
)

func TestTCPListenerDeliversOctetCountedFrame(t *testing.T) {
	var counts metrics.Counters
	l := NewTCPListener("127.0.0.1:0", Config{}, &counts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Frame, 4)
	go l.Run(ctx, out)

	for l.Addr() == nil {
		time.Sleep(time.Millisecond)
	}

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("5 abcde7 hijklmn")); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got []string
	for i := 0; i < 2; i++ {
		select {
		case frame := <-out:
			if frame.Protocol != ProtocolTCP {
				t.Errorf("protocol = %v, want tcp", frame.Protocol)
			}
			if frame.ConnName == "" {
				t.Error("expected a non-empty conn nickname")
			}
			got = append(got, string(frame.Payload))
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for frame %d", i)
		}
	}

	if got[0] != "abcde" || got[1] != "hijklmn" {
		t.Errorf("frames = %v, want [abcde hijklmn]", got)
	}
}

func TestTCPListenerClosesOnFramingError(t *testing.T) {
	var counts metrics.Counters
	l := NewTCPListener("127.0.0.1:0", Config{MaxTCPFrame: 4}, &counts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := make(chan Frame, 4)
	go l.Run(ctx, out)

	for l.Addr() == nil {
		time.Sleep(time.Millisecond)
	}

	conn, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// "100" exceeds the configured 4-byte max frame.
	conn.Write([]byte("100 xxxx"))

	deadline := time.Now().Add(2 * time.Second)
	for counts.FramingErrors.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if counts.FramingErrors.Load() == 0 {
		t.Error("expected a framing error to be counted")
	}
}
