package logshrink

import (
	"context"
	"testing"
	"time"

	"sankshepa/internal/syslogmsg"
)

func strp(s string) *string { return &s }

func TestBuilderSealsAtBatchSize(t *testing.T) {
	b := NewBuilder(2, nil)

	if sealed := b.Add(syslogmsg.Message{TimestampMs: 1, Body: "a b"}); sealed != nil {
		t.Fatal("expected no seal before batch size reached")
	}
	sealed := b.Add(syslogmsg.Message{TimestampMs: 2, Body: "a b"})
	if sealed == nil {
		t.Fatal("expected a sealed chunk at batch size")
	}
	if sealed.RecordCount() != 2 {
		t.Errorf("record count = %d, want 2", sealed.RecordCount())
	}
	if len(sealed.Templates) != 1 {
		t.Errorf("templates = %d, want 1", len(sealed.Templates))
	}
}

func TestBuilderForceFlushEmptyIsNil(t *testing.T) {
	b := NewBuilder(10, nil)
	if sealed := b.ForceFlush(); sealed != nil {
		t.Error("expected nil from ForceFlush on an empty builder")
	}
}

func TestBuilderResetsAfterSeal(t *testing.T) {
	b := NewBuilder(1, nil)
	first := b.Add(syslogmsg.Message{TimestampMs: 1, Body: "one"})
	second := b.Add(syslogmsg.Message{TimestampMs: 2, Body: "two"})
	if first == nil || second == nil {
		t.Fatal("expected both adds to seal at batch size 1")
	}
	// Each chunk is self-describing: the second chunk's template ids and
	// string pool start fresh rather than continuing the first's.
	if len(first.Templates) != 1 || len(second.Templates) != 1 {
		t.Fatalf("expected one template per chunk, got %d and %d", len(first.Templates), len(second.Templates))
	}
}

func TestBuilderHeaderFieldsAndDeltaEncoding(t *testing.T) {
	b := NewBuilder(3, nil)
	b.Add(syslogmsg.Message{TimestampMs: 100, Priority: 34, Hostname: strp("host"), AppName: strp("app"), ProcID: strp("1"), MsgID: strp("ID47"), Body: "hello"})
	b.Add(syslogmsg.Message{TimestampMs: 150, Priority: 13, Body: "world"})
	sealed := b.Add(syslogmsg.Message{TimestampMs: 90, Priority: 6, Body: "third"})
	if sealed == nil {
		t.Fatal("expected seal at batch size 3")
	}

	if sealed.BaseMs != 100 {
		t.Errorf("base_ms = %d, want 100", sealed.BaseMs)
	}
	// Deltas accept negatives: arrival order need not be monotonic.
	wantDeltas := []int64{50, -60}
	for i, d := range wantDeltas {
		if sealed.Deltas[i] != d {
			t.Errorf("delta[%d] = %d, want %d", i, sealed.Deltas[i], d)
		}
	}

	if sealed.HostnameIDs[0] == 0 {
		t.Error("expected hostname id to be non-zero for an interned hostname")
	}
	if sealed.HostnameIDs[1] != 0 {
		t.Error("expected hostname id 0 for an absent hostname")
	}
	if sealed.StringPool[sealed.HostnameIDs[0]-1] != "host" {
		t.Errorf("pool[hostname id] = %q, want host", sealed.StringPool[sealed.HostnameIDs[0]-1])
	}
}

func TestBuilderPeriodicSweepForceFlushes(t *testing.T) {
	b := NewBuilder(100, nil)
	b.Add(syslogmsg.Message{TimestampMs: 1, Body: "lonely message"})

	ticks, stop, err := b.StartPeriodicSweep(context.Background(), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("StartPeriodicSweep: %v", err)
	}
	defer stop()

	select {
	case <-ticks:
		sealed := b.ForceFlush()
		if sealed == nil || sealed.RecordCount() != 1 {
			t.Fatalf("expected ForceFlush to seal 1 record after a tick, got %+v", sealed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("periodic sweep never ticked")
	}
}
