package ingest

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"sankshepa/internal/columnar"
)

func TestPipelineRunRequiresAListener(t *testing.T) {
	p := New(Config{OutputPath: filepath.Join(t.TempDir(), "out.sank")})
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected an error with no UDP or TCP address configured")
	}
}

func TestPipelineRunRequiresOutputPath(t *testing.T) {
	p := New(Config{UDPAddr: "127.0.0.1:0"})
	if err := p.Run(context.Background()); err == nil {
		t.Fatal("expected an error with no output path configured")
	}
}

func TestPipelineIngestsAndWritesChunk(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "out.sank")
	p := New(Config{
		UDPAddr:         "127.0.0.1:0",
		OutputPath:      outPath,
		BatchSize:       2,
		DrainGrace:      50 * time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan error, 1)
	go func() { runDone <- p.Run(ctx) }()

	addr := waitForUDPAddr(t, p)

	conn, err := net.Dial("udp", addr.String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sealed := p.FlushSignal().C()

	lines := []string{
		"<34>1 2024-01-01T00:00:00Z host1 app1 - - - connect from 10.0.0.1 succeeded",
		"<34>1 2024-01-01T00:00:01Z host1 app1 - - - connect from 10.0.0.2 succeeded",
	}
	for _, line := range lines {
		if _, err := conn.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	// Two messages reach the builder's batch size of 2 and seal a chunk,
	// which notifies FlushSignal and is then appended by the writer; poll
	// the output file until it is non-empty rather than sleeping a fixed
	// duration.
	select {
	case <-sealed:
	case <-time.After(5 * time.Second):
		t.Fatal("flush signal never fired")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		info, statErr := os.Stat(outPath)
		if statErr == nil && info.Size() > int64(len(columnar.Magic)) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("output file never received a chunk")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-runDone:
		if err != nil && !errors.Is(err, ErrShutdownTimeout) {
			t.Fatalf("Run returned unexpected error: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("pipeline did not shut down")
	}

	reader, err := columnar.Open(outPath, columnar.NewCodec(0), nil, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()

	var got []columnar.Record
	for {
		rec, ok := reader.Next()
		if !ok {
			break
		}
		got = append(got, rec)
	}
	if len(got) != len(lines) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(lines))
	}
	if got[0].Hostname != "host1" {
		t.Errorf("Hostname = %q, want host1", got[0].Hostname)
	}
}

func waitForUDPAddr(t *testing.T, p *Pipeline) net.Addr {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if p.udp != nil {
			if addr := p.udp.Addr(); addr != nil {
				return addr
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("udp listener never bound")
		}
		time.Sleep(time.Millisecond)
	}
}
