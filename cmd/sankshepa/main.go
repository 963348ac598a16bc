// Command sankshepa runs the syslog ingestion and LogShrink compression
// core.
//
// Logging:
//   - Base logger is created here from SANKSHEPA_LOG, the single
//     environment knob the core recognizes.
//   - The logger is passed into ingest.New via dependency injection; no
//     package ever calls slog.SetDefault.
//
// This binary is a minimal entrypoint exercising internal/ingest: it is
// not the full CLI front-end (argument parsing, subcommand dispatch)
// that collaborator owns out of scope.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"sankshepa/internal/ingest"
	"sankshepa/internal/logging"
)

// Exit codes, per spec: 0 normal, 1 configuration error, 2 I/O error at
// startup, 3 unrecoverable write failure.
const (
	exitOK             = 0
	exitConfigError    = 1
	exitStartupIOError = 2
	exitWriteFailure   = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger, _ := logging.FromEnv(os.Getenv(logging.EnvVar), os.Stderr)

	var (
		udpAddr         string
		tcpAddr         string
		outputPath      string
		batchSize       int
		compressionLvl  int
		drainGrace      time.Duration
		shutdownTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "sankshepa",
		Short: "Syslog ingestion and LogShrink-compressed columnar storage",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Listen for syslog traffic and write compressed chunks to --output",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputPath == "" {
				return fmt.Errorf("%w: --output is required", ingest.ErrConfig)
			}
			if udpAddr == "" && tcpAddr == "" {
				return fmt.Errorf("%w: at least one of --udp or --tcp is required", ingest.ErrConfig)
			}

			p := ingest.New(ingest.Config{
				UDPAddr:          udpAddr,
				TCPAddr:          tcpAddr,
				OutputPath:       outputPath,
				BatchSize:        batchSize,
				CompressionLevel: zstd.EncoderLevel(compressionLvl),
				DrainGrace:       drainGrace,
				ShutdownTimeout:  shutdownTimeout,
				Logger:           logger,
			})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			logger.Info("starting sankshepa", "udp", udpAddr, "tcp", tcpAddr, "output", outputPath)
			return p.Run(ctx)
		},
	}

	serveCmd.Flags().StringVar(&udpAddr, "udp", "", "UDP listen address (e.g. :1514)")
	serveCmd.Flags().StringVar(&tcpAddr, "tcp", "", "TCP listen address (e.g. :1514)")
	serveCmd.Flags().StringVar(&outputPath, "output", "", "path to the append-only columnar output file (required)")
	serveCmd.Flags().IntVar(&batchSize, "batch-size", ingest.DefaultBatchSize, "target records per chunk before sealing")
	serveCmd.Flags().IntVar(&compressionLvl, "compression-level", int(ingest.DefaultCompressionLvl), "zstd encoder level")
	serveCmd.Flags().DurationVar(&drainGrace, "drain-grace", ingest.DefaultDrainGrace, "how long to drain existing connections on shutdown")
	serveCmd.Flags().DurationVar(&shutdownTimeout, "shutdown-timeout", ingest.DefaultShutdownTimeout, "hard deadline for shutdown before aborting with partial-chunk loss")

	cmd.AddCommand(serveCmd)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		logger.Error("sankshepa exiting", "error", err)
		return classifyExit(err)
	}
	return exitOK
}

// classifyExit maps a returned error to one of the spec's exit codes: a
// failure to open the output file is a startup I/O error (2), a fatal
// write/fsync failure or a hard shutdown timeout with partial-chunk
// loss acknowledged is an unrecoverable write failure (3), and
// everything else — including cobra's own usage errors, which never
// reach ingest.Pipeline — is a configuration error (1).
func classifyExit(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, ingest.ErrStartupIO):
		return exitStartupIOError
	case errors.Is(err, ingest.ErrWriteFailure), errors.Is(err, ingest.ErrShutdownTimeout):
		return exitWriteFailure
	default:
		return exitConfigError
	}
}
