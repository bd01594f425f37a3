// Command pkts2send replays the packets in a hex-dump text file by invoking
// raw_send once per packet.
//
// Usage:
//
//	pkts2send [-h] [-o output file] -p <packet_file> [-P <full_path_to_raw_send>] [-A "<args to raw_send>"]
//
// The input is the text hex dump produced by packet analysers: one line per
// sixteen bytes with a four digit offset label, packets separated by a blank
// line or by an offset label restarting at 0000. Each reconstructed packet is
// passed to raw_send as
//
//	<raw_send> <args> <hex>
//
// and, unless -o is empty, the same command line is appended to the output
// file so the replay can be repeated as a shell script.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/banshee-data/pkts2send/internal/capture"
	"github.com/banshee-data/pkts2send/internal/config"
	"github.com/banshee-data/pkts2send/internal/dispatch"
	"github.com/banshee-data/pkts2send/internal/fsutil"
	"github.com/banshee-data/pkts2send/internal/monitoring"
	"github.com/banshee-data/pkts2send/internal/replay"
	"github.com/banshee-data/pkts2send/internal/version"
)

// Exit statuses.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, fsutil.OSFileSystem{}, dispatch.NewRealCommandBuilder())
	stop()
	os.Exit(code)
}

// run executes one replay and returns the process exit status.
func run(ctx context.Context, args []string, stdout io.Writer, fsys fsutil.FileSystem, builder dispatch.CommandBuilder) int {
	program := filepath.Base(args[0])

	cfg, err := config.Parse(program, args[1:], fsys, stdout)
	switch {
	case errors.Is(err, config.ErrHelp):
		return exitOK
	case errors.Is(err, config.ErrVersion):
		fmt.Fprintln(stdout, version.String())
		return exitOK
	case errors.Is(err, config.ErrUsage):
		return exitConfig
	case err != nil:
		fmt.Fprintf(stdout, "Invalid profile: %v\n", err)
		return exitConfig
	}
	monitoring.SetVerbose(cfg.Verbose)

	if err := cfg.Validate(fsys); err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return exitConfig
	}

	in, err := fsys.Open(cfg.PacketPath)
	if err != nil {
		fmt.Fprintf(stdout, "Invalid packet file %s: %v\n", cfg.PacketPath, err)
		return exitConfig
	}
	defer in.Close()

	var invocationLog io.Writer
	if cfg.OutputPath != "" {
		f, err := fsys.Create(cfg.OutputPath)
		if err != nil {
			fmt.Fprintf(stdout, "Invalid output file %s: %v\n", cfg.OutputPath, err)
			return exitConfig
		}
		defer closeAndWarn(f, cfg.OutputPath)
		invocationLog = f
	}

	var observers capture.Chain
	if cfg.Verbose {
		observers = append(observers, &capture.SummaryLogger{})
	}
	if cfg.PcapPath != "" {
		f, err := fsys.Create(cfg.PcapPath)
		if err != nil {
			fmt.Fprintf(stdout, "Invalid pcap file %s: %v\n", cfg.PcapPath, err)
			return exitConfig
		}
		defer closeAndWarn(f, cfg.PcapPath)

		w, err := capture.NewWriter(f, nil)
		if err != nil {
			fmt.Fprintf(stdout, "Invalid pcap file %s: %v\n", cfg.PcapPath, err)
			return exitConfig
		}
		observers = append(observers, w)
	}

	opts := dispatch.Options{
		SenderPath: cfg.SenderPath,
		SenderArgs: cfg.SenderArgs,
		Log:        invocationLog,
		Builder:    builder,
		Delay:      cfg.Delay,
		DryRun:     cfg.DryRun,
	}
	if len(observers) > 0 {
		opts.Observer = observers
	}
	d := dispatch.New(opts)

	runID := uuid.New()
	if cfg.ProfilePath != "" {
		monitoring.Logf("Replay %s: loaded profile %s", runID, cfg.ProfilePath)
	}
	monitoring.Logf("Replay %s: %s via %s %s (dry-run=%v, delay=%s)",
		runID, cfg.PacketPath, cfg.SenderPath, cfg.SenderArgs, cfg.DryRun, cfg.Delay)

	stats, err := replay.Run(ctx, in, d, replay.Options{FlushAtEOF: cfg.FlushAtEOF})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			monitoring.Logf("Replay %s interrupted after %d packets", runID, stats.Packets)
		} else {
			monitoring.Logf("Replay %s failed after %d packets: %v", runID, stats.Packets, err)
		}
		return exitRuntime
	}

	monitoring.Logf("Replay %s complete: %d packets from %d lines", runID, stats.Packets, stats.Lines)
	return exitOK
}

func closeAndWarn(c io.Closer, path string) {
	if err := c.Close(); err != nil {
		monitoring.Logf("Warning: failed to close %s: %v", path, err)
	}
}
