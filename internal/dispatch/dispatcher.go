// Package dispatch hands reconstructed packets to the external sender, one
// synchronous child process per packet.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/banshee-data/pkts2send/internal/monitoring"
	"github.com/banshee-data/pkts2send/internal/timeutil"
)

// SpawnError reports that the sender could not be started at all. It is
// fatal to the replay.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to run sender %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// PacketObserver is notified of every packet after it has been handed to
// the sender.
type PacketObserver interface {
	Observe(hex string) error
}

// Options configures a Dispatcher.
type Options struct {
	// SenderPath is the executable invoked once per packet.
	SenderPath string
	// SenderArgs is passed to the sender as a single argument ahead of the
	// packet hex, typically the interface name.
	SenderArgs string
	// Log, when non-nil, receives one "<path> <args> <hex>" line per packet,
	// written before the sender runs.
	Log io.Writer
	// Builder prepares sender processes. Defaults to NewRealCommandBuilder.
	Builder CommandBuilder
	// Clock paces packets. Defaults to timeutil.RealClock.
	Clock timeutil.Clock
	// Delay is slept between consecutive packets.
	Delay time.Duration
	// DryRun logs invocations without running the sender.
	DryRun bool
	// Observer, when non-nil, sees every packet after it is sent.
	Observer PacketObserver
}

// Dispatcher invokes the sender for each packet. It is not safe for
// concurrent use.
type Dispatcher struct {
	opts  Options
	count int
}

// New creates a Dispatcher, filling in defaults for unset collaborators.
func New(opts Options) *Dispatcher {
	if opts.Builder == nil {
		opts.Builder = NewRealCommandBuilder()
	}
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	return &Dispatcher{opts: opts}
}

// Dispatch sends one packet and blocks until the sender has exited.
// A sender that starts but exits non-zero is logged and otherwise ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, hex string) error {
	if d.count > 0 && d.opts.Delay > 0 {
		if err := d.opts.Clock.Sleep(ctx, d.opts.Delay); err != nil {
			return err
		}
	}

	if d.opts.Log != nil {
		if _, err := fmt.Fprintf(d.opts.Log, "%s %s %s\n", d.opts.SenderPath, d.opts.SenderArgs, hex); err != nil {
			return fmt.Errorf("failed to write invocation log: %w", err)
		}
	}

	if !d.opts.DryRun {
		if err := d.run(ctx, hex); err != nil {
			return err
		}
	}
	d.count++

	if d.opts.Observer != nil {
		if err := d.opts.Observer.Observe(hex); err != nil {
			monitoring.Logf("Warning: packet %d not recorded: %v", d.count, err)
		}
	}
	return nil
}

func (d *Dispatcher) run(ctx context.Context, hex string) error {
	cmd := d.opts.Builder.BuildCommand(ctx, d.opts.SenderPath, d.opts.SenderArgs, hex)
	err := cmd.Run()
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		monitoring.Logf("Warning: sender exited with status %d for packet %d", exitErr.ExitCode(), d.count+1)
		return nil
	}
	return &SpawnError{Path: d.opts.SenderPath, Err: err}
}

// Count returns the number of packets dispatched so far.
func (d *Dispatcher) Count() int {
	return d.count
}
