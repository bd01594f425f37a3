// Package replay drives a hex-dump file through the segmenter and hands each
// completed packet to a dispatcher before reading the next line.
package replay

import (
	"context"
	"fmt"
	"io"

	"github.com/banshee-data/pkts2send/internal/hexdump"
	"github.com/banshee-data/pkts2send/internal/monitoring"
)

// PacketDispatcher sends one packet synchronously.
type PacketDispatcher interface {
	Dispatch(ctx context.Context, hex string) error
}

// Options configures a replay run.
type Options struct {
	// FlushAtEOF dispatches a packet still buffered at end of input instead
	// of dropping it.
	FlushAtEOF bool
}

// Stats summarises a replay run.
type Stats struct {
	Lines   int
	Packets int
	// Pending holds hex left buffered at end of input that was not sent.
	Pending string
}

// Run reads lines from r until EOF, a read error, a dispatch error, or ctx
// cancellation, and returns what was processed up to that point.
func Run(ctx context.Context, r io.Reader, d PacketDispatcher, opts Options) (Stats, error) {
	var (
		stats Stats
		seg   hexdump.Segmenter
	)

	dispatch := func(pkt string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.Dispatch(ctx, pkt); err != nil {
			return fmt.Errorf("packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++
		return nil
	}

	lines, readErr := hexdump.Lines(r)
	for line := range lines {
		stats.Lines++
		monitoring.Debugf("%s", line)
		if pkt, ok := seg.Feed(line); ok {
			if err := dispatch(pkt); err != nil {
				return stats, err
			}
		}
	}
	if err := readErr(); err != nil {
		return stats, fmt.Errorf("failed to read input at line %d: %w", stats.Lines+1, err)
	}

	if opts.FlushAtEOF {
		if pkt, ok := seg.Flush(); ok {
			if err := dispatch(pkt); err != nil {
				return stats, err
			}
		}
		return stats, nil
	}

	stats.Pending = seg.Pending()
	if stats.Pending != "" {
		monitoring.Logf("Warning: input ended without a packet boundary; %d hex digits not sent (use -f to send them)", len(stats.Pending))
	}
	return stats, nil
}
