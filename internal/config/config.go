// Package config builds the replay configuration from command-line flags and
// an optional JSON profile. A Config is constructed once at startup and
// passed by value to the replay packages.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/pkts2send/internal/fsutil"
)

// Defaults applied when neither a flag nor the profile sets a value.
const (
	DefaultOutputPath = "raw_send.sh"
	DefaultPacketPath = "packet-IPv4.txt"
	DefaultSenderPath = "./raw_send"
	DefaultSenderArgs = "eth0"
)

var (
	// ErrHelp is returned by Parse when -h was given.
	ErrHelp = flag.ErrHelp
	// ErrVersion is returned by Parse when -V was given.
	ErrVersion = errors.New("version requested")
	// ErrUsage wraps flag parsing errors. The flag package has already
	// printed the problem and the usage text when it is returned.
	ErrUsage = errors.New("invalid usage")
)

// Config holds the settings for one replay run.
type Config struct {
	// OutputPath receives one line per sender invocation. Empty disables it.
	OutputPath string
	// PacketPath is the hex-dump input file.
	PacketPath string
	// SenderPath is the executable invoked once per packet.
	SenderPath string
	// SenderArgs is passed to the sender ahead of the packet hex.
	SenderArgs string
	// ProfilePath is the JSON profile that was loaded, if any.
	ProfilePath string
	// PcapPath receives a capture of every replayed frame. Empty disables it.
	PcapPath string
	// Delay is the pause between consecutive packets.
	Delay time.Duration
	// FlushAtEOF sends a packet left buffered when the input ends.
	FlushAtEOF bool
	// DryRun logs invocations without running the sender.
	DryRun bool
	// Verbose echoes input lines and logs a decoded summary per packet.
	Verbose bool
}

// Default returns the configuration used when no flags are given.
func Default() Config {
	return Config{
		OutputPath: DefaultOutputPath,
		PacketPath: DefaultPacketPath,
		SenderPath: DefaultSenderPath,
		SenderArgs: DefaultSenderArgs,
	}
}

func newFlagSet(program string, w io.Writer, c *Config, profile *string, showVersion *bool) *flag.FlagSet {
	fs := flag.NewFlagSet(program, flag.ContinueOnError)
	fs.SetOutput(w)
	fs.StringVar(&c.OutputPath, "o", c.OutputPath, "output `file` logging each sender invocation (empty disables)")
	fs.StringVar(&c.PacketPath, "p", c.PacketPath, "hex-dump packet `file` to replay")
	fs.StringVar(&c.SenderPath, "P", c.SenderPath, "`path` to the raw_send executable")
	fs.StringVar(&c.SenderArgs, "A", c.SenderArgs, "`args` passed to raw_send ahead of the packet hex")
	fs.StringVar(profile, "c", "", "JSON profile `file` supplying defaults for the other flags")
	fs.DurationVar(&c.Delay, "d", c.Delay, "`delay` between consecutive packets, e.g. 20ms")
	fs.BoolVar(&c.FlushAtEOF, "f", c.FlushAtEOF, "send a packet left unterminated at end of input")
	fs.BoolVar(&c.DryRun, "n", c.DryRun, "dry run: log invocations without running raw_send")
	fs.StringVar(&c.PcapPath, "w", c.PcapPath, "write replayed frames to pcap `file`")
	fs.BoolVar(&c.Verbose, "v", c.Verbose, "echo input lines and log a decoded summary per packet")
	fs.BoolVar(showVersion, "V", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(w, "Usage: %s [-h] [-o output file] -p <packet_file> [-P <full_path_to_raw_send>] [-A \"<args to raw_send>\"]\n", program)
		fs.PrintDefaults()
	}
	return fs
}

// Parse builds a Config from args (without the program name). Precedence is
// flags, then the -c profile, then Default. Usage and flag errors are
// written to w. Parse returns ErrHelp or ErrVersion when those flags were
// given.
func Parse(program string, args []string, fsys fsutil.FileSystem, w io.Writer) (Config, error) {
	flagged := Default()
	var profilePath string
	var showVersion bool

	fs := newFlagSet(program, w, &flagged, &profilePath, &showVersion)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return Config{}, ErrHelp
		}
		return Config{}, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if showVersion {
		return Config{}, ErrVersion
	}

	cfg := Default()
	if profilePath != "" {
		p, err := LoadProfile(fsys, profilePath)
		if err != nil {
			return Config{}, err
		}
		p.apply(&cfg)
		cfg.ProfilePath = profilePath
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "o":
			cfg.OutputPath = flagged.OutputPath
		case "p":
			cfg.PacketPath = flagged.PacketPath
		case "P":
			cfg.SenderPath = flagged.SenderPath
		case "A":
			cfg.SenderArgs = flagged.SenderArgs
		case "d":
			cfg.Delay = flagged.Delay
		case "f":
			cfg.FlushAtEOF = flagged.FlushAtEOF
		case "n":
			cfg.DryRun = flagged.DryRun
		case "w":
			cfg.PcapPath = flagged.PcapPath
		case "v":
			cfg.Verbose = flagged.Verbose
		}
	})
	return cfg, nil
}

// Validate checks the configuration against the filesystem before any input
// is read. The sender is not checked in dry-run mode.
func (c Config) Validate(fsys fsutil.FileSystem) error {
	if c.PacketPath == "" {
		return errors.New("no packet file given (-p)")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be non-negative, got %s", c.Delay)
	}
	if c.DryRun {
		return nil
	}
	if c.SenderPath == "" {
		return errors.New("no raw_send path given (-P)")
	}
	if err := fsutil.CheckExecutable(fsys, c.SenderPath); err != nil {
		return fmt.Errorf("invalid path to raw_send: %w", err)
	}
	return nil
}
