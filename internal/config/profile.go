package config

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/banshee-data/pkts2send/internal/fsutil"
)

// maxProfileSize bounds the size of a replay profile read from disk.
const maxProfileSize = 1 * 1024 * 1024 // 1MB

// Profile is an optional JSON file of replay settings. Fields omitted from
// the file leave the built-in defaults in place; flags given on the command
// line override both.
type Profile struct {
	Output     *string `json:"output,omitempty"`
	Packets    *string `json:"packets,omitempty"`
	Sender     *string `json:"sender,omitempty"`
	SenderArgs *string `json:"sender_args,omitempty"`
	Delay      *string `json:"delay,omitempty"` // duration string like "20ms"
	FlushAtEOF *bool   `json:"flush_at_eof,omitempty"`
	DryRun     *bool   `json:"dry_run,omitempty"`
	Pcap       *string `json:"pcap,omitempty"`
	Verbose    *bool   `json:"verbose,omitempty"`
}

// LoadProfile reads and validates a Profile.
// The file must have a .json extension and be under maxProfileSize.
func LoadProfile(fsys fsutil.FileSystem, path string) (*Profile, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("profile must have .json extension, got %q", ext)
	}

	info, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat profile: %w", err)
	}
	if info.Size() > maxProfileSize {
		return nil, fmt.Errorf("profile too large: %d bytes (max %d)", info.Size(), maxProfileSize)
	}

	f, err := fsys.Open(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open profile: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxProfileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	p := &Profile{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid profile: %w", err)
	}
	return p, nil
}

// Validate checks values that cannot be checked by the JSON decoder.
func (p *Profile) Validate() error {
	if p.Delay != nil && *p.Delay != "" {
		d, err := time.ParseDuration(*p.Delay)
		if err != nil {
			return fmt.Errorf("invalid delay '%s': %w", *p.Delay, err)
		}
		if d < 0 {
			return fmt.Errorf("delay must be non-negative, got %s", d)
		}
	}
	return nil
}

// apply copies every field set in p onto c.
func (p *Profile) apply(c *Config) {
	if p.Output != nil {
		c.OutputPath = *p.Output
	}
	if p.Packets != nil {
		c.PacketPath = *p.Packets
	}
	if p.Sender != nil {
		c.SenderPath = *p.Sender
	}
	if p.SenderArgs != nil {
		c.SenderArgs = *p.SenderArgs
	}
	if p.Delay != nil && *p.Delay != "" {
		// Already validated.
		c.Delay, _ = time.ParseDuration(*p.Delay)
	}
	if p.FlushAtEOF != nil {
		c.FlushAtEOF = *p.FlushAtEOF
	}
	if p.DryRun != nil {
		c.DryRun = *p.DryRun
	}
	if p.Pcap != nil {
		c.PcapPath = *p.Pcap
	}
	if p.Verbose != nil {
		c.Verbose = *p.Verbose
	}
}
