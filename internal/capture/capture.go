// Package capture decodes reconstructed frames for diagnostics and records
// replayed frames to a pcap file.
package capture

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/banshee-data/pkts2send/internal/timeutil"
)

// snapLen is large enough for jumbo frames.
const snapLen = 65535

// Decode converts a packet hex string into frame bytes.
func Decode(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("hex string has odd length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return b, nil
}

// Summarize returns a one-line description of an Ethernet frame, e.g.
// "IPv4 10.0.0.1 > 224.0.0.22 IGMP len=54".
func Summarize(frame []byte) string {
	pkt := gopacket.NewPacket(frame, layers.LayerTypeEthernet, gopacket.Default)

	var parts []string
	if eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet); ok {
		parts = append(parts, fmt.Sprintf("%s > %s", eth.SrcMAC, eth.DstMAC))
	}

	switch {
	case pkt.Layer(layers.LayerTypeIPv4) != nil:
		ip := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
		parts = append(parts, fmt.Sprintf("IPv4 %s > %s %s", ip.SrcIP, ip.DstIP, ip.Protocol))
	case pkt.Layer(layers.LayerTypeIPv6) != nil:
		ip := pkt.Layer(layers.LayerTypeIPv6).(*layers.IPv6)
		parts = append(parts, fmt.Sprintf("IPv6 %s > %s %s", ip.SrcIP, ip.DstIP, ip.NextHeader))
	case pkt.Layer(layers.LayerTypeARP) != nil:
		parts = append(parts, "ARP")
	}

	if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok {
		parts = append(parts, fmt.Sprintf("udp %d > %d", udp.SrcPort, udp.DstPort))
	} else if tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP); ok {
		parts = append(parts, fmt.Sprintf("tcp %d > %d", tcp.SrcPort, tcp.DstPort))
	}

	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		parts = append(parts, fmt.Sprintf("(decode error: %v)", errLayer.Error()))
	}
	parts = append(parts, fmt.Sprintf("len=%d", len(frame)))
	return strings.Join(parts, " ")
}

// Writer records each observed packet as an Ethernet frame in pcap format.
type Writer struct {
	w     *pcapgo.Writer
	clock timeutil.Clock
	count int
}

// NewWriter writes the pcap file header to w and returns a Writer.
func NewWriter(w io.Writer, clock timeutil.Clock) (*Writer, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}
	return &Writer{w: pw, clock: clock}, nil
}

// Observe decodes hex and appends it as one packet record. Packets that are
// not valid hex are rejected without writing anything.
func (c *Writer) Observe(s string) error {
	frame, err := Decode(s)
	if err != nil {
		return err
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     c.clock.Now(),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := c.w.WritePacket(ci, frame); err != nil {
		return fmt.Errorf("failed to write pcap record: %w", err)
	}
	c.count++
	return nil
}

// Count returns the number of records written.
func (c *Writer) Count() int {
	return c.count
}
