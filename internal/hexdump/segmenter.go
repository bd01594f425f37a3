package hexdump

import (
	"bufio"
	"io"
	"iter"
	"strings"
)

const (
	// FragmentStart is the first column of the hex byte area.
	FragmentStart = 6
	// FragmentEnd is one past the last column of the hex byte area.
	FragmentEnd = 53
	// Marker is the offset label that opens a packet.
	Marker = "0000  "

	// maxLineKeep is how much of each input line is retained. Bytes past it
	// lie beyond the hex area and are discarded while reading.
	maxLineKeep = 4096
)

// Fragment returns the hex digits carried by line: columns
// [FragmentStart, FragmentEnd) clamped to the line length, with every space
// removed.
func Fragment(line string) string {
	if len(line) <= FragmentStart {
		return ""
	}
	end := min(len(line), FragmentEnd)
	return strings.ReplaceAll(line[FragmentStart:end], " ", "")
}

// IsMarker reports whether line begins a new packet.
func IsMarker(line string) bool {
	return strings.HasPrefix(line, Marker)
}

// Segmenter assembles packets from hex-dump lines one line at a time.
// The zero value is ready to use.
type Segmenter struct {
	buf strings.Builder
}

// Feed consumes one line. When the line completes a packet, Feed returns
// the packet's hex string and true. Emitted packets are never empty.
func (s *Segmenter) Feed(line string) (string, bool) {
	// A blank line and the marker line are checked independently: some
	// capture tools separate packets with blank lines, others only restart
	// the offset label.
	if line == "" {
		return s.Flush()
	}
	if IsMarker(line) {
		pkt, ok := s.Flush()
		s.buf.WriteString(Fragment(line))
		return pkt, ok
	}
	s.buf.WriteString(Fragment(line))
	return "", false
}

// Flush emits the buffered packet, if any, and resets the buffer.
func (s *Segmenter) Flush() (string, bool) {
	if s.buf.Len() == 0 {
		return "", false
	}
	pkt := s.buf.String()
	s.buf.Reset()
	return pkt, true
}

// Pending returns the hex accumulated for a packet that has not been
// emitted yet.
func (s *Segmenter) Pending() string {
	return s.buf.String()
}

// Reset discards any buffered data.
func (s *Segmenter) Reset() {
	s.buf.Reset()
}

// Lines returns a lazy, single-use sequence of the lines in r with their
// terminators (LF or CRLF) removed. Lines of any length are accepted; only
// the first maxLineKeep bytes of each are kept. The returned function reports
// the first read error once iteration has stopped.
func Lines(r io.Reader) (iter.Seq[string], func() error) {
	br := bufio.NewReader(r)
	var readErr error

	seq := func(yield func(string) bool) {
		var line []byte
		for {
			chunk, isPrefix, err := br.ReadLine()
			if err != nil {
				if err != io.EOF {
					readErr = err
				}
				return
			}
			if room := maxLineKeep - len(line); room > 0 {
				line = append(line, chunk[:min(room, len(chunk))]...)
			}
			if isPrefix {
				continue
			}
			if !yield(string(line)) {
				return
			}
			line = line[:0]
		}
	}
	return seq, func() error { return readErr }
}

// Packets returns a lazy sequence of the packets found in lines. A packet
// still buffered when lines is exhausted is emitted only if flushAtEOF is
// set; otherwise it is dropped, matching captures that end without a
// trailing blank line.
func Packets(lines iter.Seq[string], flushAtEOF bool) iter.Seq[string] {
	return func(yield func(string) bool) {
		var seg Segmenter
		for line := range lines {
			if pkt, ok := seg.Feed(line); ok {
				if !yield(pkt) {
					return
				}
			}
		}
		if !flushAtEOF {
			return
		}
		if pkt, ok := seg.Flush(); ok {
			yield(pkt)
		}
	}
}
