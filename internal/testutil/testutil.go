// Package testutil provides shared test fixtures for the replay packages.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// HexDump formats frame the way packet analysers export it: a four digit
// hex offset, two spaces, sixteen space separated byte pairs padded to
// column 53, then the printable ASCII column.
func HexDump(frame []byte) string {
	var sb strings.Builder
	for off := 0; off < len(frame); off += 16 {
		row := frame[off:min(off+16, len(frame))]

		hexCols := make([]string, len(row))
		for i, b := range row {
			hexCols[i] = fmt.Sprintf("%02x", b)
		}
		fmt.Fprintf(&sb, "%04x  %-47s   ", off, strings.Join(hexCols, " "))

		for _, b := range row {
			if b >= 32 && b < 127 {
				sb.WriteByte(b)
			} else {
				sb.WriteByte('.')
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// HexDumpCapture dumps each frame and separates them with blank lines.
func HexDumpCapture(frames ...[]byte) string {
	var sb strings.Builder
	for _, f := range frames {
		sb.WriteString(HexDump(f))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// WriteSender creates an executable shell script in dir that appends
// "<arg1>|<arg2>" to record for every invocation, and returns its path.
func WriteSender(t testing.TB, dir, record string) string {
	t.Helper()
	path := filepath.Join(dir, "raw_send")
	script := fmt.Sprintf("#!/bin/sh\necho \"$1|$2\" >> %q\n", record)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write sender script: %v", err)
	}
	return path
}
