// Package hexdump segments fixed-width hex-dump text into packets.
//
// Each input line carries a six character offset label followed by up to
// sixteen space separated hex byte pairs in columns [6, 53). A packet ends
// at a blank line, or when a line labelled "0000  " starts the next packet.
// Non-conforming lines never produce errors; they contribute whatever
// characters happen to fall inside the hex columns.
package hexdump
