// Package monitoring holds the diagnostic logger shared by the replay packages.
package monitoring

import (
	"log"
	"os"
)

var std = log.New(os.Stdout, "", log.LstdFlags)

// Logf is the package-level diagnostic logger. It writes to standard output
// by default but may be replaced by SetLogger. Tests can redirect or mute it.
var Logf func(format string, v ...interface{}) = std.Printf

// verbose gates Debugf output.
var verbose bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbose enables or disables Debugf output.
func SetVerbose(v bool) {
	verbose = v
}

// Verbose reports whether Debugf output is enabled.
func Verbose() bool {
	return verbose
}

// Debugf logs through Logf only when verbose output is enabled.
func Debugf(format string, v ...interface{}) {
	if verbose {
		Logf(format, v...)
	}
}
