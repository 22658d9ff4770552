package monitoring

import (
	"log"
	"sync/atomic"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// verbosity gates Debugf output. Zero means warnings and errors only.
var verbosity atomic.Int32

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetVerbosity sets the level above which Debugf messages are dropped.
func SetVerbosity(level int) {
	verbosity.Store(int32(level))
}

// Verbosity returns the current debug level.
func Verbosity() int {
	return int(verbosity.Load())
}

// Debugf logs through Logf only when the current verbosity is at least level.
func Debugf(level int, format string, v ...interface{}) {
	if Verbosity() < level {
		return
	}
	Logf(format, v...)
}
