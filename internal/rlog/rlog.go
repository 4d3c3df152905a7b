// Package rlog is radiod's logging wrapper: a package-level
// *log.Logger plus a verbosity counter bumped by -v / USR1 and
// dropped by USR2.
package rlog

import (
	"log"
	"os"
	"sync/atomic"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	logger    = log.New(os.Stderr, "", log.LstdFlags)
	verbosity int32
	printer   = message.NewPrinter(language.AmericanEnglish)
)

// SetVerbosity sets the absolute verbosity level (floored at 0).
func SetVerbosity(v int) {
	if v < 0 {
		v = 0
	}
	atomic.StoreInt32(&verbosity, int32(v))
}

// Bump adjusts verbosity by delta, floored at 0. Used by USR1 (+1) and
// USR2 (-1) signal handlers.
func Bump(delta int) int {
	for {
		old := atomic.LoadInt32(&verbosity)
		nv := old + int32(delta)
		if nv < 0 {
			nv = 0
		}
		if atomic.CompareAndSwapInt32(&verbosity, old, nv) {
			return int(nv)
		}
	}
}

// Level returns the current verbosity level.
func Level() int { return int(atomic.LoadInt32(&verbosity)) }

// V reports whether logging at the given level is enabled, and when
// it is, returns a logger to call Printf on. Mirrors the common Go
// verbosity-gated logging idiom without pulling in a framework.
type verbose bool

func V(level int) verbose { return verbose(Level() >= level) }

func (v verbose) Printf(format string, args ...any) {
	if v {
		logger.Printf(format, args...)
	}
}

// Printf always logs, regardless of verbosity (warnings and errors).
func Printf(format string, args ...any) { logger.Printf(format, args...) }

// Fatalf logs and exits the process with status 1. Startup failures
// that need a specific sysexits code should not use this — they
// return an *rerr.Error for cmd/radiod to map explicitly.
func Fatalf(format string, args ...any) { logger.Fatalf(format, args...) }

// Number formats an integer with locale thousands separators. Nothing
// in the daemon calls it.
func Number(n int64) string { return printer.Sprintf("%d", n) }
