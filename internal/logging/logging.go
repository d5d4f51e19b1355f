// Package logging provides a small leveled wrapper around the
// standard library's *log.Logger, in the idiom of the reference
// module's batch scheduler (a *log.Logger field threaded explicitly
// through callers, not a global). Level gates verbosity only; nothing
// here affects correctness.
package logging

import (
	"io"
	"log"
	"os"

	"github.com/hairlessvillager/region-diff/internal/config"
)

// Logger wraps a *log.Logger with a verbosity gate.
type Logger struct {
	level config.LogLevel
	l     *log.Logger
}

// New returns a Logger writing to w at the given level. A nil w
// defaults to os.Stderr.
func New(level config.LogLevel, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{level: level, l: log.New(w, "", log.LstdFlags)}
}

func (lg *Logger) log(level config.LogLevel, format string, args ...any) {
	if lg == nil || lg.level < level {
		return
	}
	lg.l.Printf(format, args...)
}

// Verbosef logs at LogVerbose and above.
func (lg *Logger) Verbosef(format string, args ...any) { lg.log(config.LogVerbose, format, args...) }

// Debugf logs at LogDebug and above.
func (lg *Logger) Debugf(format string, args ...any) { lg.log(config.LogDebug, format, args...) }

// Tracef logs at LogTrace only; the parallel executor uses this for
// per-task timing.
func (lg *Logger) Tracef(format string, args ...any) { lg.log(config.LogTrace, format, args...) }
