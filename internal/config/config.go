// Package config holds the process-wide options every core operation
// needs: worker count and log verbosity. Core functions take the
// worker count and a logger as explicit parameters rather than a
// Config or this package's global; the sync.Once-guarded holder in
// this package exists solely for the CLI entry point's own top-level
// wiring, exactly analogous to the reference implementation's
// OnceLock-based global, not for passing configuration down through
// the call stack.
package config

import (
	"sync"
	"sync/atomic"

	"golang.org/x/xerrors"
)

// LogLevel is the recognized set of logging verbosities.
type LogLevel int

const (
	LogNone LogLevel = iota
	LogVerbose
	LogDebug
	LogTrace
)

func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "none", "":
		return LogNone, nil
	case "verbose":
		return LogVerbose, nil
	case "debug":
		return LogDebug, nil
	case "trace":
		return LogTrace, nil
	default:
		return 0, xerrors.Errorf("config: unrecognized log level %q", s)
	}
}

// Config is the complete set of process-wide options.
type Config struct {
	Threads  int
	LogLevel LogLevel
}

// Validate rejects configurations that would make core operations
// meaningless (zero or negative worker counts).
func (c Config) Validate() error {
	if c.Threads < 1 {
		return xerrors.Errorf("config: threads must be positive, got %d", c.Threads)
	}
	return nil
}

var (
	once     sync.Once
	current  Config
	attempts int32
	ready    uint32
)

// Init sets the process-wide configuration. It must be called at most
// once, before any call to Get; subsequent calls panic.
func Init(c Config) {
	if atomic.AddInt32(&attempts, 1) > 1 {
		panic("config: cannot init config again after init")
	}
	once.Do(func() {
		current = c
		atomic.StoreUint32(&ready, 1)
	})
}

// Get returns the process-wide configuration set by Init. It panics
// if called before Init.
func Get() Config {
	if atomic.LoadUint32(&ready) == 0 {
		panic("config: cannot get config before init")
	}
	return current
}
