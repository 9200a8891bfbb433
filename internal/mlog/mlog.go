// Package mlog provides the module-wide structured logger. Every
// component takes a zerolog.Logger (or calls mlog.Component to derive
// one) rather than reaching for the global logger directly, so tests
// can inject a silent or buffered logger.
package mlog

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.Mutex
	base = newDefault()
)

func newDefault() zerolog.Logger {
	var w io.Writer = os.Stderr
	if isatty() {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func isatty() bool {
	fi, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// SetBase replaces the process-wide base logger, e.g. to redirect to
// JSON-on-disk in production or a buffer in tests.
func SetBase(l zerolog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// Base returns the current process-wide base logger.
func Base() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return base
}

// Component returns a child logger tagged with the given component
// name, e.g. mlog.Component("mcmconn") for C7's logs.
func Component(name string) zerolog.Logger {
	return Base().With().Str("component", name).Logger()
}
