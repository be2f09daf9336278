// Package logging configures the standard logger for the commands.
package logging

import (
	"io"
	"log"
	"os"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unklstewy/ads-routes/pkg/config"
)

var debug atomic.Bool

// Setup sets log flags and the debug switch. When cfg.File is set, output
// also goes to a size-rotated file. The returned closer flushes that file
// and is never nil.
func Setup(verbose bool, cfg config.LoggingConfig) io.Closer {
	debug.Store(verbose || cfg.Level == "debug")

	flags := log.LstdFlags
	if debug.Load() {
		flags |= log.Lshortfile
	}
	log.SetFlags(flags)

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	return w
}

// Debug reports whether debug logging is on.
func Debug() bool {
	return debug.Load()
}

// Debugf logs only when debug logging is on.
func Debugf(format string, args ...interface{}) {
	if debug.Load() {
		log.Printf("[debug] "+format, args...)
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
