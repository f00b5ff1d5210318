// Package logging configures the process-wide standard logger.
package logging

import (
	"io"
	"log"
	"os"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mrlokans/sheetsync/internal/config"
)

var verbose atomic.Bool

// Setup points the standard logger at stderr and, when cfg.File is set, at a
// rotating log file as well. The returned closer flushes the file writer.
func Setup(cfg config.Logging) io.Closer {
	verbose.Store(cfg.Verbose)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if cfg.File == "" {
		log.SetOutput(os.Stderr)
		return nopCloser{}
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	log.SetOutput(io.MultiWriter(os.Stderr, rotator))
	return rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Debugf logs only when verbose logging is enabled.
func Debugf(format string, args ...any) {
	if verbose.Load() {
		log.Printf("DEBUG: "+format, args...)
	}
}

// SetVerbose toggles debug output.
func SetVerbose(v bool) {
	verbose.Store(v)
}
