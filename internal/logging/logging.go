// Package logging configures the application's structured logger.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger at the given level. Unknown levels fall
// back to info.
func New(level string) zerolog.Logger {
	return NewWriter(os.Stderr, level)
}

// NewWriter returns a console logger writing to w at the given level.
func NewWriter(w io.Writer, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	cw := zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	return zerolog.New(cw).Level(lvl).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything. Used by tests.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
