package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Components log through it directly
// rather than threading a logger value everywhere.
var Logger zerolog.Logger

func init() {
	Logger = newLogger(false)
}

// InitLogger configures the global logger. Verbose enables debug level and
// human-readable console output for interactive runs.
func InitLogger(verbose bool) {
	Logger = newLogger(verbose)
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	var w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
