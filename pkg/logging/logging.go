package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the process-wide root logger.
type Config struct {
	// Level is one of trace, debug, info, warn, error. Defaults to info.
	Level string
	// Console switches to the human-readable console writer. When false the
	// logger emits one JSON object per line.
	Console bool
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// New builds the root logger. Components derive their own loggers from it
// via With().Str("component", ...) so every line is attributable.
func New(cfg Config) zerolog.Logger {
	zerolog.TimeFieldFormat = timeFormat
	zerolog.ErrorFieldName = "err"
	zerolog.DurationFieldUnit = time.Millisecond

	var w io.Writer = os.Stdout
	if cfg.Console {
		w = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: timeFormat}
	}
	return zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp().Logger()
}

// ParseLevel maps a config string to a zerolog level. Unknown values fall
// back to info rather than failing startup.
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "INFO", "":
		return zerolog.InfoLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
