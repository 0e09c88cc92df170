package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// New reads LOG_LEVEL and LOG_FORMAT straight from the environment because
// the config loader itself needs a logger.
func New() zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	return Build(output(os.Getenv("LOG_FORMAT")), level)
}

// Build returns the service logger writing to w. Every entry carries a unix
// timestamp, the caller and the service name.
func Build(w io.Writer, level zerolog.Level) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Caller().
		Str("service", "matchmaker").
		Logger()
}

// "console" gives human-readable lines for local runs, anything else JSON.
func output(format string) io.Writer {
	if strings.EqualFold(format, "console") {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen}
	}
	return os.Stdout
}

var Module = fx.Provide(New)
