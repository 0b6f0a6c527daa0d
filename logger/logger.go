package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the level and output format of the process logger.
type Config struct {
	// Level is one of debug, info, warn or error. Anything else means info.
	Level string
	// Pretty switches from JSON lines to the human readable console writer.
	Pretty bool
	// Output defaults to os.Stderr.
	Output io.Writer
}

// Configure builds the process logger from config and installs it as the
// zerolog global logger.
func Configure(config Config) zerolog.Logger {
	if config.Output == nil {
		config.Output = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var writer io.Writer = config.Output
	if config.Pretty {
		writer = zerolog.ConsoleWriter{Out: config.Output, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(writer).Level(ParseLevel(config.Level)).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}

func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
