package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"cdrpulse/internal/version"
)

// setupLogging configures the global logger. format is "json" or "console".
func setupLogging(w io.Writer, level, format string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	switch format {
	case "json":
		log.Logger = zerolog.New(w).With().Timestamp().Str("service", version.Name).Logger()
	case "console", "":
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

func stderrLogging(level, format string) error {
	return setupLogging(os.Stderr, level, format)
}
