package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Global logger instance
var (
	Log zerolog.Logger
)

// Initialize sets up the global logger with configuration
func Initialize(level string, pretty bool) {
	// Parse log level
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	// Configure output format
	if pretty {
		// Pretty console output for development
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		// JSON output for production
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	}

	// Set global logger
	Log = log.With().
		Str("service", "vesselframe").
		Logger()

	Log.Info().
		Str("level", logLevel.String()).
		Bool("pretty", pretty).
		Msg("Logger initialized")
}

// GetLogger returns the global logger instance
func GetLogger() *zerolog.Logger {
	return &Log
}

// Component returns a child logger tagged with the given component name.
// Every package that logs (bus, registry, manager, render strategies,
// screen coordinator, repository, orchestrator, plugins) should obtain its
// logger this way rather than logging through the bare global logger.
func Component(name string) zerolog.Logger {
	return Log.With().Str("component", name).Logger()
}

// WebSocket creates a logger for the admin live-feed WebSocket hub.
func WebSocket() *zerolog.Logger {
	l := Component("websocket")
	return &l
}

// Database creates a logger for vessel repository events.
func Database() *zerolog.Logger {
	l := Component("repository")
	return &l
}

// HTTP creates a logger for admin HTTP request events.
func HTTP() *zerolog.Logger {
	l := Component("http")
	return &l
}
