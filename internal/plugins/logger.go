// Package plugins - logger.go
//
// Structured logging for plugins, built on the same zerolog instance the
// rest of the process logs through rather than a hand-rolled JSON
// encoder: every plugin log line carries a "plugin" field and flows
// through the one configured sink (console or JSON, per the global log
// level).
package plugins

import (
	"github.com/rs/zerolog"

	"github.com/vesselframe/vesselframe/internal/logger"
)

// PluginLogger is a zerolog logger pre-tagged with a plugin name.
type PluginLogger struct {
	log zerolog.Logger
}

// NewPluginLogger returns a logger tagged with pluginName. A plugin's
// Context carries a plain zerolog.Logger, not a PluginLogger.
func NewPluginLogger(pluginName string) *PluginLogger {
	return &PluginLogger{
		log: logger.Component("plugin").With().Str("plugin", pluginName).Logger(),
	}
}

func (pl *PluginLogger) event(e *zerolog.Event, message string, data ...map[string]interface{}) {
	if len(data) > 0 {
		for k, v := range data[0] {
			e = e.Interface(k, v)
		}
	}
	e.Msg(message)
}

// Debug logs a debug-level message, optionally with structured fields.
func (pl *PluginLogger) Debug(message string, data ...map[string]interface{}) {
	pl.event(pl.log.Debug(), message, data...)
}

// Info logs an informational message, optionally with structured fields.
func (pl *PluginLogger) Info(message string, data ...map[string]interface{}) {
	pl.event(pl.log.Info(), message, data...)
}

// Warn logs a warning message, optionally with structured fields.
func (pl *PluginLogger) Warn(message string, data ...map[string]interface{}) {
	pl.event(pl.log.Warn(), message, data...)
}

// Error logs an error message, optionally with structured fields.
func (pl *PluginLogger) Error(message string, data ...map[string]interface{}) {
	pl.event(pl.log.Error(), message, data...)
}

// Fatal logs a fatal-severity message. Unlike zerolog's own Fatal, this
// does not exit the process — a plugin failure should not take down the
// rest of Vessel Frame.
func (pl *PluginLogger) Fatal(message string, data ...map[string]interface{}) {
	pl.event(pl.log.Error().Bool("fatal", true), message, data...)
}

// WithField returns a logger with one pre-configured field merged into
// every subsequent call.
func (pl *PluginLogger) WithField(key string, value interface{}) *PluginLogger {
	return &PluginLogger{log: pl.log.With().Interface(key, value).Logger()}
}

// WithFields returns a logger with multiple pre-configured fields merged
// into every subsequent call.
func (pl *PluginLogger) WithFields(fields map[string]interface{}) *PluginLogger {
	ctx := pl.log.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &PluginLogger{log: ctx.Logger()}
}
