package logger

import corelogger "github.com/evswap/stationd/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// New returns an info-level Logger for the given component. The output format
// is detected via the APP_ENV variable.
func New(component string) Logger {
	return NewZerologLogger(component, "info")
}

// NewWithLevel returns a Logger honoring the configured verbosity, for
// components wired from the loaded configuration.
func NewWithLevel(component, level string) Logger {
	return NewZerologLogger(component, level)
}
