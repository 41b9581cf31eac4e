// Package logging builds the zap loggers used by the binaries.
package logging

import "go.uber.org/zap"

// New returns a development logger (console, debug level) when debug is set,
// otherwise a production logger (JSON, info level).
func New(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}
