package logger

import (
	"log"
	"log/slog"
)

// New returns a stdlib logger that writes through base with a component attribute,
// for libraries that only accept *log.Logger.
func New(base *slog.Logger, component string) *log.Logger {
	if base == nil {
		base = slog.Default()
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), slog.LevelInfo)
}
